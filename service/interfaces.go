package service

import (
	"context"
	"errors"
	"fmt"

	"casino/events"
	"casino/models"

	"github.com/shopspring/decimal"
)

// ErrUserNotFound is returned when a wallet operation names an unknown user
var ErrUserNotFound = fmt.Errorf("%w: user not found", models.ErrValidation)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByID returns the user, or nil if no such user exists
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// Create inserts a user with a zero balance. It returns nil, nil when the
	// user already exists.
	Create(ctx context.Context, id int64, displayName string) (*models.User, error)

	// DeductBalance subtracts amount only if the balance covers it, as one
	// atomic step, and returns the new balance. It fails with
	// models.ErrInsufficientFunds otherwise.
	DeductBalance(ctx context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error)

	// AddBalance adds amount and returns the new balance
	AddBalance(ctx context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error)
}

// LedgerRepository defines the interface for the append-only ledger
type LedgerRepository interface {
	// Record appends an entry, filling in its ID and CreatedAt
	Record(ctx context.Context, entry *models.LedgerEntry) error

	// GetByUser returns the newest entries first
	GetByUser(ctx context.Context, userID int64, limit int) ([]*models.LedgerEntry, error)

	// SumByUser returns the sum of all entry amounts for the user
	SumByUser(ctx context.Context, userID int64) (decimal.Decimal, error)
}

// StatsRepository defines the interface for per-game statistics
type StatsRepository interface {
	// RecordOutcome creates or updates the (user, game) row
	RecordOutcome(ctx context.Context, outcome models.Outcome) error

	// GetByUser returns all rows for a user ordered by game
	GetByUser(ctx context.Context, userID int64) ([]*models.GameStats, error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() UserRepository
	LedgerRepository() LedgerRepository
	StatsRepository() StatsRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// WalletService is the ledger of record for player funds
type WalletService interface {
	// Balance returns the user's cached balance
	Balance(ctx context.Context, userID int64) (decimal.Decimal, error)

	// Debit removes amount from the user's balance and appends one debit
	// entry. Fails with models.ErrInsufficientFunds without any change if the
	// balance does not cover amount.
	Debit(ctx context.Context, userID int64, amount decimal.Decimal, game models.GameType, reason string) (*models.LedgerEntry, error)

	// Credit adds amount to the user's balance and appends one credit entry
	Credit(ctx context.Context, userID int64, amount decimal.Decimal, game models.GameType, reason string) (*models.LedgerEntry, error)

	// AddFunds deposits a positive amount outside of any game
	AddFunds(ctx context.Context, userID int64, amount decimal.Decimal) (*models.LedgerEntry, error)

	// Transactions returns up to limit entries, newest first
	Transactions(ctx context.Context, userID int64, limit int) ([]*models.LedgerEntry, error)
}

// UserService defines the interface for user operations
type UserService interface {
	// GetOrCreateUser returns the user, registering it with the starting
	// balance on first sight
	GetOrCreateUser(ctx context.Context, id int64, displayName string) (*models.User, error)
}

// StatsService defines the interface for statistics operations
type StatsService interface {
	// RecordOutcome adds one resolved round to the user's game stats
	RecordOutcome(ctx context.Context, outcome models.Outcome) error

	// UserStats returns every game the user has played
	UserStats(ctx context.Context, userID int64) ([]*models.GameStats, error)
}

// infrastructureError tags err as an infrastructure failure unless it
// already belongs to another class of the taxonomy.
func infrastructureError(op string, err error) error {
	if errors.Is(err, models.ErrValidation) ||
		errors.Is(err, models.ErrInsufficientFunds) ||
		errors.Is(err, models.ErrPrecondition) ||
		errors.Is(err, models.ErrInfrastructure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", models.ErrInfrastructure, op, err)
}
