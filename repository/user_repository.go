package repository

import (
	"context"
	"errors"
	"fmt"

	"casino/database"
	"casino/models"
	"casino/service"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, display_name, balance, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user models.User
	err := r.q.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.DisplayName,
		&user.Balance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}

	return &user, nil
}

// Create inserts a user with a zero balance, returning nil if the ID is taken
func (r *UserRepository) Create(ctx context.Context, id int64, displayName string) (*models.User, error) {
	query := `
		INSERT INTO users (id, display_name, balance)
		VALUES ($1, $2, 0)
		ON CONFLICT (id) DO NOTHING
		RETURNING id, display_name, balance, created_at, updated_at
	`

	var user models.User
	err := r.q.QueryRow(ctx, query, id, displayName).Scan(
		&user.ID,
		&user.DisplayName,
		&user.Balance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user %d: %w", id, err)
	}

	return &user, nil
}

// DeductBalance subtracts amount in a single conditional update. The row lock
// taken by the UPDATE serializes concurrent debits for the same user, and the
// WHERE clause is re-evaluated against the committed balance.
func (r *UserRepository) DeductBalance(ctx context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE users
		SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2 AND balance >= $1
		RETURNING balance
	`

	var balance decimal.Decimal
	err := r.q.QueryRow(ctx, query, amount, id).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("failed to deduct balance for user %d: %w", id, err)
	}

	user, err := r.GetByID(ctx, id)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to check user: %w", err)
	}
	if user == nil {
		return decimal.Zero, service.ErrUserNotFound
	}
	return decimal.Zero, fmt.Errorf("have %s, need %s: %w", user.Balance, amount, models.ErrInsufficientFunds)
}

// AddBalance adds amount and returns the new balance
func (r *UserRepository) AddBalance(ctx context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE users
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING balance
	`

	var balance decimal.Decimal
	err := r.q.QueryRow(ctx, query, amount, id).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, service.ErrUserNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to add balance for user %d: %w", id, err)
	}

	return balance, nil
}
