package service

import (
	"context"
	"fmt"

	"casino/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// DefaultTransactionLimit is how many entries Transactions returns when the
// caller does not ask for a specific number
const DefaultTransactionLimit = 50

type walletService struct {
	uowFactory UnitOfWorkFactory
}

// NewWalletService creates a wallet backed by the given unit of work factory
func NewWalletService(uowFactory UnitOfWorkFactory) WalletService {
	return &walletService{uowFactory: uowFactory}
}

func (s *walletService) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return decimal.Zero, infrastructureError("begin transaction", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return decimal.Zero, infrastructureError("get user", err)
	}
	if user == nil {
		return decimal.Zero, ErrUserNotFound
	}

	return user.Balance, nil
}

func (s *walletService) Debit(ctx context.Context, userID int64, amount decimal.Decimal, game models.GameType, reason string) (*models.LedgerEntry, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, infrastructureError("begin transaction", err)
	}
	defer uow.Rollback()

	after, err := uow.UserRepository().DeductBalance(ctx, userID, amount)
	if err != nil {
		return nil, infrastructureError(fmt.Sprintf("debit user %d", userID), err)
	}

	entry := &models.LedgerEntry{
		UserID:        userID,
		Amount:        amount.Neg(),
		Kind:          models.EntryKindDebit,
		Game:          game,
		Reason:        reason,
		BalanceBefore: after.Add(amount),
		BalanceAfter:  after,
	}
	if err := RecordLedgerEntry(ctx, uow, entry); err != nil {
		return nil, infrastructureError("record debit", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, infrastructureError("commit debit", err)
	}

	log.WithFields(log.Fields{
		"userID":  userID,
		"amount":  amount.String(),
		"game":    game,
		"reason":  reason,
		"balance": after.String(),
	}).Debug("Debited wallet")

	return entry, nil
}

func (s *walletService) Credit(ctx context.Context, userID int64, amount decimal.Decimal, game models.GameType, reason string) (*models.LedgerEntry, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: credit amount must not be negative", models.ErrValidation)
	}
	if !amount.Equal(amount.Round(2)) {
		return nil, fmt.Errorf("%w: amount %s has more than two decimal places", models.ErrValidation, amount)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, infrastructureError("begin transaction", err)
	}
	defer uow.Rollback()

	after, err := uow.UserRepository().AddBalance(ctx, userID, amount)
	if err != nil {
		return nil, infrastructureError(fmt.Sprintf("credit user %d", userID), err)
	}

	entry := &models.LedgerEntry{
		UserID:        userID,
		Amount:        amount,
		Kind:          models.EntryKindCredit,
		Game:          game,
		Reason:        reason,
		BalanceBefore: after.Sub(amount),
		BalanceAfter:  after,
	}
	if err := RecordLedgerEntry(ctx, uow, entry); err != nil {
		return nil, infrastructureError("record credit", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, infrastructureError("commit credit", err)
	}

	log.WithFields(log.Fields{
		"userID":  userID,
		"amount":  amount.String(),
		"game":    game,
		"reason":  reason,
		"balance": after.String(),
	}).Debug("Credited wallet")

	return entry, nil
}

func (s *walletService) AddFunds(ctx context.Context, userID int64, amount decimal.Decimal) (*models.LedgerEntry, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	return s.Credit(ctx, userID, amount, "", models.ReasonDeposit)
}

func (s *walletService) Transactions(ctx context.Context, userID int64, limit int) ([]*models.LedgerEntry, error) {
	if limit <= 0 {
		limit = DefaultTransactionLimit
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, infrastructureError("begin transaction", err)
	}
	defer uow.Rollback()

	entries, err := uow.LedgerRepository().GetByUser(ctx, userID, limit)
	if err != nil {
		return nil, infrastructureError("list ledger entries", err)
	}
	return entries, nil
}

// validateAmount accepts positive amounts with at most two decimal places
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", models.ErrValidation)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: amount %s has more than two decimal places", models.ErrValidation, amount)
	}
	return nil
}
