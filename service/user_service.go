package service

import (
	"context"

	"casino/events"
	"casino/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type userService struct {
	uowFactory      UnitOfWorkFactory
	startingBalance decimal.Decimal
}

// NewUserService creates a user service that seeds new wallets with startingBalance
func NewUserService(uowFactory UnitOfWorkFactory, startingBalance decimal.Decimal) UserService {
	return &userService{
		uowFactory:      uowFactory,
		startingBalance: startingBalance,
	}
}

// GetOrCreateUser retrieves an existing user or registers a new one. The
// starting balance is written as a single credit entry in the same
// transaction that creates the user.
func (s *userService) GetOrCreateUser(ctx context.Context, id int64, displayName string) (*models.User, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, infrastructureError("begin transaction", err)
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, id)
	if err != nil {
		return nil, infrastructureError("check existing user", err)
	}
	if user != nil {
		return user, nil
	}

	user, err = uow.UserRepository().Create(ctx, id, displayName)
	if err != nil {
		return nil, infrastructureError("create user", err)
	}
	if user == nil {
		// Lost a registration race; the other transaction seeded the wallet.
		user, err = uow.UserRepository().GetByID(ctx, id)
		if err != nil {
			return nil, infrastructureError("get user", err)
		}
		return user, nil
	}

	if s.startingBalance.IsPositive() {
		after, err := uow.UserRepository().AddBalance(ctx, id, s.startingBalance)
		if err != nil {
			return nil, infrastructureError("seed balance", err)
		}

		entry := &models.LedgerEntry{
			UserID:        id,
			Amount:        s.startingBalance,
			Kind:          models.EntryKindCredit,
			Reason:        models.ReasonInitialDeposit,
			BalanceBefore: decimal.Zero,
			BalanceAfter:  after,
		}
		if err := RecordLedgerEntry(ctx, uow, entry); err != nil {
			return nil, infrastructureError("record initial deposit", err)
		}
		user.Balance = after
	}

	uow.EventBus().Publish(events.UserCreatedEvent{
		UserID:         id,
		DisplayName:    displayName,
		InitialBalance: user.Balance,
	})

	if err := uow.Commit(); err != nil {
		return nil, infrastructureError("commit registration", err)
	}

	log.WithFields(log.Fields{
		"userID":      id,
		"displayName": displayName,
		"balance":     user.Balance.String(),
	}).Info("Registered new user")

	return user, nil
}
