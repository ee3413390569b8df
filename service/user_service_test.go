package service

import (
	"context"
	"errors"
	"testing"

	"casino/events"
	"casino/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var startingBalance = decimal.NewFromInt(1000)

func TestUserService_GetOrCreateUser_ExistingUser(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockLedgerRepo := new(MockLedgerRepository)
	mockUoW.SetRepositories(mockUserRepo, mockLedgerRepo, nil)

	service := NewUserService(mockFactory, startingBalance)

	existingUser := &models.User{ID: 123456, DisplayName: "testuser", Balance: decimal.NewFromInt(500)}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockUserRepo.On("GetByID", ctx, int64(123456)).Return(existingUser, nil)

	user, err := service.GetOrCreateUser(ctx, 123456, "testuser")

	assert.NoError(t, err)
	assert.Equal(t, existingUser, user)

	mockFactory.AssertExpectations(t)
	mockUoW.AssertExpectations(t)
	mockUserRepo.AssertExpectations(t)
	mockUoW.AssertNotCalled(t, "Commit")
	mockLedgerRepo.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestUserService_GetOrCreateUser_NewUser(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockLedgerRepo := new(MockLedgerRepository)
	mockPublisher := new(MockEventPublisher)
	mockUoW.SetRepositories(mockUserRepo, mockLedgerRepo, nil)
	mockUoW.SetEventBus(mockPublisher)

	service := NewUserService(mockFactory, startingBalance)

	newUser := &models.User{ID: 123456, DisplayName: "newuser", Balance: decimal.Zero}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockUserRepo.On("GetByID", ctx, int64(123456)).Return(nil, nil)
	mockUserRepo.On("Create", ctx, int64(123456), "newuser").Return(newUser, nil)
	mockUserRepo.On("AddBalance", ctx, int64(123456), startingBalance).Return(startingBalance, nil)

	mockLedgerRepo.On("Record", ctx, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.UserID == 123456 &&
			e.Kind == models.EntryKindCredit &&
			e.Amount.Equal(startingBalance) &&
			e.BalanceBefore.IsZero() &&
			e.BalanceAfter.Equal(startingBalance) &&
			e.Reason == models.ReasonInitialDeposit
	})).Return(nil)

	mockPublisher.On("Publish", mock.AnythingOfType("events.LedgerEntryRecordedEvent")).Return()
	mockPublisher.On("Publish", mock.MatchedBy(func(e events.UserCreatedEvent) bool {
		return e.UserID == 123456 && e.InitialBalance.Equal(startingBalance)
	})).Return()

	user, err := service.GetOrCreateUser(ctx, 123456, "newuser")

	assert.NoError(t, err)
	assert.True(t, user.Balance.Equal(startingBalance))

	mockFactory.AssertExpectations(t)
	mockUoW.AssertExpectations(t)
	mockUserRepo.AssertExpectations(t)
	mockLedgerRepo.AssertExpectations(t)
	mockPublisher.AssertExpectations(t)
}

func TestUserService_GetOrCreateUser_RegistrationRace(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockLedgerRepo := new(MockLedgerRepository)
	mockUoW.SetRepositories(mockUserRepo, mockLedgerRepo, nil)

	service := NewUserService(mockFactory, startingBalance)

	winner := &models.User{ID: 42, DisplayName: "racer", Balance: startingBalance}

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockUserRepo.On("GetByID", ctx, int64(42)).Return(nil, nil).Once()
	mockUserRepo.On("Create", ctx, int64(42), "racer").Return(nil, nil)
	mockUserRepo.On("GetByID", ctx, int64(42)).Return(winner, nil).Once()

	user, err := service.GetOrCreateUser(ctx, 42, "racer")

	assert.NoError(t, err)
	assert.Equal(t, winner, user)
	mockUserRepo.AssertNotCalled(t, "AddBalance", mock.Anything, mock.Anything, mock.Anything)
	mockLedgerRepo.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestUserService_GetOrCreateUser_CreateError(t *testing.T) {
	ctx := context.Background()

	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockUserRepo := new(MockUserRepository)
	mockUoW.SetRepositories(mockUserRepo, nil, nil)

	service := NewUserService(mockFactory, startingBalance)

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockUserRepo.On("GetByID", ctx, int64(123456)).Return(nil, nil)
	mockUserRepo.On("Create", ctx, int64(123456), "newuser").Return(nil, errors.New("database error"))

	user, err := service.GetOrCreateUser(ctx, 123456, "newuser")

	assert.Error(t, err)
	assert.Nil(t, user)
	assert.ErrorIs(t, err, models.ErrInfrastructure)
	assert.Contains(t, err.Error(), "database error")
	mockUoW.AssertNotCalled(t, "Commit")
}
