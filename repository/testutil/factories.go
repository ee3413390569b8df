package testutil

import (
	"time"

	"casino/models"

	"github.com/shopspring/decimal"
)

// CreateTestUser creates a test user with a 1000.00 balance
func CreateTestUser(id int64, displayName string) *models.User {
	now := time.Now()
	return &models.User{
		ID:          id,
		DisplayName: displayName,
		Balance:     decimal.NewFromInt(1000),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CreateTestDebit creates a debit entry moving a balance from before to before-amount
func CreateTestDebit(userID int64, before, amount decimal.Decimal, game models.GameType) *models.LedgerEntry {
	return &models.LedgerEntry{
		UserID:        userID,
		Amount:        amount.Neg(),
		Kind:          models.EntryKindDebit,
		Game:          game,
		Reason:        string(game) + " bet",
		BalanceBefore: before,
		BalanceAfter:  before.Sub(amount),
	}
}

// CreateTestCredit creates a credit entry moving a balance from before to before+amount
func CreateTestCredit(userID int64, before, amount decimal.Decimal, game models.GameType) *models.LedgerEntry {
	return &models.LedgerEntry{
		UserID:        userID,
		Amount:        amount,
		Kind:          models.EntryKindCredit,
		Game:          game,
		Reason:        string(game) + " payout",
		BalanceBefore: before,
		BalanceAfter:  before.Add(amount),
	}
}

// CreateTestOutcome creates a stats outcome
func CreateTestOutcome(userID int64, game models.GameType, won bool, wagered, profit int64) models.Outcome {
	return models.Outcome{
		UserID:  userID,
		Game:    game,
		Won:     won,
		Wagered: decimal.NewFromInt(wagered),
		Profit:  decimal.NewFromInt(profit),
	}
}
