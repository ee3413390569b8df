package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind is the direction of a ledger entry
type EntryKind string

const (
	EntryKindDebit  EntryKind = "debit"
	EntryKindCredit EntryKind = "credit"
)

// Reasons written by the wallet itself. Game engines supply their own.
const (
	ReasonInitialDeposit = "initial_deposit"
	ReasonDeposit        = "deposit"
)

// LedgerEntry is an immutable balance delta. Amount is signed: negative for
// debits, positive for credits.
type LedgerEntry struct {
	ID            int64           `db:"id" json:"id"`
	UserID        int64           `db:"user_id" json:"user_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Kind          EntryKind       `db:"kind" json:"kind"`
	Game          GameType        `db:"game" json:"game,omitempty"`
	Reason        string          `db:"reason" json:"reason"`
	BalanceBefore decimal.Decimal `db:"balance_before" json:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after" json:"balance_after"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
