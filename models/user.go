package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a registered player. Balance is a cached projection of the
// user's ledger entries.
type User struct {
	ID          int64           `db:"id" json:"id"`
	DisplayName string          `db:"display_name" json:"display_name"`
	Balance     decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}
