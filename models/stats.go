package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GameStats holds cumulative counters for one user at one game
type GameStats struct {
	UserID       int64           `db:"user_id" json:"user_id"`
	Game         GameType        `db:"game" json:"game"`
	TotalRounds  int64           `db:"total_rounds" json:"total_rounds"`
	Wins         int64           `db:"wins" json:"wins"`
	Losses       int64           `db:"losses" json:"losses"`
	TotalWagered decimal.Decimal `db:"total_wagered" json:"total_wagered"`
	TotalWon     decimal.Decimal `db:"total_won" json:"total_won"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Outcome is one seat's result for one resolved round. Profit is the net
// gain on a win (payout minus wager) and zero on a loss.
type Outcome struct {
	UserID  int64           `json:"user_id"`
	Game    GameType        `json:"game"`
	Won     bool            `json:"won"`
	Wagered decimal.Decimal `json:"wagered"`
	Profit  decimal.Decimal `json:"profit"`
}
