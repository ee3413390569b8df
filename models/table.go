package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Occupant is whoever sits in a seat
type Occupant struct {
	ConnectionID string          `json:"connection_id"`
	UserID       int64           `json:"user_id"`
	DisplayName  string          `json:"display_name"`
	Balance      decimal.Decimal `json:"balance"`
}

// Seat is an occupancy slot at a table. Occupant is nil when the seat is empty.
type Seat struct {
	Index    int       `json:"index"`
	Occupant *Occupant `json:"occupant,omitempty"`
}

// Empty reports whether nobody sits in the seat
func (s Seat) Empty() bool {
	return s.Occupant == nil
}

// TableInfo is a point-in-time snapshot of a table
type TableInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Game      GameType  `json:"game"`
	Mode      TableMode `json:"mode"`
	Seats     []Seat    `json:"seats"`
	CreatedAt time.Time `json:"created_at"`
}
