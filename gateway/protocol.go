package gateway

import (
	"encoding/json"

	"casino/game"
	"casino/models"

	"github.com/shopspring/decimal"
)

// Client frame types
const (
	FrameJoin         = "join"
	FrameLeave        = "leave"
	FrameAction       = "action"
	FrameCreateTable  = "create_table"
	FrameListTables   = "list_tables"
	FrameBalance      = "balance"
	FrameStats        = "stats"
	FrameTransactions = "transactions"
	FrameAddFunds     = "add_funds"
)

// Server frame types. Table broadcasts are forwarded as table.Message.
const (
	FrameError   = "error"
	FrameJoined  = "joined"
	FrameLeft    = "left"
	FrameCreated = "table_created"
	FrameTables  = "tables"
	FrameFunded  = "funds_added"
)

// ClientFrame is anything a connection may send
type ClientFrame struct {
	Type    string           `json:"type"`
	Game    models.GameType  `json:"game,omitempty"`
	TableID string           `json:"table_id,omitempty"`
	Name    string           `json:"name,omitempty"`
	Mode    models.TableMode `json:"mode,omitempty"`
	// Seat is optional on join; nil picks the lowest free seat.
	Seat   *int         `json:"seat,omitempty"`
	Action *game.Action `json:"action,omitempty"`
	Limit  int          `json:"limit,omitempty"`
	// Amount is the deposit for add_funds.
	Amount decimal.Decimal `json:"amount,omitempty"`
}

// ServerFrame is a reply addressed to one connection
type ServerFrame struct {
	Type    string `json:"type"`
	TableID string `json:"table_id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// ErrorFrame reports a rejected request to the connection that sent it
type ErrorFrame struct {
	Type    string           `json:"type"`
	Code    models.ErrorKind `json:"code"`
	Message string           `json:"message"`
}

func decodeFrame(data []byte) (ClientFrame, error) {
	var frame ClientFrame
	err := json.Unmarshal(data, &frame)
	return frame, err
}
