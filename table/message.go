package table

import (
	"casino/models"
)

// Message types sent to seated connections. Engine results use the engine's
// own event name as the type.
const (
	MessageSessionUpdate = "session_update"
	MessagePrivate       = "private"
)

// Message is one frame pushed to a connection
type Message struct {
	Type    string `json:"type"`
	TableID string `json:"table_id"`
	Event   string `json:"event,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// SessionUpdate is the payload of a session_update message
type SessionUpdate struct {
	Table models.TableInfo `json:"table"`
	State any              `json:"state,omitempty"`
}

// Conn receives the messages for one seated connection. Send must not block
// the table; slow connections are the delivery layer's problem.
type Conn interface {
	Send(msg Message)
}
