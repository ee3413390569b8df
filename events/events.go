package events

import (
	"context"
	"sync"

	"casino/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeLedgerEntryRecorded EventType = "ledger_entry_recorded"
	EventTypeUserCreated         EventType = "user_created"
	EventTypeTableCreated        EventType = "table_created"
	EventTypeTableRemoved        EventType = "table_removed"
	EventTypeRoundResolved       EventType = "round_resolved"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// LedgerEntryRecordedEvent is emitted once a ledger entry has been committed
type LedgerEntryRecordedEvent struct {
	EntryID      int64            `json:"entry_id"`
	UserID       int64            `json:"user_id"`
	Kind         models.EntryKind `json:"kind"`
	Game         models.GameType  `json:"game,omitempty"`
	Reason       string           `json:"reason"`
	Amount       decimal.Decimal  `json:"amount"`
	BalanceAfter decimal.Decimal  `json:"balance_after"`
}

func (e LedgerEntryRecordedEvent) Type() EventType {
	return EventTypeLedgerEntryRecorded
}

// UserCreatedEvent represents a new registration
type UserCreatedEvent struct {
	UserID         int64           `json:"user_id"`
	DisplayName    string          `json:"display_name"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

func (e UserCreatedEvent) Type() EventType {
	return EventTypeUserCreated
}

// TableCreatedEvent is emitted when the registry opens a table
type TableCreatedEvent struct {
	TableID string           `json:"table_id"`
	Name    string           `json:"name"`
	Game    models.GameType  `json:"game"`
	Mode    models.TableMode `json:"mode"`
}

func (e TableCreatedEvent) Type() EventType {
	return EventTypeTableCreated
}

// TableRemovedEvent is emitted when an empty table is cleaned up
type TableRemovedEvent struct {
	TableID string          `json:"table_id"`
	Game    models.GameType `json:"game"`
}

func (e TableRemovedEvent) Type() EventType {
	return EventTypeTableRemoved
}

// RoundResolvedEvent carries the per-seat outcomes of a finished round
type RoundResolvedEvent struct {
	TableID  string           `json:"table_id"`
	Game     models.GameType  `json:"game"`
	Outcomes []models.Outcome `json:"outcomes"`
}

func (e RoundResolvedEvent) Type() EventType {
	return EventTypeRoundResolved
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers. Handlers run on their
// own goroutines; a panicking handler is logged and does not affect others.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event")

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until the
// transaction commits.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush emits everything pending. Called after a successful commit.
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithField("pendingEventCount", len(b.pending)).Debug("Flushing transactional bus")

	// Handlers outlive the transaction context.
	eventCtx := context.Background()
	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard drops pending events after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
