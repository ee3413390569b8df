package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"casino/events"
	"casino/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

// MockMessagePublisher records every message instead of sending it
type MockMessagePublisher struct {
	mu           sync.Mutex
	Messages     []published
	PublishError error
}

func (m *MockMessagePublisher) Publish(_ context.Context, subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishError != nil {
		return m.PublishError
	}
	m.Messages = append(m.Messages, published{subject: subject, data: data})
	return nil
}

func (m *MockMessagePublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}

func TestEventSubjectMapper(t *testing.T) {
	mapper := NewEventSubjectMapper()

	assert.Equal(t, "casino.rounds.resolved", mapper.MapEventToSubject(events.RoundResolvedEvent{}))
	assert.Equal(t, "casino.ledger.entry_recorded", mapper.MapEventToSubject(events.LedgerEntryRecordedEvent{}))
	assert.Equal(t, "casino.tables.removed", mapper.MapEventToSubject(events.TableRemovedEvent{}))

	for _, eventType := range mapper.EventTypes() {
		assert.Contains(t, subjects, eventType)
	}
}

func TestNATSEventPublisher_Envelope(t *testing.T) {
	mock := &MockMessagePublisher{}
	publisher := NewNATSEventPublisher(mock, NewEventSubjectMapper(), "casino")
	publisher.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	err := publisher.Publish(context.Background(), events.TableCreatedEvent{
		TableID: "t1",
		Name:    "lobby",
		Game:    models.GameCraps,
		Mode:    models.ModeMultiplayer,
	})
	require.NoError(t, err)
	require.Len(t, mock.Messages, 1)
	assert.Equal(t, "casino.tables.created", mock.Messages[0].subject)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(mock.Messages[0].data, &envelope))
	assert.NotEmpty(t, envelope.EventID)
	assert.Equal(t, "table_created", envelope.EventType)
	assert.Equal(t, "casino", envelope.SourceService)
	assert.Equal(t, 2026, envelope.Timestamp.Year())

	var payload events.TableCreatedEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, "t1", payload.TableID)
	assert.Equal(t, models.GameCraps, payload.Game)
}

func TestNATSEventPublisher_PublishError(t *testing.T) {
	mock := &MockMessagePublisher{PublishError: errors.New("no responders")}
	publisher := NewNATSEventPublisher(mock, NewEventSubjectMapper(), "casino")

	err := publisher.Publish(context.Background(), events.UserCreatedEvent{UserID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no responders")
}

func TestNATSEventPublisher_AttachForwardsBusEvents(t *testing.T) {
	mock := &MockMessagePublisher{}
	bus := events.NewBus()
	NewNATSEventPublisher(mock, NewEventSubjectMapper(), "casino").Attach(bus)

	bus.Emit(context.Background(), events.LedgerEntryRecordedEvent{
		EntryID: 1,
		UserID:  7,
		Kind:    models.EntryKindCredit,
		Amount:  decimal.NewFromInt(25),
	})
	bus.Emit(context.Background(), events.RoundResolvedEvent{TableID: "t1", Game: models.GameRoulette})

	require.Eventually(t, func() bool { return mock.count() == 2 }, time.Second, 10*time.Millisecond)
}
