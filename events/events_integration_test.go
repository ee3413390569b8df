package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"casino/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEventDeliveryIntegration(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	eventReceived := make(chan LedgerEntryRecordedEvent, 1)
	var wg sync.WaitGroup
	wg.Add(1)

	mainBus.Subscribe(EventTypeLedgerEntryRecorded, func(ctx context.Context, event Event) {
		defer wg.Done()
		if entryEvent, ok := event.(LedgerEntryRecordedEvent); ok {
			eventReceived <- entryEvent
		} else {
			t.Errorf("Expected LedgerEntryRecordedEvent, got %T", event)
		}
	})

	testEvent := LedgerEntryRecordedEvent{
		EntryID:      7,
		UserID:       123456,
		Kind:         models.EntryKindCredit,
		Game:         models.GameRoulette,
		Reason:       "roulette win",
		Amount:       decimal.NewFromInt(360),
		BalanceAfter: decimal.NewFromInt(1350),
	}

	transactionalBus.Publish(testEvent)
	err := transactionalBus.Flush(context.Background())
	assert.NoError(t, err)

	wg.Wait()

	select {
	case received := <-eventReceived:
		assert.Equal(t, testEvent.UserID, received.UserID)
		assert.Equal(t, testEvent.Kind, received.Kind)
		assert.True(t, testEvent.Amount.Equal(received.Amount))
		assert.True(t, testEvent.BalanceAfter.Equal(received.BalanceAfter))
	case <-time.After(2 * time.Second):
		t.Fatal("Event was not received within timeout")
	}
}

func TestMultipleEventsDelivery(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	received := make(chan TableRemovedEvent, 3)
	var wg sync.WaitGroup
	wg.Add(3)

	mainBus.Subscribe(EventTypeTableRemoved, func(ctx context.Context, event Event) {
		defer wg.Done()
		received <- event.(TableRemovedEvent)
	})

	for _, id := range []string{"a", "b", "c"} {
		transactionalBus.Publish(TableRemovedEvent{TableID: id, Game: models.GameCraps})
	}
	assert.NoError(t, transactionalBus.Flush(context.Background()))

	wg.Wait()
	close(received)

	ids := make(map[string]bool)
	for ev := range received {
		ids[ev.TableID] = true
	}
	assert.Len(t, ids, 3)
}

func TestTransactionalBusDiscard(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	called := make(chan struct{}, 1)
	mainBus.Subscribe(EventTypeUserCreated, func(ctx context.Context, event Event) {
		called <- struct{}{}
	})

	transactionalBus.Publish(UserCreatedEvent{UserID: 1, DisplayName: "ann"})
	transactionalBus.Discard()
	assert.NoError(t, transactionalBus.Flush(context.Background()))

	select {
	case <-called:
		t.Fatal("discarded event was delivered")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBusHandlerPanicIsolated(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	wg.Add(2)
	delivered := make(chan struct{}, 1)

	bus.Subscribe(EventTypeTableCreated, func(ctx context.Context, event Event) {
		defer wg.Done()
		panic("handler failure")
	})
	bus.Subscribe(EventTypeTableCreated, func(ctx context.Context, event Event) {
		defer wg.Done()
		delivered <- struct{}{}
	})

	bus.Emit(context.Background(), TableCreatedEvent{TableID: "t1", Game: models.GamePoker})
	wg.Wait()

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("second handler was not called")
	}
}
