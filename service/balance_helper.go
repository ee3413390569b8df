package service

import (
	"context"
	"fmt"

	"casino/events"
	"casino/models"
)

// RecordLedgerEntry appends a ledger entry and queues the matching event.
// This is the single entry point for all balance changes in the system; the
// event is delivered only if the unit of work commits.
func RecordLedgerEntry(ctx context.Context, uow UnitOfWork, entry *models.LedgerEntry) error {
	if err := uow.LedgerRepository().Record(ctx, entry); err != nil {
		return fmt.Errorf("failed to record ledger entry: %w", err)
	}

	uow.EventBus().Publish(events.LedgerEntryRecordedEvent{
		EntryID:      entry.ID,
		UserID:       entry.UserID,
		Kind:         entry.Kind,
		Game:         entry.Game,
		Reason:       entry.Reason,
		Amount:       entry.Amount,
		BalanceAfter: entry.BalanceAfter,
	})

	return nil
}
