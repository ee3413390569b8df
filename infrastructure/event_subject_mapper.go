package infrastructure

import (
	"fmt"

	"casino/events"
)

// SubjectPrefix roots every subject this service publishes to
const SubjectPrefix = "casino"

var subjects = map[events.EventType]string{
	events.EventTypeLedgerEntryRecorded: SubjectPrefix + ".ledger.entry_recorded",
	events.EventTypeUserCreated:         SubjectPrefix + ".users.created",
	events.EventTypeTableCreated:        SubjectPrefix + ".tables.created",
	events.EventTypeTableRemoved:        SubjectPrefix + ".tables.removed",
	events.EventTypeRoundResolved:       SubjectPrefix + ".rounds.resolved",
}

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	if subject, ok := subjects[event.Type()]; ok {
		return subject
	}
	return fmt.Sprintf("%s.unknown.%s", SubjectPrefix, event.Type())
}

// EventTypes returns every event type that has a subject
func (m *EventSubjectMapper) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeLedgerEntryRecorded,
		events.EventTypeUserCreated,
		events.EventTypeTableCreated,
		events.EventTypeTableRemoved,
		events.EventTypeRoundResolved,
	}
}

// GetAllSubjects returns the wildcard the stream captures
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{SubjectPrefix + ".>"}
}
