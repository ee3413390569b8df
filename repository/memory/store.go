// Package memory keeps users, ledger entries and stats in process memory
// behind the same unit-of-work contract as the Postgres repositories.
package memory

import (
	"sync"

	"casino/events"
	"casino/models"
	"casino/service"

	"github.com/coder/quartz"
)

type statsKey struct {
	userID int64
	game   models.GameType
}

// Store holds all data. mu guards the maps; userLocks give a unit of work
// exclusive access to a user's rows until it commits or rolls back.
type Store struct {
	clock quartz.Clock

	mu          sync.Mutex
	users       map[int64]*models.User
	entries     map[int64][]*models.LedgerEntry
	stats       map[statsKey]*models.GameStats
	nextEntryID int64
	userLocks   map[int64]*sync.Mutex
}

// NewStore creates an empty store
func NewStore(clock quartz.Clock) *Store {
	return &Store{
		clock:     clock,
		users:     make(map[int64]*models.User),
		entries:   make(map[int64][]*models.LedgerEntry),
		stats:     make(map[statsKey]*models.GameStats),
		userLocks: make(map[int64]*sync.Mutex),
	}
}

func (s *Store) userLock(id int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.userLocks[id]
	if !ok {
		m = &sync.Mutex{}
		s.userLocks[id] = m
	}
	return m
}

// NewUnitOfWorkFactory creates units of work over store
func NewUnitOfWorkFactory(store *Store, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{store: store, eventBus: eventBus}
}

type unitOfWorkFactory struct {
	store    *Store
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		store:            f.store,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}
