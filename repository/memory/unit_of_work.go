package memory

import (
	"context"
	"fmt"
	"sync"

	"casino/events"
	"casino/service"
)

// unitOfWork locks each user it touches and journals undo steps so Rollback
// can restore the store
type unitOfWork struct {
	store            *Store
	transactionalBus *events.TransactionalBus
	started          bool
	held             map[int64]*sync.Mutex
	undo             []func()

	userRepo   *userRepository
	ledgerRepo *ledgerRepository
	statsRepo  *statsRepository
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.started {
		return fmt.Errorf("transaction already started")
	}
	u.started = true
	u.held = make(map[int64]*sync.Mutex)
	u.userRepo = &userRepository{uow: u}
	u.ledgerRepo = &ledgerRepository{uow: u}
	u.statsRepo = &statsRepository{uow: u}
	return nil
}

func (u *unitOfWork) Commit() error {
	if !u.started {
		return fmt.Errorf("no transaction to commit")
	}
	u.undo = nil
	u.finish()
	u.transactionalBus.Flush(context.Background())
	return nil
}

func (u *unitOfWork) Rollback() error {
	if !u.started {
		return nil
	}

	u.store.mu.Lock()
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.store.mu.Unlock()

	u.undo = nil
	u.finish()
	u.transactionalBus.Discard()
	return nil
}

func (u *unitOfWork) finish() {
	for _, m := range u.held {
		m.Unlock()
	}
	u.held = nil
	u.started = false
}

// lock acquires the user's lock once per unit of work
func (u *unitOfWork) lock(userID int64) {
	if _, ok := u.held[userID]; ok {
		return
	}
	m := u.store.userLock(userID)
	m.Lock()
	u.held[userID] = m
}

// onRollback registers an undo step. Steps run with store.mu held.
func (u *unitOfWork) onRollback(fn func()) {
	u.undo = append(u.undo, fn)
}

func (u *unitOfWork) UserRepository() service.UserRepository {
	if u.userRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.userRepo
}

func (u *unitOfWork) LedgerRepository() service.LedgerRepository {
	if u.ledgerRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.ledgerRepo
}

func (u *unitOfWork) StatsRepository() service.StatsRepository {
	if u.statsRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.statsRepo
}

func (u *unitOfWork) EventBus() service.EventPublisher {
	return u.transactionalBus
}
