package memory

import (
	"context"
	"fmt"
	"sort"

	"casino/models"
	"casino/service"

	"github.com/shopspring/decimal"
)

type userRepository struct {
	uow *unitOfWork
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.uow.lock(id)

	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (r *userRepository) Create(ctx context.Context, id int64, displayName string) (*models.User, error) {
	r.uow.lock(id)

	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; ok {
		return nil, nil
	}

	now := s.clock.Now()
	user := &models.User{
		ID:          id,
		DisplayName: displayName,
		Balance:     decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.users[id] = user
	r.uow.onRollback(func() { delete(s.users, id) })

	copied := *user
	return &copied, nil
}

func (r *userRepository) DeductBalance(ctx context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error) {
	r.uow.lock(id)

	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return decimal.Zero, service.ErrUserNotFound
	}
	if user.Balance.LessThan(amount) {
		return decimal.Zero, fmt.Errorf("have %s, need %s: %w", user.Balance, amount, models.ErrInsufficientFunds)
	}

	r.setBalance(user, user.Balance.Sub(amount))
	return user.Balance, nil
}

func (r *userRepository) AddBalance(ctx context.Context, id int64, amount decimal.Decimal) (decimal.Decimal, error) {
	r.uow.lock(id)

	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return decimal.Zero, service.ErrUserNotFound
	}

	r.setBalance(user, user.Balance.Add(amount))
	return user.Balance, nil
}

// setBalance must be called with store.mu held
func (r *userRepository) setBalance(user *models.User, balance decimal.Decimal) {
	prevBalance, prevUpdated := user.Balance, user.UpdatedAt
	user.Balance = balance
	user.UpdatedAt = r.uow.store.clock.Now()
	r.uow.onRollback(func() {
		user.Balance = prevBalance
		user.UpdatedAt = prevUpdated
	})
}

type ledgerRepository struct {
	uow *unitOfWork
}

func (r *ledgerRepository) Record(ctx context.Context, entry *models.LedgerEntry) error {
	r.uow.lock(entry.UserID)

	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[entry.UserID]; !ok {
		return service.ErrUserNotFound
	}

	s.nextEntryID++
	entry.ID = s.nextEntryID
	entry.CreatedAt = s.clock.Now()

	stored := *entry
	userID := entry.UserID
	s.entries[userID] = append(s.entries[userID], &stored)
	r.uow.onRollback(func() {
		list := s.entries[userID]
		s.entries[userID] = list[:len(list)-1]
	})
	return nil
}

func (r *ledgerRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.LedgerEntry, error) {
	r.uow.lock(userID)

	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[userID]
	result := make([]*models.LedgerEntry, 0, min(limit, len(list)))
	for i := len(list) - 1; i >= 0 && len(result) < limit; i-- {
		copied := *list[i]
		result = append(result, &copied)
	}
	return result, nil
}

func (r *ledgerRepository) SumByUser(ctx context.Context, userID int64) (decimal.Decimal, error) {
	r.uow.lock(userID)

	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := decimal.Zero
	for _, entry := range s.entries[userID] {
		sum = sum.Add(entry.Amount)
	}
	return sum, nil
}

type statsRepository struct {
	uow *unitOfWork
}

func (r *statsRepository) RecordOutcome(ctx context.Context, outcome models.Outcome) error {
	r.uow.lock(outcome.UserID)

	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	key := statsKey{userID: outcome.UserID, game: outcome.Game}
	row, existed := s.stats[key]
	var previous models.GameStats
	if existed {
		previous = *row
	} else {
		row = &models.GameStats{
			UserID:       outcome.UserID,
			Game:         outcome.Game,
			TotalWagered: decimal.Zero,
			TotalWon:     decimal.Zero,
		}
		s.stats[key] = row
	}

	row.TotalRounds++
	if outcome.Won {
		row.Wins++
	} else {
		row.Losses++
	}
	row.TotalWagered = row.TotalWagered.Add(outcome.Wagered)
	row.TotalWon = row.TotalWon.Add(outcome.Profit)
	row.UpdatedAt = s.clock.Now()

	r.uow.onRollback(func() {
		if existed {
			*row = previous
		} else {
			delete(s.stats, key)
		}
	})
	return nil
}

func (r *statsRepository) GetByUser(ctx context.Context, userID int64) ([]*models.GameStats, error) {
	s := r.uow.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.GameStats
	for key, row := range s.stats {
		if key.userID == userID {
			copied := *row
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Game < result[j].Game })
	return result, nil
}
