package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"casino/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fakeWallet keeps balances in memory and can be told to fail credits
type fakeWallet struct {
	mu          sync.Mutex
	balances    map[int64]decimal.Decimal
	credits     []models.LedgerEntry
	debits      []models.LedgerEntry
	failCredits int
}

var errLedgerDown = fmt.Errorf("%w: ledger unavailable", models.ErrInfrastructure)

func newFakeWallet(balances map[int64]string) *fakeWallet {
	w := &fakeWallet{balances: make(map[int64]decimal.Decimal)}
	for id, b := range balances {
		w.balances[id] = decimal.RequireFromString(b)
	}
	return w
}

func (w *fakeWallet) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balances[userID], nil
}

func (w *fakeWallet) Debit(ctx context.Context, userID int64, amount decimal.Decimal, game models.GameType, reason string) (*models.LedgerEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	bal := w.balances[userID]
	if bal.LessThan(amount) {
		return nil, fmt.Errorf("have %s, need %s: %w", bal, amount, models.ErrInsufficientFunds)
	}
	w.balances[userID] = bal.Sub(amount)
	entry := models.LedgerEntry{UserID: userID, Amount: amount.Neg(), Kind: models.EntryKindDebit, Game: game, Reason: reason}
	w.debits = append(w.debits, entry)
	return &entry, nil
}

func (w *fakeWallet) Credit(ctx context.Context, userID int64, amount decimal.Decimal, game models.GameType, reason string) (*models.LedgerEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failCredits > 0 {
		w.failCredits--
		return nil, errLedgerDown
	}
	w.balances[userID] = w.balances[userID].Add(amount)
	entry := models.LedgerEntry{UserID: userID, Amount: amount, Kind: models.EntryKindCredit, Game: game, Reason: reason}
	w.credits = append(w.credits, entry)
	return &entry, nil
}

func (w *fakeWallet) balance(t *testing.T, userID int64) string {
	t.Helper()
	b, err := w.Balance(context.Background(), userID)
	require.NoError(t, err)
	return b.StringFixed(2)
}

func (w *fakeWallet) creditCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.credits)
}

type scriptedDice struct {
	rolls []Roll
	calls int
}

func (d *scriptedDice) Roll() Roll {
	r := d.rolls[d.calls]
	d.calls++
	return r
}

type fixedWheel struct {
	pockets []int
	calls   int
}

func (w *fixedWheel) Spin() int {
	n := w.pockets[w.calls]
	w.calls++
	return n
}

func testRand() *rand.Rand {
	return rand.New(rand.NewSource(7))
}

func stacked(cards ...Card) *Shoe {
	return NewStackedShoe(testRand(), cards...)
}

func cardOf(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func betOn(kind, value, stake string) Action {
	return Action{Type: ActionPlaceBet, Kind: kind, Value: value, Amount: money(stake)}
}

func do(t ActionType) Action {
	return Action{Type: t}
}
