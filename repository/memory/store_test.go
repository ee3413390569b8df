package memory

import (
	"context"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"casino/events"
	"casino/models"
	"casino/service"

	"github.com/coder/quartz"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newWallet(t *testing.T, starting int64) (service.WalletService, service.UserService, service.UnitOfWorkFactory) {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	factory := NewUnitOfWorkFactory(NewStore(clock), events.NewBus())
	return service.NewWalletService(factory), service.NewUserService(factory, decimal.NewFromInt(starting)), factory
}

func ledgerSum(t *testing.T, factory service.UnitOfWorkFactory, userID int64) decimal.Decimal {
	t.Helper()
	uow := factory.Create()
	require.NoError(t, uow.Begin(context.Background()))
	defer uow.Rollback()
	sum, err := uow.LedgerRepository().SumByUser(context.Background(), userID)
	require.NoError(t, err)
	return sum
}

func TestWallet_Registration(t *testing.T) {
	ctx := context.Background()
	wallet, users, factory := newWallet(t, 1000)

	user, err := users.GetOrCreateUser(ctx, 1, "ann")
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(decimal.NewFromInt(1000)))

	again, err := users.GetOrCreateUser(ctx, 1, "ann")
	require.NoError(t, err)
	assert.True(t, again.Balance.Equal(decimal.NewFromInt(1000)))

	entries, err := wallet.Transactions(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ReasonInitialDeposit, entries[0].Reason)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), entries[0].CreatedAt)
	assert.True(t, ledgerSum(t, factory, 1).Equal(decimal.NewFromInt(1000)))
}

func TestWallet_DebitCredit(t *testing.T) {
	ctx := context.Background()
	wallet, users, factory := newWallet(t, 100)

	_, err := users.GetOrCreateUser(ctx, 2, "ben")
	require.NoError(t, err)

	t.Run("debit within balance", func(t *testing.T) {
		entry, err := wallet.Debit(ctx, 2, decimal.NewFromInt(60), models.GameRoulette, "roulette bet")
		require.NoError(t, err)
		assert.True(t, entry.BalanceAfter.Equal(decimal.NewFromInt(40)))
	})

	t.Run("debit beyond balance leaves no trace", func(t *testing.T) {
		_, err := wallet.Debit(ctx, 2, decimal.NewFromInt(41), models.GameRoulette, "roulette bet")
		assert.ErrorIs(t, err, models.ErrInsufficientFunds)

		entries, err := wallet.Transactions(ctx, 2, 10)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("credit", func(t *testing.T) {
		_, err := wallet.Credit(ctx, 2, decimal.RequireFromString("97.50"), models.GameBaccarat, "baccarat payout")
		require.NoError(t, err)

		balance, err := wallet.Balance(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "137.5", balance.String())
		assert.True(t, ledgerSum(t, factory, 2).Equal(balance))
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := wallet.Credit(ctx, 999, decimal.NewFromInt(1), models.GamePoker, "poker pot")
		assert.ErrorIs(t, err, service.ErrUserNotFound)
	})
}

func TestWallet_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	wallet, users, factory := newWallet(t, 100)

	_, err := users.GetOrCreateUser(ctx, 3, "cat")
	require.NoError(t, err)

	var succeeded atomic.Int64
	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			_, err := wallet.Debit(ctx, 3, decimal.NewFromInt(7), models.GameCraps, "craps bet")
			if err == nil {
				succeeded.Add(1)
				return nil
			}
			if models.KindOf(err) == models.KindInsufficientFunds {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(14), succeeded.Load())

	balance, err := wallet.Balance(ctx, 3)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(2)))
	assert.True(t, ledgerSum(t, factory, 3).Equal(balance))
}

func TestWallet_LedgerMatchesBalanceUnderMixedLoad(t *testing.T) {
	ctx := context.Background()
	wallet, users, factory := newWallet(t, 500)

	for id := int64(10); id < 13; id++ {
		_, err := users.GetOrCreateUser(ctx, id, "player")
		require.NoError(t, err)
	}

	var g errgroup.Group
	for worker := 0; worker < 8; worker++ {
		rng := rand.New(rand.NewSource(int64(worker)))
		g.Go(func() error {
			for i := 0; i < 50; i++ {
				userID := int64(10 + rng.Intn(3))
				amount := decimal.NewFromInt(int64(1 + rng.Intn(40)))
				var err error
				if rng.Intn(2) == 0 {
					_, err = wallet.Debit(ctx, userID, amount, models.GameBlackjack, "blackjack bet")
				} else {
					_, err = wallet.Credit(ctx, userID, amount, models.GameBlackjack, "blackjack payout")
				}
				if err != nil && models.KindOf(err) != models.KindInsufficientFunds {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for id := int64(10); id < 13; id++ {
		balance, err := wallet.Balance(ctx, id)
		require.NoError(t, err)
		assert.False(t, balance.IsNegative())
		assert.True(t, ledgerSum(t, factory, id).Equal(balance), "user %d", id)
	}
}

func TestUnitOfWork_RollbackRestores(t *testing.T) {
	ctx := context.Background()
	wallet, users, factory := newWallet(t, 100)

	_, err := users.GetOrCreateUser(ctx, 4, "dan")
	require.NoError(t, err)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	_, err = uow.UserRepository().AddBalance(ctx, 4, decimal.NewFromInt(50))
	require.NoError(t, err)
	require.NoError(t, uow.LedgerRepository().Record(ctx, &models.LedgerEntry{
		UserID: 4, Amount: decimal.NewFromInt(50), Kind: models.EntryKindCredit, Reason: "test",
	}))
	require.NoError(t, uow.StatsRepository().RecordOutcome(ctx, models.Outcome{
		UserID: 4, Game: models.GamePoker, Won: true, Wagered: decimal.NewFromInt(5), Profit: decimal.NewFromInt(5),
	}))
	require.NoError(t, uow.Rollback())

	balance, err := wallet.Balance(ctx, 4)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(100)))
	assert.True(t, ledgerSum(t, factory, 4).Equal(balance))

	stats, err := service.NewStatsService(factory).UserStats(ctx, 4)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestStats_Accumulate(t *testing.T) {
	ctx := context.Background()
	_, users, factory := newWallet(t, 100)
	stats := service.NewStatsService(factory)

	_, err := users.GetOrCreateUser(ctx, 5, "eve")
	require.NoError(t, err)

	require.NoError(t, stats.RecordOutcome(ctx, models.Outcome{UserID: 5, Game: models.GameRoulette, Won: true, Wagered: decimal.NewFromInt(10), Profit: decimal.NewFromInt(350)}))
	require.NoError(t, stats.RecordOutcome(ctx, models.Outcome{UserID: 5, Game: models.GameRoulette, Won: false, Wagered: decimal.NewFromInt(10), Profit: decimal.Zero}))
	require.NoError(t, stats.RecordOutcome(ctx, models.Outcome{UserID: 5, Game: models.GameBlackjack, Won: true, Wagered: decimal.NewFromInt(20), Profit: decimal.NewFromInt(30)}))

	rows, err := stats.UserStats(ctx, 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, models.GameBlackjack, rows[0].Game)
	assert.Equal(t, models.GameRoulette, rows[1].Game)
	assert.Equal(t, int64(2), rows[1].TotalRounds)
	assert.Equal(t, int64(1), rows[1].Wins)
	assert.Equal(t, int64(1), rows[1].Losses)
	assert.True(t, rows[1].TotalWagered.Equal(decimal.NewFromInt(20)))
	assert.True(t, rows[1].TotalWon.Equal(decimal.NewFromInt(350)))
}

func TestLedger_ReadsWaitForOpenUnitOfWork(t *testing.T) {
	ctx := context.Background()
	wallet, users, factory := newWallet(t, 100)
	_, err := users.GetOrCreateUser(ctx, 6, "fay")
	require.NoError(t, err)

	writer := factory.Create()
	require.NoError(t, writer.Begin(ctx))
	_, err = writer.UserRepository().AddBalance(ctx, 6, decimal.NewFromInt(50))
	require.NoError(t, err)
	require.NoError(t, writer.LedgerRepository().Record(ctx, &models.LedgerEntry{
		UserID: 6, Amount: decimal.NewFromInt(50), Kind: models.EntryKindCredit, Reason: models.ReasonDeposit,
	}))

	var read atomic.Bool
	seen := make(chan int, 1)
	go func() {
		entries, err := wallet.Transactions(ctx, 6, 10)
		read.Store(true)
		if err != nil {
			seen <- -1
			return
		}
		seen <- len(entries)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, read.Load(), "history was read while a deposit was uncommitted")

	require.NoError(t, writer.Rollback())
	assert.Equal(t, 1, <-seen)
	assert.True(t, ledgerSum(t, factory, 6).Equal(decimal.NewFromInt(100)))
}
