package repository

import (
	"context"
	"sync/atomic"
	"testing"

	"casino/events"
	"casino/models"
	"casino/repository/testutil"
	"casino/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestLedgerRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	_, err := NewUserRepository(testDB.DB).Create(ctx, 10, "bob")
	require.NoError(t, err)

	repo := NewLedgerRepository(testDB.DB)

	t.Run("record fills id and timestamp", func(t *testing.T) {
		entry := testutil.CreateTestCredit(10, decimal.Zero, decimal.NewFromInt(50), models.GameRoulette)
		require.NoError(t, repo.Record(ctx, entry))
		assert.NotZero(t, entry.ID)
		assert.False(t, entry.CreatedAt.IsZero())
	})

	t.Run("newest first", func(t *testing.T) {
		entry := testutil.CreateTestDebit(10, decimal.NewFromInt(50), decimal.NewFromInt(20), models.GameCraps)
		require.NoError(t, repo.Record(ctx, entry))

		entries, err := repo.GetByUser(ctx, 10, 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, models.EntryKindDebit, entries[0].Kind)
		assert.Equal(t, models.GameCraps, entries[0].Game)
		assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(-20)))
	})

	t.Run("sum", func(t *testing.T) {
		sum, err := repo.SumByUser(ctx, 10)
		require.NoError(t, err)
		assert.True(t, sum.Equal(decimal.NewFromInt(30)))
	})

	t.Run("entries are immutable", func(t *testing.T) {
		_, err := testDB.DB.Exec(ctx, `UPDATE ledger_entries SET reason = 'edited' WHERE user_id = 10`)
		assert.Error(t, err)

		_, err = testDB.DB.Exec(ctx, `DELETE FROM ledger_entries WHERE user_id = 10`)
		assert.Error(t, err)
	})
}

func TestWalletService_Postgres_ConcurrentDebits(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())
	users := service.NewUserService(factory, decimal.NewFromInt(100))
	wallet := service.NewWalletService(factory)

	_, err := users.GetOrCreateUser(ctx, 77, "carol")
	require.NoError(t, err)

	var succeeded atomic.Int64
	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			_, err := wallet.Debit(ctx, 77, decimal.NewFromInt(30), models.GameBlackjack, "blackjack bet")
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

	assert.Equal(t, int64(3), succeeded.Load())

	balance, err := wallet.Balance(ctx, 77)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(10)))

	sum, err := NewLedgerRepository(testDB.DB).SumByUser(ctx, 77)
	require.NoError(t, err)
	assert.True(t, sum.Equal(balance), "balance %s must equal ledger sum %s", balance, sum)
}
