package table

import (
	"context"
	"testing"
	"time"

	"casino/events"
	"casino/game"
	"casino/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateTable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	s, err := f.registry.CreateTable(ctx, models.GameBlackjack, "high rollers", models.ModeHouse)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, models.ModeHouse, s.Mode())
	assert.Equal(t, testStart, s.CreatedAt())

	infos, err := f.registry.Tables(ctx, models.GameBlackjack)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "high rollers", infos[0].Name)
	assert.Len(t, infos[0].Seats, 2)

	created := f.emitter.ofType(events.EventTypeTableCreated)
	require.Len(t, created, 1)
	assert.Equal(t, s.ID(), created[0].(events.TableCreatedEvent).TableID)

	t.Run("mode defaults to multiplayer", func(t *testing.T) {
		s, err := f.registry.CreateTable(ctx, models.GamePoker, "", "")
		require.NoError(t, err)
		assert.Equal(t, models.ModeMultiplayer, s.Mode())
	})

	t.Run("rejects unknown game and mode", func(t *testing.T) {
		_, err := f.registry.CreateTable(ctx, "pachinko", "", models.ModeHouse)
		require.ErrorIs(t, err, models.ErrValidation)

		_, err = f.registry.CreateTable(ctx, models.GamePoker, "", "solo")
		require.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("game without seats configured", func(t *testing.T) {
		_, err := f.registry.CreateTable(ctx, models.GameCraps, "", models.ModeHouse)
		require.Error(t, err)
		assert.Equal(t, 0, f.registry.Count(models.GameCraps))
	})
}

func TestRegistry_JoinOrCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	occ1, conn1 := f.player(t, 1)
	first, _, err := f.registry.Join(ctx, JoinRequest{
		Game: models.GameRoulette, TableID: "lobby", Seat: AutoSeat, Occupant: occ1, Conn: conn1,
	})
	require.NoError(t, err)
	assert.Equal(t, "lobby", first.ID())
	assert.Equal(t, "lobby", first.Name())

	occ2, conn2 := f.player(t, 2)
	second, seat, err := f.registry.Join(ctx, JoinRequest{
		Game: models.GameRoulette, TableID: "lobby", Seat: AutoSeat, Occupant: occ2, Conn: conn2,
	})
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, seat.Index)
	assert.Equal(t, 1, f.registry.Count(models.GameRoulette))

	t.Run("table id belongs to another game", func(t *testing.T) {
		occ, conn := f.player(t, 3)
		_, _, err := f.registry.Join(ctx, JoinRequest{
			Game: models.GamePoker, TableID: "lobby", Seat: AutoSeat, Occupant: occ, Conn: conn,
		})
		require.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("table id is required", func(t *testing.T) {
		occ, conn := f.player(t, 3)
		_, _, err := f.registry.Join(ctx, JoinRequest{
			Game: models.GameRoulette, Seat: AutoSeat, Occupant: occ, Conn: conn,
		})
		require.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestRegistry_Cleanup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	occ1, _ := f.join(t, "t1", 1, AutoSeat)
	occ2, _ := f.join(t, "t2", 2, AutoSeat)
	occ3, _ := f.join(t, "t2", 3, AutoSeat)
	require.Equal(t, 2, f.registry.Count(models.GameRoulette))

	t.Run("occupied table is kept", func(t *testing.T) {
		require.NoError(t, f.registry.Leave(ctx, "t2", 0, occ2.ConnectionID))
		_, ok := f.registry.Get("t2")
		assert.True(t, ok)
		assert.Empty(t, f.emitter.ofType(events.EventTypeTableRemoved))
	})

	t.Run("empty table is removed while another exists", func(t *testing.T) {
		session, _ := f.registry.Get("t1")
		require.NoError(t, f.registry.Leave(ctx, "t1", 0, occ1.ConnectionID))

		_, ok := f.registry.Get("t1")
		assert.False(t, ok)
		assert.Equal(t, 1, f.registry.Count(models.GameRoulette))

		removed := f.emitter.ofType(events.EventTypeTableRemoved)
		require.Len(t, removed, 1)
		assert.Equal(t, "t1", removed[0].(events.TableRemovedEvent).TableID)

		<-session.Done()
		_, err := session.Info(ctx)
		require.ErrorIs(t, err, ErrTableClosed)
	})

	t.Run("last table of a game is retained", func(t *testing.T) {
		require.NoError(t, f.registry.Leave(ctx, "t2", 1, occ3.ConnectionID))
		_, ok := f.registry.Get("t2")
		assert.True(t, ok)
		assert.Len(t, f.emitter.ofType(events.EventTypeTableRemoved), 1)
	})

	t.Run("removed id can be joined again", func(t *testing.T) {
		f.join(t, "t1", 1, AutoSeat)
		assert.Equal(t, 2, f.registry.Count(models.GameRoulette))
	})
}

func TestRegistry_UnknownTable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	err := f.registry.Leave(ctx, "nope", 0, "conn-1")
	require.ErrorIs(t, err, ErrTableNotFound)

	_, err = f.registry.Dispatch(ctx, "nope", 0, "conn-1", game.Action{Type: game.ActionSpin})
	require.ErrorIs(t, err, ErrTableNotFound)
}

// gatedWallet holds Balance calls for one user until release is closed
type gatedWallet struct {
	game.Wallet
	userID  int64
	entered chan struct{}
	release chan struct{}
}

func (w *gatedWallet) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	if userID == w.userID {
		close(w.entered)
		<-w.release
	}
	return w.Wallet.Balance(ctx, userID)
}

func TestRegistry_CleanupDoesNotBlockOtherTables(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	wallet := &gatedWallet{
		Wallet:  f.wallet,
		userID:  9,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	registry := NewRegistry(Config{
		Seats:   map[models.GameType]int{models.GameRoulette: 3},
		Wallet:  wallet,
		Stats:   f.stats,
		Emitter: f.emitter,
		Clock:   f.clock,
		Seed:    7,
	})
	t.Cleanup(registry.Close)

	slow, err := registry.CreateTable(ctx, models.GameRoulette, "slow", models.ModeHouse)
	require.NoError(t, err)
	_, err = registry.CreateTable(ctx, models.GameRoulette, "other", models.ModeHouse)
	require.NoError(t, err)

	occ, conn := f.player(t, 9)
	joined := make(chan error, 1)
	go func() {
		_, _, err := registry.Join(ctx, JoinRequest{
			Game: models.GameRoulette, TableID: slow.ID(), Seat: AutoSeat, Occupant: occ, Conn: conn,
		})
		joined <- err
	}()
	<-wallet.entered

	cleaned := make(chan struct{})
	go func() {
		registry.cleanup(ctx, slow)
		close(cleaned)
	}()
	require.Eventually(t, func() bool { return len(slow.requests) == 1 }, time.Second, time.Millisecond)

	listed := make(chan int, 1)
	go func() { listed <- registry.Count(models.GameRoulette) }()
	select {
	case n := <-listed:
		assert.Equal(t, 2, n)
	case <-time.After(time.Second):
		t.Fatal("registry stayed locked while one table was busy")
	}

	close(wallet.release)
	require.NoError(t, <-joined)
	<-cleaned

	_, ok := registry.Get(slow.ID())
	assert.True(t, ok, "the table gained a player before cleanup reached it")
	assert.Empty(t, f.emitter.ofType(events.EventTypeTableRemoved))
}
