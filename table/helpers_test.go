package table

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"casino/events"
	"casino/game"
	"casino/models"
	"casino/repository/memory"
	"casino/service"

	"github.com/coder/quartz"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingConn struct {
	mu   sync.Mutex
	msgs []Message
}

func (c *recordingConn) Send(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *recordingConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.msgs))
	for i, m := range c.msgs {
		out[i] = m.Type
	}
	return out
}

func (c *recordingConn) last() Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.msgs[len(c.msgs)-1]
}

func (c *recordingConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (e *recordingEmitter) Emit(_ context.Context, event events.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *recordingEmitter) ofType(t events.EventType) []events.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []events.Event
	for _, ev := range e.events {
		if ev.Type() == t {
			out = append(out, ev)
		}
	}
	return out
}

// scriptedEngine answers every action with the result of its handle func
type scriptedEngine struct {
	handle func(actor game.Player, action game.Action) (*game.Result, error)
	leave  func(leaver game.Player) (*game.Result, error)

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	calls       atomic.Int32
}

func (e *scriptedEngine) Game() models.GameType { return models.GameRoulette }

func (e *scriptedEngine) Handle(_ context.Context, _ game.Table, actor game.Player, action game.Action) (*game.Result, error) {
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		peak := e.maxInFlight.Load()
		if n <= peak || e.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	e.calls.Add(1)
	time.Sleep(time.Millisecond)
	return e.handle(actor, action)
}

func (e *scriptedEngine) Leave(_ context.Context, _ game.Table, leaver game.Player) (*game.Result, error) {
	if e.leave == nil {
		return nil, nil
	}
	return e.leave(leaver)
}

func (e *scriptedEngine) State() any { return map[string]int32{"calls": e.calls.Load()} }

// engineFactory hands out scripted engines and remembers them
type engineFactory struct {
	mu      sync.Mutex
	build   func() *scriptedEngine
	created []*scriptedEngine
}

func (f *engineFactory) New(_ models.GameType, _ game.Deps) (game.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.build()
	f.created = append(f.created, e)
	return e, nil
}

func (f *engineFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

type fixture struct {
	registry *Registry
	wallet   service.WalletService
	users    service.UserService
	stats    service.StatsService
	emitter  *recordingEmitter
	clock    *quartz.Mock
}

func newFixture(t *testing.T, newEngine EngineFactory) *fixture {
	t.Helper()
	clock := quartz.NewMock(t)
	clock.Set(testStart)

	factory := memory.NewUnitOfWorkFactory(memory.NewStore(clock), events.NewBus())
	f := &fixture{
		wallet:  service.NewWalletService(factory),
		users:   service.NewUserService(factory, decimal.NewFromInt(100)),
		stats:   service.NewStatsService(factory),
		emitter: &recordingEmitter{},
		clock:   clock,
	}
	f.registry = NewRegistry(Config{
		Seats: map[models.GameType]int{
			models.GameRoulette:  3,
			models.GameBlackjack: 2,
			models.GamePoker:     4,
		},
		Wallet:    f.wallet,
		Stats:     f.stats,
		Emitter:   f.emitter,
		Clock:     clock,
		NewEngine: newEngine,
		Seed:      7,
	})
	t.Cleanup(f.registry.Close)
	return f
}

// player registers a user and returns the occupant and connection for it
func (f *fixture) player(t *testing.T, id int64) (models.Occupant, *recordingConn) {
	t.Helper()
	user, err := f.users.GetOrCreateUser(context.Background(), id, "player")
	require.NoError(t, err)
	return models.Occupant{
		ConnectionID: fmt.Sprintf("conn-%d", id),
		UserID:       user.ID,
		DisplayName:  user.DisplayName,
	}, &recordingConn{}
}

func (f *fixture) join(t *testing.T, tableID string, id int64, seat int) (models.Occupant, *recordingConn) {
	t.Helper()
	occ, conn := f.player(t, id)
	_, _, err := f.registry.Join(context.Background(), JoinRequest{
		Game:     models.GameRoulette,
		TableID:  tableID,
		Seat:     seat,
		Occupant: occ,
		Conn:     conn,
	})
	require.NoError(t, err)
	return occ, conn
}

func (f *fixture) balance(t *testing.T, id int64) string {
	t.Helper()
	b, err := f.wallet.Balance(context.Background(), id)
	require.NoError(t, err)
	return b.StringFixed(2)
}

func placeBet(kind, value, stake string) game.Action {
	return game.Action{Type: game.ActionPlaceBet, Kind: kind, Value: value, Amount: decimal.RequireFromString(stake)}
}
