package table

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"casino/events"
	"casino/game"
	"casino/models"

	log "github.com/sirupsen/logrus"
)

// AutoSeat asks Join to pick the lowest free seat
const AutoSeat = -1

// StatsRecorder receives the outcomes of resolved rounds
type StatsRecorder interface {
	RecordOutcome(ctx context.Context, outcome models.Outcome) error
}

// Emitter publishes domain events
type Emitter interface {
	Emit(ctx context.Context, event events.Event)
}

// EngineFactory builds the engine for a new round
type EngineFactory func(game models.GameType, deps game.Deps) (game.Engine, error)

type seat struct {
	occupant models.Occupant
	conn     Conn
}

type request struct {
	ctx  context.Context
	op   func(ctx context.Context) error
	done chan error
}

type sessionConfig struct {
	id        string
	name      string
	game      models.GameType
	mode      models.TableMode
	seats     int
	createdAt time.Time

	wallet    game.Wallet
	stats     StatsRecorder
	emitter   Emitter
	newEngine EngineFactory
	rng       *rand.Rand
}

// Session is the single writer for one table. Every operation is queued and
// run one at a time on the session's own goroutine, so seats and the active
// engine are never touched concurrently.
type Session struct {
	id        string
	name      string
	game      models.GameType
	mode      models.TableMode
	createdAt time.Time

	wallet    game.Wallet
	stats     StatsRecorder
	emitter   Emitter
	newEngine EngineFactory
	rng       *rand.Rand

	// Owned by the run goroutine.
	seats  []*seat
	engine game.Engine
	closed bool

	requests chan request
	done     chan struct{}
	stopOnce sync.Once
}

func newSession(cfg sessionConfig) *Session {
	s := &Session{
		id:        cfg.id,
		name:      cfg.name,
		game:      cfg.game,
		mode:      cfg.mode,
		createdAt: cfg.createdAt,
		wallet:    cfg.wallet,
		stats:     cfg.stats,
		emitter:   cfg.emitter,
		newEngine: cfg.newEngine,
		rng:       cfg.rng,
		seats:     make([]*seat, cfg.seats),
		requests:  make(chan request, 64),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Session) ID() string { return s.id }
func (s *Session) Name() string { return s.name }
func (s *Session) Game() models.GameType { return s.game }
func (s *Session) Mode() models.TableMode { return s.mode }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) run() {
	for {
		select {
		case req := <-s.requests:
			// Ledger writes must not be abandoned because the caller went away.
			req.done <- req.op(context.WithoutCancel(req.ctx))
			if s.closed {
				s.Stop()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Stop shuts the session down. Queued requests fail with ErrTableClosed.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *Session) submit(ctx context.Context, op func(ctx context.Context) error) error {
	req := request{ctx: ctx, op: op, done: make(chan error, 1)}

	select {
	case s.requests <- req:
	case <-s.done:
		return ErrTableClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-s.done:
		// The op may have finished just before the session stopped.
		select {
		case err := <-req.done:
			return err
		default:
			return ErrTableClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join seats the occupant at the requested index, or the lowest free one for
// AutoSeat, and broadcasts the new seating.
func (s *Session) Join(ctx context.Context, occupant models.Occupant, conn Conn, index int) (models.Seat, error) {
	var seated models.Seat
	err := s.submit(ctx, func(ctx context.Context) error {
		if s.closed {
			return ErrTableClosed
		}
		for _, st := range s.seats {
			if st != nil && st.occupant.UserID == occupant.UserID {
				return ErrAlreadySeated
			}
		}

		if index == AutoSeat {
			index = s.lowestFreeSeat()
			if index < 0 {
				return ErrTableFull
			}
		} else if index < 0 || index >= len(s.seats) {
			return ErrInvalidSeat
		} else if s.seats[index] != nil {
			return ErrSeatTaken
		}

		balance, err := s.wallet.Balance(ctx, occupant.UserID)
		if err != nil {
			return err
		}
		occupant.Balance = balance
		s.seats[index] = &seat{occupant: occupant, conn: conn}

		log.WithFields(log.Fields{
			"tableID": s.id,
			"userID":  occupant.UserID,
			"seat":    index,
		}).Info("Player joined table")

		occ := occupant
		seated = models.Seat{Index: index, Occupant: &occ}
		s.broadcastUpdate()
		return nil
	})
	return seated, err
}

// Leave clears the seat at once and forfeits anything the player had in
// play. It reports how many seats are still occupied.
func (s *Session) Leave(ctx context.Context, index int, connectionID string) (int, error) {
	var remaining int
	err := s.submit(ctx, func(ctx context.Context) error {
		st, err := s.occupied(index, connectionID)
		if err != nil {
			return err
		}
		s.seats[index] = nil

		log.WithFields(log.Fields{
			"tableID": s.id,
			"userID":  st.occupant.UserID,
			"seat":    index,
		}).Info("Player left table")

		if s.engine != nil {
			res, err := s.engine.Leave(ctx, s.view(), game.Player{Seat: index, UserID: st.occupant.UserID})
			if res != nil {
				s.apply(ctx, res)
			}
			if err != nil {
				log.WithFields(log.Fields{
					"tableID": s.id,
					"userID":  st.occupant.UserID,
					"error":   err,
				}).Error("Failed to settle round after player left")
			}
		}

		s.broadcastUpdate()
		remaining = s.occupiedCount()
		return nil
	})
	return remaining, err
}

// Dispatch runs one player action against the table's engine, creating the
// engine when the action opens a round. A rejected action is reported only
// to the caller.
func (s *Session) Dispatch(ctx context.Context, index int, connectionID string, action game.Action) (*game.Result, error) {
	var result *game.Result
	err := s.submit(ctx, func(ctx context.Context) error {
		st, err := s.occupied(index, connectionID)
		if err != nil {
			return err
		}
		if !game.Supports(s.game, action.Type) {
			return fmtValidation("action %q is not available at %s", action.Type, s.game)
		}

		engine := s.engine
		fresh := false
		if engine == nil {
			if !game.OpensRound(s.game, action.Type) {
				return fmtPrecondition("no round in progress")
			}
			engine, err = s.newEngine(s.game, game.Deps{Wallet: s.wallet, Rand: s.rng})
			if err != nil {
				return err
			}
			fresh = true
		}

		player := game.Player{Seat: index, UserID: st.occupant.UserID}
		res, err := engine.Handle(ctx, s.view(), player, action)
		if err != nil {
			fields := log.Fields{
				"tableID": s.id,
				"userID":  player.UserID,
				"action":  action.Type,
				"error":   err,
			}
			if models.KindOf(err) == models.KindInfrastructure {
				// A round that failed mid-settlement stays open for a retry.
				if fresh {
					s.engine = engine
				}
				log.WithFields(fields).Error("Action failed")
			} else {
				log.WithFields(fields).Debug("Action rejected")
			}
			return err
		}

		if fresh {
			s.engine = engine
		}
		s.apply(ctx, res)
		s.broadcastUpdate()
		result = res
		return nil
	})
	return result, err
}

// Info returns a snapshot of the table
func (s *Session) Info(ctx context.Context) (models.TableInfo, error) {
	var info models.TableInfo
	err := s.submit(ctx, func(ctx context.Context) error {
		info = s.info()
		return nil
	})
	return info, err
}

// closeIfEmpty marks an empty session closed; the run loop stops after it.
func (s *Session) closeIfEmpty(ctx context.Context) (bool, error) {
	var closed bool
	err := s.submit(ctx, func(ctx context.Context) error {
		if s.occupiedCount() > 0 {
			return nil
		}
		s.closed = true
		closed = true
		return nil
	})
	return closed, err
}

// apply broadcasts an engine result and does the bookkeeping for it
func (s *Session) apply(ctx context.Context, res *game.Result) {
	s.broadcast(Message{Type: res.Event, TableID: s.id, Payload: res.Payload})
	for index, payload := range res.Private {
		if index >= 0 && index < len(s.seats) && s.seats[index] != nil {
			s.seats[index].conn.Send(Message{Type: MessagePrivate, TableID: s.id, Event: res.Event, Payload: payload})
		}
	}

	for _, outcome := range res.Outcomes {
		if err := s.stats.RecordOutcome(ctx, outcome); err != nil {
			log.WithFields(log.Fields{
				"tableID": s.id,
				"userID":  outcome.UserID,
				"game":    outcome.Game,
				"error":   err,
			}).Error("Failed to record outcome")
		}
	}
	s.refreshBalances(ctx)

	if res.Resolved {
		s.engine = nil
		if len(res.Outcomes) > 0 {
			s.emitter.Emit(ctx, events.RoundResolvedEvent{TableID: s.id, Game: s.game, Outcomes: res.Outcomes})
		}
		log.WithFields(log.Fields{
			"tableID":  s.id,
			"game":     s.game,
			"outcomes": len(res.Outcomes),
		}).Debug("Round resolved")
	}
}

func (s *Session) refreshBalances(ctx context.Context) {
	for _, st := range s.seats {
		if st == nil {
			continue
		}
		balance, err := s.wallet.Balance(ctx, st.occupant.UserID)
		if err != nil {
			log.WithFields(log.Fields{
				"tableID": s.id,
				"userID":  st.occupant.UserID,
				"error":   err,
			}).Warn("Failed to refresh balance")
			continue
		}
		st.occupant.Balance = balance
	}
}

func (s *Session) broadcastUpdate() {
	update := SessionUpdate{Table: s.info()}
	if s.engine != nil {
		update.State = s.engine.State()
	}
	s.broadcast(Message{Type: MessageSessionUpdate, TableID: s.id, Payload: update})
}

func (s *Session) broadcast(msg Message) {
	for _, st := range s.seats {
		if st != nil {
			st.conn.Send(msg)
		}
	}
}

func (s *Session) occupied(index int, connectionID string) (*seat, error) {
	if index < 0 || index >= len(s.seats) {
		return nil, ErrInvalidSeat
	}
	st := s.seats[index]
	if st == nil || st.occupant.ConnectionID != connectionID {
		return nil, ErrNotSeated
	}
	return st, nil
}

func (s *Session) lowestFreeSeat() int {
	for i, st := range s.seats {
		if st == nil {
			return i
		}
	}
	return -1
}

func (s *Session) occupiedCount() int {
	n := 0
	for _, st := range s.seats {
		if st != nil {
			n++
		}
	}
	return n
}

// view is the engine's picture of who is seated
func (s *Session) view() game.Table {
	t := game.Table{Mode: s.mode}
	for i, st := range s.seats {
		if st != nil {
			t.Players = append(t.Players, game.Player{Seat: i, UserID: st.occupant.UserID})
		}
	}
	return t
}

func (s *Session) info() models.TableInfo {
	info := models.TableInfo{
		ID:        s.id,
		Name:      s.name,
		Game:      s.game,
		Mode:      s.mode,
		Seats:     make([]models.Seat, len(s.seats)),
		CreatedAt: s.createdAt,
	}
	for i, st := range s.seats {
		info.Seats[i] = models.Seat{Index: i}
		if st != nil {
			occ := st.occupant
			info.Seats[i].Occupant = &occ
		}
	}
	return info
}
