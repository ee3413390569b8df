package table

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"casino/events"
	"casino/game"
	"casino/models"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// joinAttempts bounds how often Join chases a table that closed under it
const joinAttempts = 3

// Config wires a Registry
type Config struct {
	Seats   map[models.GameType]int
	Wallet  game.Wallet
	Stats   StatsRecorder
	Emitter Emitter
	Clock   quartz.Clock

	// NewEngine defaults to game.New.
	NewEngine EngineFactory
	// Seed seeds the per-table random sources. Zero uses the clock.
	Seed int64
}

// JoinRequest names the table to sit at. An unknown TableID opens a new
// table of Game with that id.
type JoinRequest struct {
	Game     models.GameType
	TableID  string
	Name     string
	Mode     models.TableMode
	Seat     int
	Occupant models.Occupant
	Conn     Conn
}

// Registry is the directory of live tables, keyed by game type
type Registry struct {
	mu     sync.RWMutex
	tables map[models.GameType]map[string]*Session
	byID   map[string]*Session
	seeds  *rand.Rand
	// removing counts tables per game whose cleanup is in flight
	removing map[models.GameType]int

	seats     map[models.GameType]int
	wallet    game.Wallet
	stats     StatsRecorder
	emitter   Emitter
	clock     quartz.Clock
	newEngine EngineFactory
}

// NewRegistry creates an empty registry
func NewRegistry(cfg Config) *Registry {
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.NewEngine == nil {
		cfg.NewEngine = game.New
	}
	if cfg.Seed == 0 {
		cfg.Seed = cfg.Clock.Now().UnixNano()
	}

	tables := make(map[models.GameType]map[string]*Session, len(models.GameTypes))
	for _, g := range models.GameTypes {
		tables[g] = make(map[string]*Session)
	}

	return &Registry{
		tables:    tables,
		byID:      make(map[string]*Session),
		removing:  make(map[models.GameType]int),
		seeds:     rand.New(rand.NewSource(cfg.Seed)),
		seats:     cfg.Seats,
		wallet:    cfg.Wallet,
		stats:     cfg.Stats,
		emitter:   cfg.Emitter,
		clock:     cfg.Clock,
		newEngine: cfg.NewEngine,
	}
}

// CreateTable opens a new empty table with a generated id
func (r *Registry) CreateTable(ctx context.Context, gameType models.GameType, name string, mode models.TableMode) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createLocked(ctx, uuid.NewString(), name, gameType, mode)
}

// Join seats a player, creating the table first if the id is unknown
func (r *Registry) Join(ctx context.Context, req JoinRequest) (*Session, models.Seat, error) {
	if req.TableID == "" {
		return nil, models.Seat{}, fmtValidation("table id is required")
	}

	for attempt := 0; attempt < joinAttempts; attempt++ {
		session, err := r.lookupOrCreate(ctx, req)
		if err != nil {
			return nil, models.Seat{}, err
		}

		seat, err := session.Join(ctx, req.Occupant, req.Conn, req.Seat)
		if errors.Is(err, ErrTableClosed) {
			log.WithField("tableID", req.TableID).Debug("Table closed during join, retrying")
			// A closed session always stops right after the op that closed it.
			<-session.Done()
			continue
		}
		if err != nil {
			return nil, models.Seat{}, err
		}
		return session, seat, nil
	}
	return nil, models.Seat{}, ErrTableClosed
}

// Leave clears a seat and removes the table if it is empty and not the last
// one of its game
func (r *Registry) Leave(ctx context.Context, tableID string, seat int, connectionID string) error {
	session, ok := r.Get(tableID)
	if !ok {
		return ErrTableNotFound
	}

	remaining, err := session.Leave(ctx, seat, connectionID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		r.cleanup(ctx, session)
	}
	return nil
}

// Dispatch routes a player action to the table's session
func (r *Registry) Dispatch(ctx context.Context, tableID string, seat int, connectionID string, action game.Action) (*game.Result, error) {
	session, ok := r.Get(tableID)
	if !ok {
		return nil, ErrTableNotFound
	}
	return session.Dispatch(ctx, seat, connectionID, action)
}

// Get returns a live table by id
func (r *Registry) Get(tableID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[tableID]
	return s, ok
}

// Tables lists snapshots of every table of a game, oldest first
func (r *Registry) Tables(ctx context.Context, gameType models.GameType) ([]models.TableInfo, error) {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.tables[gameType]))
	for _, s := range r.tables[gameType] {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	infos := make([]models.TableInfo, 0, len(sessions))
	for _, s := range sessions {
		info, err := s.Info(ctx)
		if errors.Is(err, ErrTableClosed) {
			continue
		}
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos, nil
}

// Count returns the number of live tables of a game
func (r *Registry) Count(gameType models.GameType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables[gameType])
}

// Close stops every session
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.byID {
		s.Stop()
		delete(r.byID, id)
		delete(r.tables[s.Game()], id)
	}
}

func (r *Registry) lookupOrCreate(ctx context.Context, req JoinRequest) (*Session, error) {
	if s, ok := r.Get(req.TableID); ok && !s.stopped() {
		if s.Game() != req.Game {
			return nil, fmtValidation("table %s plays %s, not %s", req.TableID, s.Game(), req.Game)
		}
		return s, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another join may have created it while we waited for the lock.
	if s, ok := r.byID[req.TableID]; ok {
		if !s.stopped() {
			if s.Game() != req.Game {
				return nil, fmtValidation("table %s plays %s, not %s", req.TableID, s.Game(), req.Game)
			}
			return s, nil
		}
		// Closed by a cleanup that has not unregistered it yet.
		r.unregisterLocked(s)
	}

	name := req.Name
	if name == "" {
		name = req.TableID
	}
	return r.createLocked(ctx, req.TableID, name, req.Game, req.Mode)
}

func (r *Registry) createLocked(ctx context.Context, id, name string, gameType models.GameType, mode models.TableMode) (*Session, error) {
	if !gameType.Valid() {
		return nil, fmtValidation("unknown game %q", gameType)
	}
	if mode == "" {
		mode = models.ModeMultiplayer
	}
	if !mode.Valid() {
		return nil, fmtValidation("unknown table mode %q", mode)
	}
	seats := r.seats[gameType]
	if seats <= 0 {
		return nil, fmt.Errorf("no seat count configured for %s", gameType)
	}

	s := newSession(sessionConfig{
		id:        id,
		name:      name,
		game:      gameType,
		mode:      mode,
		seats:     seats,
		createdAt: r.clock.Now(),
		wallet:    r.wallet,
		stats:     r.stats,
		emitter:   r.emitter,
		newEngine: r.newEngine,
		rng:       rand.New(rand.NewSource(r.seeds.Int63())),
	})
	r.tables[gameType][id] = s
	r.byID[id] = s

	log.WithFields(log.Fields{
		"tableID": id,
		"game":    gameType,
		"mode":    mode,
		"seats":   seats,
	}).Info("Table created")

	r.emitter.Emit(ctx, events.TableCreatedEvent{TableID: id, Name: name, Game: gameType, Mode: mode})
	return s, nil
}

// cleanup removes an empty table unless it is the last of its game. The
// registry lock is not held while the table's own queue is drained.
func (r *Registry) cleanup(ctx context.Context, s *Session) {
	r.mu.Lock()
	if r.byID[s.ID()] != s || len(r.tables[s.Game()])-r.removing[s.Game()] <= 1 {
		r.mu.Unlock()
		return
	}
	r.removing[s.Game()]++
	r.mu.Unlock()

	closed, err := s.closeIfEmpty(ctx)

	r.mu.Lock()
	r.removing[s.Game()]--
	if closed {
		r.unregisterLocked(s)
	}
	r.mu.Unlock()

	if err != nil || !closed {
		return
	}

	log.WithFields(log.Fields{
		"tableID": s.ID(),
		"game":    s.Game(),
	}).Info("Removed empty table")

	r.emitter.Emit(ctx, events.TableRemovedEvent{TableID: s.ID(), Game: s.Game()})
}

// unregisterLocked drops s from the directory if it is still the table under
// its id
func (r *Registry) unregisterLocked(s *Session) {
	if r.byID[s.ID()] != s {
		return
	}
	delete(r.byID, s.ID())
	delete(r.tables[s.Game()], s.ID())
}
