package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"casino/game"
	"casino/models"
	"casino/table"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Identity headers set by the fronting auth proxy
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

const defaultTransactionLimit = 50

// Registry is the table surface the gateway routes to
type Registry interface {
	CreateTable(ctx context.Context, gameType models.GameType, name string, mode models.TableMode) (*table.Session, error)
	Join(ctx context.Context, req table.JoinRequest) (*table.Session, models.Seat, error)
	Leave(ctx context.Context, tableID string, seat int, connectionID string) error
	Dispatch(ctx context.Context, tableID string, seat int, connectionID string, action game.Action) (*game.Result, error)
	Tables(ctx context.Context, gameType models.GameType) ([]models.TableInfo, error)
}

// UserService registers players on first connect
type UserService interface {
	GetOrCreateUser(ctx context.Context, id int64, displayName string) (*models.User, error)
}

// WalletService answers balance and history queries and takes deposits
type WalletService interface {
	Balance(ctx context.Context, userID int64) (decimal.Decimal, error)
	Transactions(ctx context.Context, userID int64, limit int) ([]*models.LedgerEntry, error)
	AddFunds(ctx context.Context, userID int64, amount decimal.Decimal) (*models.LedgerEntry, error)
}

// StatsService answers stats queries
type StatsService interface {
	UserStats(ctx context.Context, userID int64) ([]*models.GameStats, error)
}

// RejectionRecorder counts rejected requests
type RejectionRecorder interface {
	RecordActionRejected(game models.GameType, kind models.ErrorKind)
}

// Gateway manages WebSocket connections and routes their frames to tables
type Gateway struct {
	registry   Registry
	users      UserService
	wallet     WalletService
	stats      StatsService
	rejections RejectionRecorder
	upgrader   websocket.Upgrader

	mu          sync.RWMutex
	connections map[string]*Connection
	nextConnID  uint64
}

// New creates a new Gateway. rejections may be nil.
func New(registry Registry, users UserService, wallet WalletService, stats StatsService, rejections RejectionRecorder) *Gateway {
	return &Gateway{
		registry:   registry,
		users:      users,
		wallet:     wallet,
		stats:      stats,
		rejections: rejections,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin is enforced by the proxy that sets the identity headers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		connections: make(map[string]*Connection),
	}
}

// HandleWebSocket authenticates the request and upgrades it
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.Header.Get(HeaderUserID), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "missing or invalid "+HeaderUserID, http.StatusUnauthorized)
		return
	}
	name := strings.TrimSpace(r.Header.Get(HeaderUserName))
	if name == "" {
		name = fmt.Sprintf("player-%d", userID)
	}

	user, err := g.users.GetOrCreateUser(r.Context(), userID, name)
	if err != nil {
		log.WithFields(log.Fields{
			"userID": userID,
			"error":  err,
		}).Error("Failed to load user for connection")
		http.Error(w, "failed to load user", http.StatusInternalServerError)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	g.mu.Lock()
	g.nextConnID++
	c := newConnection(fmt.Sprintf("conn_%d", g.nextConnID), user, ws, g)
	g.connections[c.id] = c
	total := len(g.connections)
	g.mu.Unlock()

	log.WithFields(log.Fields{
		"connectionID": c.id,
		"userID":       user.ID,
		"total":        total,
	}).Info("Client connected")

	go c.writePump()
	go c.readPump()
}

// ConnectionCount returns the number of live connections
func (g *Gateway) ConnectionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.connections)
}

// CloseAll disconnects every client
func (g *Gateway) CloseAll() {
	g.mu.RLock()
	conns := make([]*Connection, 0, len(g.connections))
	for _, c := range g.connections {
		conns = append(conns, c)
	}
	g.mu.RUnlock()

	for _, c := range conns {
		c.close()
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.connections, c.id)
	log.WithFields(log.Fields{
		"connectionID": c.id,
		"total":        len(g.connections),
	}).Info("Client disconnected")
}

func (g *Gateway) recordRejection(gameType models.GameType, err error) {
	if g.rejections != nil {
		g.rejections.RecordActionRejected(gameType, models.KindOf(err))
	}
}
