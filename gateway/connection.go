package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"casino/models"
	"casino/table"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 65536
	sendBuffer     = 256
)

var errNotAtTable = fmt.Errorf("%w: not at a table", models.ErrPrecondition)

// Connection is one client socket. It may sit at one table at a time.
type Connection struct {
	id      string
	userID  int64
	name    string
	ws      *websocket.Conn
	gateway *Gateway

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// Owned by readPump.
	tableID string
	game    models.GameType
	seat    int
	seated  bool
}

func newConnection(id string, user *models.User, ws *websocket.Conn, g *Gateway) *Connection {
	return &Connection{
		id:      id,
		userID:  user.ID,
		name:    user.DisplayName,
		ws:      ws,
		gateway: g,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
	}
}

// Send queues a table message. Messages to a full or closed connection are
// dropped.
func (c *Connection) Send(msg table.Message) {
	c.enqueue(msg)
}

func (c *Connection) enqueue(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.WithFields(log.Fields{
			"connectionID": c.id,
			"error":        err,
		}).Error("Failed to encode frame")
		return
	}

	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- data:
	case <-c.done:
	default:
		log.WithField("connectionID", c.id).Warn("Send buffer full, dropping frame")
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

func (c *Connection) readPump() {
	defer func() {
		if err := c.leaveTable(context.Background()); err != nil {
			log.WithFields(log.Fields{
				"connectionID": c.id,
				"error":        err,
			}).Error("Failed to leave table on disconnect")
		}
		c.gateway.removeConnection(c)
		c.close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithFields(log.Fields{
					"connectionID": c.id,
					"error":        err,
				}).Warn("WebSocket read error")
			}
			return
		}

		frame, err := decodeFrame(data)
		if err != nil {
			c.sendError(fmt.Errorf("%w: malformed frame: %v", models.ErrValidation, err))
			continue
		}
		c.handleFrame(context.Background(), frame)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (c *Connection) handleFrame(ctx context.Context, frame ClientFrame) {
	log.WithFields(log.Fields{
		"connectionID": c.id,
		"userID":       c.userID,
		"frame":        frame.Type,
	}).Debug("Received frame")

	var err error
	switch frame.Type {
	case FrameJoin:
		err = c.handleJoin(ctx, frame)
	case FrameLeave:
		err = c.handleLeave(ctx)
	case FrameAction:
		err = c.handleAction(ctx, frame)
	case FrameCreateTable:
		err = c.handleCreateTable(ctx, frame)
	case FrameListTables:
		err = c.handleListTables(ctx, frame)
	case FrameBalance:
		err = c.handleBalance(ctx)
	case FrameStats:
		err = c.handleStats(ctx)
	case FrameTransactions:
		err = c.handleTransactions(ctx, frame)
	case FrameAddFunds:
		err = c.handleAddFunds(ctx, frame)
	default:
		err = fmt.Errorf("%w: unknown frame type %q", models.ErrValidation, frame.Type)
	}

	if err != nil {
		gameType := c.game
		if gameType == "" {
			gameType = frame.Game
		}
		c.gateway.recordRejection(gameType, err)
		c.sendError(err)
	}
}

func (c *Connection) handleJoin(ctx context.Context, frame ClientFrame) error {
	if c.seated {
		return fmt.Errorf("%w: already at table %s", models.ErrPrecondition, c.tableID)
	}

	seat := table.AutoSeat
	if frame.Seat != nil {
		seat = *frame.Seat
	}

	session, seated, err := c.gateway.registry.Join(ctx, table.JoinRequest{
		Game:    frame.Game,
		TableID: frame.TableID,
		Name:    frame.Name,
		Mode:    frame.Mode,
		Seat:    seat,
		Occupant: models.Occupant{
			ConnectionID: c.id,
			UserID:       c.userID,
			DisplayName:  c.name,
		},
		Conn: c,
	})
	if err != nil {
		return err
	}

	c.tableID = session.ID()
	c.game = session.Game()
	c.seat = seated.Index
	c.seated = true

	c.enqueue(ServerFrame{Type: FrameJoined, TableID: c.tableID, Payload: seated})
	return nil
}

func (c *Connection) handleLeave(ctx context.Context) error {
	if !c.seated {
		return errNotAtTable
	}
	tableID := c.tableID
	if err := c.leaveTable(ctx); err != nil {
		return err
	}
	c.enqueue(ServerFrame{Type: FrameLeft, TableID: tableID})
	return nil
}

// leaveTable gives up the seat. A table that already went away counts as
// left.
func (c *Connection) leaveTable(ctx context.Context) error {
	if !c.seated {
		return nil
	}
	err := c.gateway.registry.Leave(ctx, c.tableID, c.seat, c.id)
	if err != nil && !errors.Is(err, table.ErrTableNotFound) && !errors.Is(err, table.ErrTableClosed) {
		return err
	}
	c.tableID = ""
	c.game = ""
	c.seated = false
	return nil
}

func (c *Connection) handleAction(ctx context.Context, frame ClientFrame) error {
	if !c.seated {
		return errNotAtTable
	}
	if frame.Action == nil {
		return fmt.Errorf("%w: action frame without an action", models.ErrValidation)
	}
	_, err := c.gateway.registry.Dispatch(ctx, c.tableID, c.seat, c.id, *frame.Action)
	return err
}

func (c *Connection) handleCreateTable(ctx context.Context, frame ClientFrame) error {
	session, err := c.gateway.registry.CreateTable(ctx, frame.Game, frame.Name, frame.Mode)
	if err != nil {
		return err
	}
	info, err := session.Info(ctx)
	if err != nil {
		return err
	}
	c.enqueue(ServerFrame{Type: FrameCreated, TableID: info.ID, Payload: info})
	return nil
}

func (c *Connection) handleListTables(ctx context.Context, frame ClientFrame) error {
	if !frame.Game.Valid() {
		return fmt.Errorf("%w: unknown game %q", models.ErrValidation, frame.Game)
	}
	infos, err := c.gateway.registry.Tables(ctx, frame.Game)
	if err != nil {
		return err
	}
	c.enqueue(ServerFrame{Type: FrameTables, Payload: infos})
	return nil
}

func (c *Connection) handleBalance(ctx context.Context) error {
	balance, err := c.gateway.wallet.Balance(ctx, c.userID)
	if err != nil {
		return err
	}
	c.enqueue(ServerFrame{Type: FrameBalance, Payload: map[string]any{"balance": balance}})
	return nil
}

func (c *Connection) handleStats(ctx context.Context) error {
	stats, err := c.gateway.stats.UserStats(ctx, c.userID)
	if err != nil {
		return err
	}
	c.enqueue(ServerFrame{Type: FrameStats, Payload: stats})
	return nil
}

func (c *Connection) handleTransactions(ctx context.Context, frame ClientFrame) error {
	limit := frame.Limit
	if limit <= 0 {
		limit = defaultTransactionLimit
	}
	entries, err := c.gateway.wallet.Transactions(ctx, c.userID, limit)
	if err != nil {
		return err
	}
	c.enqueue(ServerFrame{Type: FrameTransactions, Payload: entries})
	return nil
}

func (c *Connection) handleAddFunds(ctx context.Context, frame ClientFrame) error {
	entry, err := c.gateway.wallet.AddFunds(ctx, c.userID, frame.Amount)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"connectionID": c.id,
		"userID":       c.userID,
		"amount":       entry.Amount.String(),
	}).Info("Funds added")
	c.enqueue(ServerFrame{Type: FrameFunded, Payload: map[string]any{
		"entry":   entry,
		"balance": entry.BalanceAfter,
	}})
	return nil
}

func (c *Connection) sendError(err error) {
	kind := models.KindOf(err)
	msg := err.Error()
	if kind == models.KindInfrastructure {
		log.WithFields(log.Fields{
			"connectionID": c.id,
			"userID":       c.userID,
			"error":        err,
		}).Error("Request failed")
		msg = "internal error, please retry"
	}
	c.enqueue(ErrorFrame{Type: FrameError, Code: kind, Message: msg})
}
