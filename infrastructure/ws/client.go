package ws

import (
	"comms-lab/domain"
	"comms-lab/errors"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxInboundSize = 4096
)

// Client is one live WebSocket connection of an authenticated user.
// Outbound payloads go through a bounded buffer drained by writePump,
// a full buffer drops the payload for this connection only.
type Client struct {
	id        string
	userID    domain.UserID
	conn      *websocket.Conn
	log       *slog.Logger
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(log *slog.Logger, userID domain.UserID, conn *websocket.Conn, bufferSize int) *Client {
	id := uuid.NewString()
	return &Client{
		id:     id,
		userID: userID,
		conn:   conn,
		log:    log.With("connection_id", id, "user_id", userID),
		send:   make(chan []byte, bufferSize),
		done:   make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

// Send queues the payload without blocking on the peer.
func (c *Client) Send(ctx context.Context, payload []byte) error {
	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return errors.ErrConnectionOverflow
	}
}

// Close is safe to call from both pumps and the handler.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// readPump only serves control frames, inbound data frames are discarded.
func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Warn("Unexpected websocket close", "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("Write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("Ping failed", "error", err)
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
