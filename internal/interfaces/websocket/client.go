package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"brain2-canvas/internal/middleware"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024

	sendBufferSize = 256

	// Time allowed to handle one inbound frame
	handleTimeout = 30 * time.Second
)

// Client is one WebSocket connection watching a diagram.
type Client struct {
	id        string
	diagramID string
	hub       *Hub
	conn      *websocket.Conn
	logger    *zap.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewUpgrader returns an upgrader accepting the given origins. An empty
// list or "*" accepts any origin.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
}

// Serve upgrades the request and attaches the connection to diagramID.
func (h *Hub) Serve(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request, diagramID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := newClient(diagramID, h, conn, middleware.Logger(r.Context(), h.logger))
	c.start()
	return nil
}

func newClient(diagramID string, hub *Hub, conn *websocket.Conn, logger *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:        id,
		diagramID: diagramID,
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		logger: logger.With(
			zap.String("diagram_id", diagramID),
			zap.String("connection_id", id),
		),
	}
}

func (c *Client) start() {
	// Queue the greeting before registering so nothing else is sent first.
	greeting, err := NewMessage(c.diagramID, TypeConnectionEstablished, map[string]string{
		"connectionId": c.id,
		"diagramId":    c.diagramID,
	})
	if err == nil {
		c.enqueue(greeting)
	}

	select {
	case c.hub.register <- c:
	case <-c.hub.ctx.Done():
		c.conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (c *Client) enqueue(m *Message) {
	data, err := json.Marshal(m)
	if err != nil {
		c.logger.Error("failed to marshal reply", zap.Error(err))
		return
	}
	if !c.trySend(data) {
		c.logger.Warn("reply dropped", zap.String("type", m.Type))
	}
}

// trySend queues data without blocking. It fails once the client is closed
// or its buffer is full.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump reads frames until the connection fails.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
		c.logger.Debug("read pump stopped")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.logger.Debug("binary frame ignored")
			continue
		}
		c.handle(message)
	}
}

func (c *Client) handle(message []byte) {
	message = bytes.TrimSpace(message)
	if bytes.Equal(message, []byte(`{"type":"pong"}`)) || c.hub.onMessage == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.hub.ctx, handleTimeout)
	defer cancel()
	if reply := c.hub.onMessage(ctx, c.diagramID, message); reply != nil {
		c.enqueue(reply)
	}
}

// writePump writes queued frames and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger.Debug("write pump stopped")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("failed to write message", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
