// Package websocket pushes scene updates to clients watching a diagram and
// accepts event batches over the same connection.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	apperrors "brain2-canvas/internal/errors"
	"brain2-canvas/internal/observability"
)

// Message types sent to clients.
const (
	TypeConnectionEstablished = "CONNECTION_ESTABLISHED"
	TypeSceneUpdated          = "SCENE_UPDATED"
	TypeDiagramClosed         = "DIAGRAM_CLOSED"
	TypeError                 = "ERROR"
	TypePing                  = "ping"
)

// Message is the envelope of every frame sent to a client.
type Message struct {
	DiagramID string          `json:"-"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NewMessage marshals data into an envelope for diagramID.
func NewMessage(diagramID, messageType string, data any) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, apperrors.Internal(apperrors.CodeInternalError, "marshal websocket message").
				WithCause(err).Build()
		}
		raw = b
	}
	return &Message{DiagramID: diagramID, Type: messageType, Data: raw, Timestamp: time.Now().Unix()}, nil
}

// MessageHandler handles one inbound text frame for a diagram. A non-nil
// reply is sent back to the sending client only.
type MessageHandler func(ctx context.Context, diagramID string, payload []byte) *Message

// Hub tracks the clients connected to each diagram.
type Hub struct {
	connections map[string]map[*Client]bool // diagramID -> clients
	mu          sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message

	onMessage MessageHandler

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewHub creates a hub. metrics may be nil.
func NewHub(logger *zap.Logger, metrics *observability.Collector) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		connections: make(map[string]map[*Client]bool),
		register:    make(chan *Client, 100),
		unregister:  make(chan *Client, 100),
		broadcast:   make(chan *Message, 1000),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		logger:      logger,
		metrics:     metrics,
	}
}

// OnMessage sets the handler for inbound frames. Call before Run.
func (h *Hub) OnMessage(fn MessageHandler) {
	h.onMessage = fn
}

// Run is the hub's event loop. It returns after Stop.
func (h *Hub) Run() {
	h.running.Store(true)
	defer close(h.done)
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case m := <-h.broadcast:
			h.deliver(m)
		case <-ticker.C:
			h.ping()
		}
	}
}

// Stop closes every connection and waits for a running Run to return.
func (h *Hub) Stop() {
	h.logger.Info("stopping websocket hub")
	h.cancel()
	if h.running.Load() {
		<-h.done
	}
}

// Broadcast queues data for every client of diagramID. It never blocks
// longer than the hub's lifetime.
func (h *Hub) Broadcast(diagramID, messageType string, data any) error {
	m, err := NewMessage(diagramID, messageType, data)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- m:
		return nil
	case <-h.ctx.Done():
		return apperrors.Unavailable(apperrors.CodeInternalError, "websocket hub stopped").Build()
	case <-time.After(5 * time.Second):
		return apperrors.Unavailable(apperrors.CodeInternalError, "broadcast queue full").
			WithResource(diagramID).Build()
	}
}

// ConnectionCount returns the number of clients watching diagramID.
func (h *Hub) ConnectionCount(diagramID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[diagramID])
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.connections[c.diagramID] == nil {
		h.connections[c.diagramID] = make(map[*Client]bool)
	}
	h.connections[c.diagramID][c] = true
	if h.metrics != nil {
		h.metrics.WebSocketClients.Inc()
	}
	h.logger.Info("client registered",
		zap.String("diagram_id", c.diagramID),
		zap.String("connection_id", c.id),
		zap.Int("diagram_connections", len(h.connections[c.diagramID])),
	)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.connections[c.diagramID]
	if !ok || !clients[c] {
		return
	}
	delete(clients, c)
	c.closeSend()
	if len(clients) == 0 {
		delete(h.connections, c.diagramID)
	}
	if h.metrics != nil {
		h.metrics.WebSocketClients.Dec()
	}
	h.logger.Info("client unregistered",
		zap.String("diagram_id", c.diagramID),
		zap.String("connection_id", c.id),
		zap.Int("remaining", len(clients)),
	)
}

func (h *Hub) deliver(m *Message) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.connections[m.DiagramID]))
	for c := range h.connections[m.DiagramID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(m)
	if err != nil {
		h.logger.Error("failed to marshal broadcast", zap.Error(err), zap.String("type", m.Type))
		return
	}
	for _, c := range clients {
		if !c.trySend(data) {
			h.logger.Warn("closing slow client",
				zap.String("diagram_id", c.diagramID),
				zap.String("connection_id", c.id),
			)
			h.remove(c)
			c.conn.Close()
		}
	}
}

func (h *Hub) ping() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, clients := range h.connections {
		for c := range clients {
			c.trySend([]byte(`{"type":"ping"}`))
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, clients := range h.connections {
		for c := range clients {
			c.closeSend()
			c.conn.Close()
			if h.metrics != nil {
				h.metrics.WebSocketClients.Dec()
			}
		}
		delete(h.connections, id)
	}
	h.logger.Info("all websocket connections closed")
}
