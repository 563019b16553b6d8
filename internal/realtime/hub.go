// Package realtime fans queue snapshots out to display clients.
package realtime

import (
	"context"
	"encoding/json"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"campus-queue/internal/logging"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type subscription struct {
	queueID string
	conn    Conn
}

type message struct {
	queueID string
	payload []byte
	final   bool
}

// Hub tracks display clients per queue. All client bookkeeping happens on
// the Run goroutine.
type Hub struct {
	register   chan subscription
	unregister chan subscription
	broadcast  chan message
	clients    map[string]map[Conn]bool
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		register:   make(chan subscription),
		unregister: make(chan subscription),
		broadcast:  make(chan message, 64),
		clients:    make(map[string]map[Conn]bool),
		logger:     logging.OrNop(logger),
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every remaining client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, conns := range h.clients {
				for c := range conns {
					_ = c.Close()
				}
			}
			h.clients = make(map[string]map[Conn]bool)
			return
		case s := <-h.register:
			conns := h.clients[s.queueID]
			if conns == nil {
				conns = make(map[Conn]bool)
				h.clients[s.queueID] = conns
			}
			conns[s.conn] = true
			h.logger.Debug("display registered", zap.String("queue_id", s.queueID), zap.Int("clients", len(conns)))
		case s := <-h.unregister:
			h.drop(s.queueID, s.conn)
		case m := <-h.broadcast:
			for c := range h.clients[m.queueID] {
				if err := c.WriteMessage(websocket.TextMessage, m.payload); err != nil {
					h.logger.Debug("display write failed", zap.String("queue_id", m.queueID), zap.Error(err))
					h.drop(m.queueID, c)
				}
			}
			if m.final {
				for c := range h.clients[m.queueID] {
					h.drop(m.queueID, c)
				}
			}
		}
	}
}

func (h *Hub) drop(queueID string, c Conn) {
	conns := h.clients[queueID]
	if !conns[c] {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.clients, queueID)
	}
	_ = c.Close()
}

func (h *Hub) Register(ctx context.Context, queueID string, c Conn) {
	select {
	case h.register <- subscription{queueID: queueID, conn: c}:
	case <-ctx.Done():
	}
}

func (h *Hub) Unregister(ctx context.Context, queueID string, c Conn) {
	select {
	case h.unregister <- subscription{queueID: queueID, conn: c}:
	case <-ctx.Done():
	}
}

// Publish sends v as JSON to every display of queueID. A full buffer
// drops the update; the next mutation publishes a fresh snapshot.
func (h *Hub) Publish(queueID string, v any) {
	h.send(queueID, v, false)
}

// CloseQueue sends v to every display of queueID and then disconnects
// them.
func (h *Hub) CloseQueue(queueID string, v any) {
	h.send(queueID, v, true)
}

func (h *Hub) send(queueID string, v any, final bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("marshal display update", zap.String("queue_id", queueID), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- message{queueID: queueID, payload: payload, final: final}:
	default:
		h.logger.Warn("display update dropped", zap.String("queue_id", queueID), zap.Bool("final", final))
	}
}
