// Package ws streams incident activity to browser dashboards over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kilianp07/eventrescue/core/events"
	"github.com/kilianp07/eventrescue/infra/logger"
	"github.com/kilianp07/eventrescue/internal/eventbus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// Hub fans bus events out to connected WebSocket clients. Slow clients have
// messages dropped rather than stalling the broadcast.
type Hub struct {
	bus    eventbus.EventBus
	logger logger.Logger

	mu      sync.RWMutex
	clients map[uuid.UUID]*client
}

// NewHub creates a hub bound to the event bus.
func NewHub(bus eventbus.EventBus) *Hub {
	return &Hub{
		bus:     bus,
		logger:  logger.New("ws_hub"),
		clients: make(map[uuid.UUID]*client),
	}
}

// ServeHTTP upgrades the connection and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("upgrade failed: %v", err)
		return
	}

	c := &client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, 32),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Debugf("client %s connected", c.id)

	go h.readPump(c)
	go h.writePump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		h.mu.Unlock()
		close(c.done)
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

type frame struct {
	Kind string      `json:"kind"`
	At   time.Time   `json:"at"`
	Data interface{} `json:"data"`
}

// Run bridges the event bus to connected clients until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ch := h.bus.SubscribeBuffered(64)
	defer h.bus.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(ev)
		}
	}
}

func (h *Hub) broadcast(ev eventbus.Event) {
	msg, err := json.Marshal(frame{Kind: kindOf(ev), At: time.Now().UTC(), Data: ev})
	if err != nil {
		h.logger.Errorf("encode event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func kindOf(ev eventbus.Event) string {
	switch ev.(type) {
	case events.IncidentCreated:
		return "incident_created"
	case events.DispatchDecided:
		return "dispatch_decided"
	case events.ResponderAssigned:
		return "responder_assigned"
	case events.ResponderReleased:
		return "responder_released"
	case events.IncidentResolved:
		return "incident_resolved"
	default:
		return fmt.Sprintf("%T", ev)
	}
}
