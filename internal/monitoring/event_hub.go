package monitoring

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"dcspace-backend/internal/metrics"
	"dcspace-backend/internal/models"

	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// EventHub fans domain events out to connected websocket clients (the
// admin operations feed). It satisfies services.EventPublisher.
type EventHub struct {
	clients    map[*websocket.Conn]bool
	clientsMux sync.Mutex
	broadcast  chan models.RentEvent
	upgrader   websocket.Upgrader
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan models.RentEvent, 256),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Publish queues event for delivery. Events are dropped when the queue is
// full; the feed is informational and never blocks a transition.
func (h *EventHub) Publish(event models.RentEvent) {
	select {
	case h.broadcast <- event:
	default:
		log.Printf("[EventHub] Queue full, dropping %s for rent %s", event.Type, event.RentID)
	}
}

// Run delivers queued events until ctx is cancelled, then disconnects every
// client.
func (h *EventHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.clientsMux.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			metrics.EventHubClients.Set(0)
			h.clientsMux.Unlock()
			return
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *EventHub) deliver(event models.RentEvent) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(event); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
	metrics.EventHubClients.Set(float64(len(h.clients)))
}

// ServeWS upgrades the request and keeps the client registered until it
// disconnects.
func (h *EventHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("[EventHub] WebSocket upgrade error:", err)
		return
	}
	defer conn.Close()

	h.clientsMux.Lock()
	h.clients[conn] = true
	metrics.EventHubClients.Set(float64(len(h.clients)))
	h.clientsMux.Unlock()

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.clientsMux.Lock()
			delete(h.clients, conn)
			metrics.EventHubClients.Set(float64(len(h.clients)))
			h.clientsMux.Unlock()
			return
		}
	}
}

func (h *EventHub) ClientCount() int {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	return len(h.clients)
}
