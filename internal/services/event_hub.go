package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sitechron/fieldsync/internal/observability"
)

// Event types broadcast to UI clients
const (
	EventTimeEntryStarted    = "time_entry_started"
	EventTimeEntryStopped    = "time_entry_stopped"
	EventBreakToggled        = "break_toggled"
	EventSyncStatusChanged   = "sync_status_changed"
	EventConnectivityChanged = "connectivity_changed"
	EventGeofenceWarning     = "geofence_warning"
)

// Event is one engine event as delivered to subscribers
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WSClient represents a connected UI client
type WSClient struct {
	ID         string
	Conn       *websocket.Conn
	Send       chan []byte
	hub        *EventHub
	mu         sync.Mutex
	closedOnce sync.Once
}

// EventHub fans engine events out to connected UI clients over WebSocket and
// to in-process subscribers (used by tests and the status endpoint)
type EventHub struct {
	clients     map[*WSClient]bool
	subscribers map[chan Event]bool
	register    chan *WSClient
	unregister  chan *WSClient
	broadcast   chan Event
	mu          sync.RWMutex
}

// NewEventHub creates a new event hub
func NewEventHub() *EventHub {
	return &EventHub{
		clients:     make(map[*WSClient]bool),
		subscribers: make(map[chan Event]bool),
		register:    make(chan *WSClient),
		unregister:  make(chan *WSClient),
		broadcast:   make(chan Event, 256),
	}
}

// Run starts the hub's main loop
func (h *EventHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			observability.Infof("UI client connected: %s", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			observability.Infof("UI client disconnected: %s", client.ID)

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				observability.Errorf("Error marshaling event %s: %v", event.Type, err)
				continue
			}

			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.Send <- data:
				default:
					// Client buffer full, drop the connection
					go func(c *WSClient) {
						h.unregister <- c
					}(client)
				}
			}
			for sub := range h.subscribers {
				select {
				case sub <- event:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish broadcasts an event to every connected client and subscriber
func (h *EventHub) Publish(eventType string, payload interface{}) {
	h.broadcast <- Event{Type: eventType, Payload: payload}
}

// Subscribe registers an in-process listener. The returned channel drops
// events if the listener falls behind; call the cancel func when done.
func (h *EventHub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)

	h.mu.Lock()
	h.subscribers[ch] = true
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subscribers, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// Register adds a client to the hub
func (h *EventHub) Register(client *WSClient) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *EventHub) Unregister(client *WSClient) {
	h.unregister <- client
}

// ClientCount returns the number of connected UI clients
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NewClient creates a new WebSocket client connected to this hub
func (h *EventHub) NewClient(id string, conn *websocket.Conn) *WSClient {
	return &WSClient{
		ID:   id,
		Conn: conn,
		Send: make(chan []byte, 256),
		hub:  h,
	}
}

// Close closes the client connection
func (c *WSClient) Close() {
	c.closedOnce.Do(func() {
		c.hub.Unregister(c)
		c.Conn.Close()
	})
}

// WritePump pumps events from the hub to the websocket connection
func (c *WSClient) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			c.mu.Lock()
			err := c.Conn.WriteMessage(websocket.TextMessage, message)
			c.mu.Unlock()

			if err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump drains the websocket connection; the UI stream is one-way, so
// inbound frames only keep the connection alive
func (c *WSClient) ReadPump() {
	defer c.Close()

	c.Conn.SetReadLimit(8 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				observability.Errorf("WebSocket error: %v", err)
			}
			break
		}
	}
}
