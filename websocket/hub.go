package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"video-incident-service/models"

	"github.com/apex/log"
)

// Hub manages WebSocket connections and per-session broadcasting.
// Each client listens to exactly one session; session events (state
// transitions, seek commands, analysis completion) are pushed only to
// that session's listeners.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound session events
	broadcast chan sessionMessage

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// Mutex for thread-safe operations
	mutex sync.RWMutex

	// Statistics
	connectedClients int
}

type sessionMessage struct {
	sessionID string
	payload   []byte
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan sessionMessage, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mutex.Lock()
			h.clients[client] = true
			h.connectedClients = len(h.clients)
			h.mutex.Unlock()
			log.WithField("session", client.sessionID).
				Infof("listener connected, total clients: %d", h.connectedClients)

		case client := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.connectedClients = len(h.clients)
			}
			h.mutex.Unlock()
			log.WithField("session", client.sessionID).
				Infof("listener disconnected, total clients: %d", h.connectedClients)

		case message := <-h.broadcast:
			h.mutex.RLock()
			for client := range h.clients {
				if client.sessionID != message.sessionID {
					continue
				}
				select {
				case client.send <- message.payload:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.connectedClients = len(h.clients)
			h.mutex.RUnlock()
		}
	}
}

// BroadcastToSession pushes one event to every listener of a session.
func (h *Hub) BroadcastToSession(sessionID, eventType string, data interface{}) {
	message := models.PushMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	payload, err := json.Marshal(message)
	if err != nil {
		log.Errorf("failed to marshal push message: %v", err)
		return
	}

	h.broadcast <- sessionMessage{sessionID: sessionID, payload: payload}
}

// ConnectedClients returns the number of connected listeners.
func (h *Hub) ConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.connectedClients
}
