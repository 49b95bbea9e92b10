package websocket

import (
	"log/slog"
	"sync"

	"github.com/princekumarofficial/chat-media-service/internal/types"
)

// Hub maintains the set of active console sessions and routes events to them
type Hub struct {
	// Registered clients mapped by session ID
	clients map[string]*Client

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex to protect clients map
	mu sync.RWMutex

	// Channel of events addressed to sessions
	outbound chan *SessionMessage

	done chan struct{}
}

// SessionMessage is an event addressed to one session
type SessionMessage struct {
	SessionID string       `json:"session_id"`
	Event     *types.Event `json:"event"`
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbound:   make(chan *SessionMessage, 1024),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.sessionID] = client
			h.mu.Unlock()
			slog.Info("WebSocket session connected",
				slog.String("session_id", client.sessionID),
				slog.String("user_id", client.userID))

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.outbound:
			h.deliver(message)

		case <-h.done:
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop disconnects every session and ends Run.
func (h *Hub) Stop() {
	close(h.done)
}

// RegisterClient registers a new client
func (h *Hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// UnregisterClient unregisters a client
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// SendToSession queues an event for one session
func (h *Hub) SendToSession(sessionID string, event *types.Event) {
	select {
	case h.outbound <- &SessionMessage{SessionID: sessionID, Event: event}:
	default:
		slog.Warn("Outbound channel is full, dropping message", slog.String("session_id", sessionID))
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.clients[client.sessionID]; ok && current == client {
		delete(h.clients, client.sessionID)
		close(client.send)
		slog.Info("WebSocket session disconnected", slog.String("session_id", client.sessionID))
	}
}

func (h *Hub) deliver(message *SessionMessage) {
	h.mu.RLock()
	client, ok := h.clients[message.SessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	if err := client.SendEvent(message.Event); err != nil {
		slog.Error("Failed to send event to session",
			slog.String("session_id", message.SessionID),
			slog.String("error", err.Error()))
		h.remove(client)
	}
}

// IsSessionConnected checks if a session is currently connected
func (h *Hub) IsSessionConnected(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, exists := h.clients[sessionID]
	return exists
}

// GetClientCount returns the number of connected sessions
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
