package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"stocksim/config"
	"stocksim/state"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  config.WSReadBufferSize,
	WriteBufferSize: config.WSWriteBufferSize,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ClientMessage is the inbound command envelope. Data is decoded into a
// typed payload per command before it reaches the engine.
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client is one connected websocket with its room subscriptions.
type Client struct {
	ID            string
	Conn          *websocket.Conn
	Subscriptions map[string]bool // room:<code>
	Send          chan []byte
	mu            sync.RWMutex
}

// Hub owns the client set and routes room events to subscribers. The room
// registry is injected at construction; there is no ambient global state.
type Hub struct {
	registry *state.Registry

	clients      map[*Client]bool
	clientsMutex sync.RWMutex

	register   chan *Client
	unregister chan *Client
}

// NewHub creates a hub bound to a room registry.
func NewHub(registry *state.Registry) *Hub {
	return &Hub{
		registry:   registry,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Registry exposes the injected registry for the API layer.
func (h *Hub) Registry() *state.Registry {
	return h.registry
}

// Run is the central client dispatcher.
func (h *Hub) Run() {
	log.Println("🚀 WebSocket hub started")

	for {
		select {
		case client := <-h.register:
			h.clientsMutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.clientsMutex.Unlock()
			log.Printf("✅ Client connected: %s (Total: %d)", client.ID, total)

		case client := <-h.unregister:
			h.clientsMutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			total := len(h.clients)
			h.clientsMutex.Unlock()
			log.Printf("👋 Client disconnected: %s (Total: %d)", client.ID, total)
		}
	}
}

// BroadcastToRoom sends an event to every client subscribed to the room.
// This is the RoomEmitFunc injected into the registry.
func (h *Hub) BroadcastToRoom(roomCode, event string, data interface{}) {
	payload, err := json.Marshal(map[string]interface{}{
		"type": event,
		"data": data,
	})
	if err != nil {
		log.Printf("❌ Failed to marshal %s for room %s: %v", event, roomCode, err)
		return
	}

	// Ended rooms get their final leaderboard archived off the hot path
	if event == "game-end" {
		go h.archiveGameResult(roomCode, data)
	}

	channel := roomChannel(roomCode)

	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()

	for client := range h.clients {
		client.mu.RLock()
		subscribed := client.Subscriptions[channel]
		client.mu.RUnlock()

		if subscribed {
			select {
			case client.Send <- payload:
			default:
				// Send buffer full, drop rather than block the room
				log.Printf("⚠️  Client %s send buffer full, skipping %s", client.ID, event)
			}
		}
	}
}

// HandleWS is the unified WebSocket endpoint.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("❌ WebSocket upgrade failed:", err)
		return
	}

	client := &Client{
		ID:            uuid.New().String(),
		Conn:          conn,
		Subscriptions: make(map[string]bool),
		Send:          make(chan []byte, config.ClientSendBuffer),
	}

	h.register <- client

	go client.writePump()
	go h.readPump(client)
}

// writePump drains the Send channel to the websocket.
func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("❌ Write error for client %s: %v", c.ID, err)
			return
		}
	}
}

// readPump reads commands until the connection drops, then removes the
// client's player from its room.
func (h *Hub) readPump(client *Client) {
	defer func() {
		h.registry.Disconnect(client.ID)
		h.unregister <- client
		client.Conn.Close()
	}()

	for {
		_, raw, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ Read error for client %s: %v", client.ID, err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("❌ Failed to parse message from client %s: %v", client.ID, err)
			continue
		}

		h.handleMessage(client, msg)
	}
}

func roomChannel(roomCode string) string {
	return "room:" + roomCode
}

// subscribe adds the client to a room's broadcast channel.
func (c *Client) subscribe(roomCode string) {
	c.mu.Lock()
	c.Subscriptions[roomChannel(roomCode)] = true
	c.mu.Unlock()
}

// sendEvent writes an event directly to this client only.
func (c *Client) sendEvent(event string, data interface{}) {
	payload, err := json.Marshal(map[string]interface{}{
		"type": event,
		"data": data,
	})
	if err != nil {
		log.Printf("❌ Failed to marshal %s for client %s: %v", event, c.ID, err)
		return
	}
	select {
	case c.Send <- payload:
	default:
		log.Printf("⚠️  Client %s send buffer full, skipping %s", c.ID, event)
	}
}

// sendError reports a rejection to the originating client only.
func (c *Client) sendError(message string) {
	c.sendEvent("error", map[string]interface{}{"message": message})
}
