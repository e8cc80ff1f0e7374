package ws

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"time"

	"stocksim/db"
	"stocksim/state"
)

/* =========================
   COMMAND PAYLOADS
   Every inbound command is a closed struct validated here, before any
   engine logic runs.
========================= */

type createRoomPayload struct {
	Symbols  []string `json:"symbols"`
	Regime   string   `json:"regime"`
	Duration int      `json:"duration"`
}

type joinPayload struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
}

type roomPayload struct {
	RoomCode string `json:"roomCode"`
}

type tradePayload struct {
	RoomCode string  `json:"roomCode"`
	Symbol   string  `json:"symbol"`
	Type     string  `json:"type"`
	Quantity float64 `json:"quantity"`
}

// handleMessage dispatches one inbound command.
func (h *Hub) handleMessage(client *Client, msg ClientMessage) {
	switch msg.Type {
	case "create-room":
		h.handleCreateRoom(client, msg.Data)
	case "join":
		h.handleJoin(client, msg.Data)
	case "start":
		h.handleStart(client, msg.Data)
	case "pause":
		h.handlePause(client, msg.Data)
	case "end":
		h.handleEnd(client, msg.Data)
	case "inject-volatility":
		h.handleInjectVolatility(client, msg.Data)
	case "execute-trade":
		h.handleExecuteTrade(client, msg.Data)
	default:
		log.Printf("⚠️  Unknown message type from client %s: %s", client.ID, msg.Type)
	}
}

// handleCreateRoom creates a waiting room and subscribes the operator.
func (h *Hub) handleCreateRoom(client *Client, data json.RawMessage) {
	var payload createRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("❌ Bad create-room payload from %s: %v", client.ID, err)
		return
	}

	room := h.registry.CreateRoom(payload.Symbols, payload.Regime, payload.Duration, h.BroadcastToRoom)
	client.subscribe(room.Code)
	client.sendEvent("room-created", map[string]interface{}{"roomCode": room.Code})
}

// handleJoin admits a player and syncs them with the room's current state.
func (h *Hub) handleJoin(client *Client, data json.RawMessage) {
	var payload joinPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("❌ Bad join payload from %s: %v", client.ID, err)
		return
	}

	room, player, err := h.registry.Join(client.ID, payload.RoomCode, payload.Name)
	if err != nil {
		switch err {
		case state.ErrRoomNotFound:
			client.sendError("Room not found")
		case state.ErrRoomEnded:
			client.sendError("Game has ended")
		case state.ErrRoomFull:
			client.sendError("Room is full")
		default:
			client.sendError(err.Error())
		}
		return
	}

	client.subscribe(room.Code)

	client.sendEvent("player-joined", map[string]interface{}{
		"balance": player.Balance,
		"players": room.Leaderboard(),
	})

	gs := room.GameState()
	client.sendEvent("game-state", map[string]interface{}{
		"status":        gs.Status,
		"timeRemaining": gs.TimeRemaining,
		"stocks":        gs.Stocks,
		"isAdmin":       payload.Name == "ADMIN",
	})

	// Current market view so the player's chart starts at the live price
	for _, snap := range room.MarketSnapshots() {
		client.sendEvent("market-candle", snap)
	}
}

func (h *Hub) handleStart(client *Client, data json.RawMessage) {
	room, ok := h.roomFromPayload(client, data)
	if !ok {
		return
	}
	if err := room.Start(); err != nil {
		log.Printf("⚠️  start rejected for room %s: %v", room.Code, err)
	}
}

func (h *Hub) handlePause(client *Client, data json.RawMessage) {
	room, ok := h.roomFromPayload(client, data)
	if !ok {
		return
	}
	if err := room.Pause(); err != nil {
		log.Printf("⚠️  pause rejected for room %s: %v", room.Code, err)
	}
}

func (h *Hub) handleEnd(client *Client, data json.RawMessage) {
	room, ok := h.roomFromPayload(client, data)
	if !ok {
		return
	}
	if err := room.End(); err != nil {
		log.Printf("⚠️  end rejected for room %s: %v", room.Code, err)
	}
}

func (h *Hub) handleInjectVolatility(client *Client, data json.RawMessage) {
	room, ok := h.roomFromPayload(client, data)
	if !ok {
		return
	}
	if err := room.InjectVolatility(); err != nil {
		log.Printf("⚠️  inject-volatility rejected for room %s: %v", room.Code, err)
	}
}

// handleExecuteTrade validates the order at the boundary and applies it.
// Rejections are silent to the room; only hard errors notify the caller.
func (h *Hub) handleExecuteTrade(client *Client, data json.RawMessage) {
	var payload tradePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("❌ Bad execute-trade payload from %s: %v", client.ID, err)
		return
	}

	// Quantity must be a positive integer; anything else is silently dropped
	qty := int(payload.Quantity)
	if payload.Quantity <= 0 || payload.Quantity != math.Trunc(payload.Quantity) {
		return
	}

	room, playerID, ok := h.registry.Lookup(client.ID)
	if !ok || room.Code != payload.RoomCode {
		return
	}

	fill, err := room.ExecuteTrade(playerID, payload.Symbol, payload.Type, qty)
	if err != nil {
		log.Printf("📉 Trade rejected in room %s (%s %s x%d): %v",
			room.Code, payload.Type, payload.Symbol, qty, err)
		return
	}

	client.sendEvent("trade-executed", fill)

	// Archive asynchronously; the engine never waits on the database
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		record := &db.TradeRecord{
			RoomCode:   payload.RoomCode,
			PlayerID:   playerID,
			PlayerName: room.PlayerName(playerID),
			Symbol:     payload.Symbol,
			OrderType:  payload.Type,
			Quantity:   qty,
			Price:      fill.Price,
			ExecutedAt: time.Now(),
		}
		if err := db.StoreTrade(ctx, record); err != nil {
			log.Printf("⚠️  Failed to archive trade: %v", err)
		}
	}()
}

// roomFromPayload resolves the room referenced by an operator command.
// Unknown room codes are no-op failures.
func (h *Hub) roomFromPayload(client *Client, data json.RawMessage) (*state.Room, bool) {
	var payload roomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("❌ Bad room payload from %s: %v", client.ID, err)
		return nil, false
	}
	room, ok := h.registry.GetRoom(payload.RoomCode)
	if !ok {
		log.Printf("⚠️  Command for unknown room %s from client %s", payload.RoomCode, client.ID)
		return nil, false
	}
	return room, true
}

// archiveGameResult persists an ended room's final leaderboard to the
// Postgres archive and the Redis result cache. Best effort only.
func (h *Hub) archiveGameResult(roomCode string, data interface{}) {
	leaderboard := data
	if wrapped, ok := data.(map[string]interface{}); ok {
		if board, ok := wrapped["leaderboard"]; ok {
			leaderboard = board
		}
	}

	regime := ""
	if room, ok := h.registry.GetRoom(roomCode); ok {
		regime = room.Regime
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.CacheFinalLeaderboard(ctx, roomCode, leaderboard); err != nil {
		log.Printf("⚠️  Failed to cache final leaderboard for %s: %v", roomCode, err)
	}

	board, err := json.Marshal(leaderboard)
	if err != nil {
		log.Printf("⚠️  Failed to marshal final leaderboard for %s: %v", roomCode, err)
		return
	}
	record := &db.GameResultRecord{
		RoomCode:    roomCode,
		Regime:      regime,
		Leaderboard: board,
		EndedAt:     time.Now(),
	}
	if err := db.StoreGameResult(ctx, record); err != nil {
		log.Printf("⚠️  Failed to archive game result for %s: %v", roomCode, err)
	}
}
