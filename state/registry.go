package state

import (
	"errors"
	"log"
	"sync"
	"time"

	"stocksim/config"
	"stocksim/game"
)

var ErrAlreadyJoined = errors.New("connection already bound to a room")

// binding maps one connection handle to its (room, player) pair.
type binding struct {
	RoomCode string
	PlayerID string
}

// Registry owns the set of active rooms and the connection-to-player map.
// Its lock guards only the maps; per-room state is guarded by each room's
// own mutex, so rooms never contend with each other.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	conns map[string]binding

	// linger before an ended room is garbage-collected
	endedLinger time.Duration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:       make(map[string]*Room),
		conns:       make(map[string]binding),
		endedLinger: config.EndedRoomLinger,
	}
}

// RoomEmitFunc delivers a named event to everyone subscribed to a room.
// The transport layer injects it at registry construction time.
type RoomEmitFunc func(roomCode, event string, data interface{})

// CreateRoom builds a waiting room with a fresh unique code. Symbols are
// capped at the per-room limit and default to RELIANCE when empty; an
// unknown regime tag falls back to the default preset; a non-positive
// duration falls back to the default session length.
func (reg *Registry) CreateRoom(symbols []string, regime string, duration int, emit RoomEmitFunc) *Room {
	if len(symbols) == 0 {
		symbols = []string{"RELIANCE"}
	}
	if len(symbols) > config.MaxSymbolsPerRoom {
		symbols = symbols[:config.MaxSymbolsPerRoom]
	}
	if !game.KnownRegime(regime) {
		regime = game.DefaultRegime
	}
	if duration <= 0 {
		duration = config.DefaultDuration
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	code := game.GenerateRoomCode()
	for _, taken := reg.rooms[code]; taken; _, taken = reg.rooms[code] {
		code = game.GenerateRoomCode()
	}

	var roomEmit EmitFunc
	if emit != nil {
		roomEmit = func(event string, data interface{}) { emit(code, event, data) }
	}
	room := newRoom(code, symbols, regime, duration, roomEmit)
	room.onEnded = func() { reg.removeRoomAfterLinger(code) }
	reg.rooms[code] = room

	log.Printf("🆕 Room created: %s (symbols: %v, regime: %s, %ds)", code, symbols, regime, duration)
	return room
}

// GetRoom looks up a room by code.
func (reg *Registry) GetRoom(code string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	room, ok := reg.rooms[code]
	return room, ok
}

// Join admits a connection into a room and records the binding. Rejected
// when the room does not exist, has ended, is full, or the connection is
// already bound elsewhere.
func (reg *Registry) Join(connID, code, name string) (*Room, *Player, error) {
	reg.mu.Lock()
	room, ok := reg.rooms[code]
	if !ok {
		reg.mu.Unlock()
		return nil, nil, ErrRoomNotFound
	}
	if _, bound := reg.conns[connID]; bound {
		reg.mu.Unlock()
		return nil, nil, ErrAlreadyJoined
	}
	reg.mu.Unlock()

	// Roster admission happens under the room lock, not the registry lock.
	player, err := room.AddPlayer(connID, name)
	if err != nil {
		return nil, nil, err
	}

	reg.mu.Lock()
	reg.conns[connID] = binding{RoomCode: code, PlayerID: player.ID}
	reg.mu.Unlock()
	return room, player, nil
}

// Lookup resolves a connection handle to its room and player id.
func (reg *Registry) Lookup(connID string) (*Room, string, bool) {
	reg.mu.RLock()
	b, ok := reg.conns[connID]
	if !ok {
		reg.mu.RUnlock()
		return nil, "", false
	}
	room, roomOK := reg.rooms[b.RoomCode]
	reg.mu.RUnlock()
	if !roomOK {
		return nil, "", false
	}
	return room, b.PlayerID, true
}

// Disconnect removes the connection's player from its room roster and drops
// the lookup entry. Other players and market state are untouched.
func (reg *Registry) Disconnect(connID string) {
	reg.mu.Lock()
	b, ok := reg.conns[connID]
	if ok {
		delete(reg.conns, connID)
	}
	room := reg.rooms[b.RoomCode]
	reg.mu.Unlock()

	if ok && room != nil {
		room.RemovePlayer(b.PlayerID)
	}
}

// RemoveRoom drops a room from the registry immediately.
func (reg *Registry) RemoveRoom(code string) {
	reg.mu.Lock()
	delete(reg.rooms, code)
	reg.mu.Unlock()
	log.Printf("🗑️  Removed room %s from registry", code)
}

// removeRoomAfterLinger schedules registry cleanup for an ended room so
// connected clients still receive the final leaderboard.
func (reg *Registry) removeRoomAfterLinger(code string) {
	time.AfterFunc(reg.endedLinger, func() { reg.RemoveRoom(code) })
}

/* =========================
   OPERATIONAL QUERIES
========================= */

// Counts returns the active room count and connected-player count.
func (reg *Registry) Counts() (rooms, players int) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms), len(reg.conns)
}

// RoomSummary is one room's liveness view for the stats endpoint.
type RoomSummary struct {
	Code          string `json:"code"`
	Status        Status `json:"status"`
	Players       int    `json:"players"`
	TimeRemaining int    `json:"timeRemaining"`
}

// Summaries returns a liveness view of every active room.
func (reg *Registry) Summaries() []RoomSummary {
	reg.mu.RLock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.mu.RUnlock()

	out := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		gs := room.GameState()
		out = append(out, RoomSummary{
			Code:          room.Code,
			Status:        gs.Status,
			Players:       room.PlayerCount(),
			TimeRemaining: gs.TimeRemaining,
		})
	}
	return out
}
