package state

import (
	"math/rand"
	"sync"
	"time"

	"stocksim/game"
)

// ==============================================================================
// ROOM STATE (pure state - no websocket connections inside rooms)
//
// A Room owns its market state and player roster exclusively. Every tick and
// every command for a room is funneled through its single mutex, so a trade
// always reads a fully-updated price and two concurrent trades apply one
// after another. Different rooms share no locks.
// ==============================================================================

// Status is the lifecycle state of a room.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusActive  Status = "active"
	StatusPaused  Status = "paused"
	StatusEnded   Status = "ended"
)

// EmitFunc delivers a named event to everyone subscribed to the room.
// The transport layer injects it at room creation.
type EmitFunc func(event string, data interface{})

// Room is one trading session: instruments, market state, roster, countdown.
type Room struct {
	mu sync.Mutex

	Code          string
	Symbols       []string
	Regime        string
	Duration      int // seconds
	TimeRemaining int // seconds
	Status        Status
	CreatedAt     time.Time

	Markets map[string]*MarketState
	Players []*Player

	sched   scheduler
	emit    EmitFunc
	onEnded func() // registry cleanup hook, fired once when the room ends
}

// scheduler owns the cancellation channels for a room's periodic activities.
// Pausing or ending closes them; restarting arms fresh ones.
type scheduler struct {
	marketStop    chan struct{}
	countdownStop chan struct{}
}

// MarketState is the simulated market for one symbol in one room.
type MarketState struct {
	Symbol         string
	Price          float64
	Candles        []game.Candle // closed, immutable
	Current        *game.Candle  // open candle, nil before the first tick
	LastCandleTime int64         // bucket start of Current, unix seconds
	TickCount      int

	rng *rand.Rand
}

// newMarketState seeds a market at the symbol's base price with a
// deterministic RNG derived from the room code.
func newMarketState(roomCode, symbol string) *MarketState {
	return &MarketState{
		Symbol: symbol,
		Price:  game.SeedPrice(symbol),
		rng:    game.NewSeededRNG(roomCode + "-" + symbol),
	}
}

// Side of a position.
const (
	SideLong  = "long"
	SideShort = "short"
)

// Position is one open exposure: at most one long and one short per
// (player, symbol); opposing sides are never netted against each other.
type Position struct {
	Symbol       string  `json:"symbol"`
	Side         string  `json:"type"` // "long" or "short"
	Quantity     int     `json:"quantity"`
	AvgPrice     float64 `json:"avgPrice"`
	CurrentPrice float64 `json:"currentPrice"`
	PnL          float64 `json:"pnl"`
}

// Player is one participant in a room.
type Player struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Balance   float64     `json:"balance"`
	Positions []*Position `json:"positions"`
	Trades    int         `json:"trades"`
	PnL       float64     `json:"pnl"`
	ROI       float64     `json:"roi"`
}

// LeaderboardEntry is one player's row in the ranked snapshot.
type LeaderboardEntry struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Balance float64 `json:"balance"`
	PnL     float64 `json:"pnl"`
	ROI     float64 `json:"roi"`
	Trades  int     `json:"trades"`
}

// Fill is the caller-facing result of a successful order.
type Fill struct {
	Balance   float64     `json:"balance"`
	Positions []*Position `json:"positions"`
	Price     float64     `json:"price"`
}

// GameState is the room summary pushed on join and lifecycle changes.
type GameState struct {
	Status        Status   `json:"status"`
	TimeRemaining int      `json:"timeRemaining"`
	Stocks        []string `json:"stocks"`
}

// CandleSnapshot is the current candle view per symbol sent to a joining
// player so their chart starts at the live price.
type CandleSnapshot struct {
	Symbol string  `json:"symbol"`
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
}

func copyPositions(positions []*Position) []*Position {
	out := make([]*Position, 0, len(positions))
	for _, p := range positions {
		cp := *p
		out = append(out, &cp)
	}
	return out
}
