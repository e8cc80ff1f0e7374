package state

import (
	"errors"
	"log"
	"time"

	"stocksim/config"
	"stocksim/game"
)

// Lifecycle and capacity errors reported to the originating caller.
var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomEnded     = errors.New("game has ended")
	ErrRoomFull      = errors.New("room is full")
	ErrBadTransition = errors.New("invalid room status for this command")
)

// newRoom builds a waiting room with market state seeded per symbol.
// No scheduling is active until Start.
func newRoom(code string, symbols []string, regime string, duration int, emit EmitFunc) *Room {
	markets := make(map[string]*MarketState, len(symbols))
	for _, sym := range symbols {
		markets[sym] = newMarketState(code, sym)
	}
	return &Room{
		Code:          code,
		Symbols:       symbols,
		Regime:        regime,
		Duration:      duration,
		TimeRemaining: duration,
		Status:        StatusWaiting,
		CreatedAt:     time.Now(),
		Markets:       markets,
		Players:       make([]*Player, 0, config.MaxPlayersPerRoom),
		emit:          emit,
	}
}

func (r *Room) emitEvent(event string, data interface{}) {
	if r.emit != nil {
		r.emit(event, data)
	}
}

// GameState returns the room summary under the room lock.
func (r *Room) GameState() GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return GameState{Status: r.Status, TimeRemaining: r.TimeRemaining, Stocks: r.Symbols}
}

// MarketSnapshots returns one current-candle view per symbol for a joining
// player. Before the first tick the snapshot is flat at the seed price.
func (r *Room) MarketSnapshots() []CandleSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snaps := make([]CandleSnapshot, 0, len(r.Symbols))
	for _, sym := range r.Symbols {
		m := r.Markets[sym]
		snap := CandleSnapshot{
			Symbol: sym,
			Time:   game.BucketTime(time.Now().Unix()),
			Open:   m.Price,
			High:   m.Price,
			Low:    m.Price,
			Close:  m.Price,
		}
		if m.Current != nil {
			snap.Time = m.Current.Time
			snap.Open = m.Current.Open
			snap.High = m.Current.High
			snap.Low = m.Current.Low
			snap.Close = m.Current.Close
		}
		snaps = append(snaps, snap)
	}
	return snaps
}

/* =========================
   LIFECYCLE STATE MACHINE
   waiting → active ⇄ paused → active → ended
========================= */

// Start arms the market and countdown activities. Valid from waiting or
// paused; resuming keeps the remaining duration.
func (r *Room) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Status != StatusWaiting && r.Status != StatusPaused {
		return ErrBadTransition
	}
	r.Status = StatusActive

	r.sched.marketStop = make(chan struct{})
	r.sched.countdownStop = make(chan struct{})
	go r.marketLoop(r.sched.marketStop)
	go r.countdownLoop(r.sched.countdownStop)

	r.emitEvent("game-state", GameState{Status: r.Status, TimeRemaining: r.TimeRemaining, Stocks: r.Symbols})
	log.Printf("▶️  Game started in room %s (regime: %s, %ds remaining)", r.Code, r.Regime, r.TimeRemaining)
	return nil
}

// Pause suspends both periodic activities. Market state freezes at its last
// value; an in-flight tick may complete but no new tick is scheduled.
func (r *Room) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Status != StatusActive {
		return ErrBadTransition
	}
	r.stopActivitiesLocked()
	r.Status = StatusPaused

	r.emitEvent("game-state", GameState{Status: r.Status, TimeRemaining: r.TimeRemaining, Stocks: r.Symbols})
	log.Printf("⏸️  Game paused in room %s (%ds remaining)", r.Code, r.TimeRemaining)
	return nil
}

// End terminates the room: activities cancelled, every open position squared
// off at the current mark, final leaderboard broadcast. Terminal.
func (r *Room) End() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Status == StatusEnded {
		return ErrRoomEnded
	}
	if r.Status != StatusActive && r.Status != StatusPaused {
		return ErrBadTransition
	}
	r.endLocked()
	return nil
}

// endLocked performs the terminal transition. Caller holds the room lock.
func (r *Room) endLocked() {
	r.stopActivitiesLocked()
	r.Status = StatusEnded

	r.squareOffAllLocked()
	board := r.leaderboardLocked()

	r.emitEvent("game-end", map[string]interface{}{"leaderboard": board})
	r.emitEvent("leaderboard-update", board)
	log.Printf("🏁 Game ended in room %s (%d players settled)", r.Code, len(r.Players))

	if r.onEnded != nil {
		r.onEnded()
		r.onEnded = nil
	}
}

// stopActivitiesLocked cancels both periodic activities if armed.
func (r *Room) stopActivitiesLocked() {
	if r.sched.marketStop != nil {
		close(r.sched.marketStop)
		r.sched.marketStop = nil
	}
	if r.sched.countdownStop != nil {
		close(r.sched.countdownStop)
		r.sched.countdownStop = nil
	}
}

/* =========================
   PERIODIC ACTIVITIES
========================= */

func (r *Room) marketLoop(stop chan struct{}) {
	ticker := time.NewTicker(config.MarketTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.tickMarkets()
		}
	}
}

func (r *Room) countdownLoop(stop chan struct{}) {
	ticker := time.NewTicker(config.CountdownInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if r.tickCountdown() {
				return
			}
		}
	}
}

// tickMarkets advances every instrument one step and remarks all players so
// positions stay current even without trading.
func (r *Room) tickMarkets() {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A tick already queued when the room paused or ended is a no-op.
	if r.Status != StatusActive {
		return
	}

	now := time.Now().Unix()
	for _, sym := range r.Symbols {
		m := r.Markets[sym]
		m.TickCount++
		price := game.NextPrice(m.rng, game.LookupRegime(r.Regime), m.Price)
		r.applyPriceLocked(m, price, now)
	}
	r.remarkAllLocked()
}

// tickCountdown decrements the remaining time. Returns true once the
// countdown reaches zero and the room has ended.
func (r *Room) tickCountdown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Status != StatusActive {
		return false
	}

	r.TimeRemaining--
	r.emitEvent("timer-update", r.TimeRemaining)

	if r.TimeRemaining <= 0 {
		r.endLocked()
		return true
	}
	return false
}

// applyPriceLocked commits a new price for one market: update the open
// candle in place, or close it and open a new one when the tick lands in a
// new 5-second bucket. Closed candles are immutable.
func (r *Room) applyPriceLocked(m *MarketState, price float64, now int64) {
	m.Price = price

	if m.Current == nil {
		candle := game.NewCandle(m.Symbol, game.BucketTime(now), price)
		m.Current = &candle
		m.LastCandleTime = candle.Time
		r.emitEvent("market-candle", candle)
	} else if !game.SameBucket(now, m.LastCandleTime) {
		m.Candles = append(m.Candles, *m.Current)
		candle := game.NewCandle(m.Symbol, game.BucketTime(now), price)
		m.Current = &candle
		m.LastCandleTime = candle.Time
		r.emitEvent("market-candle", candle)
	} else {
		m.Current.Apply(price)
	}

	r.emitEvent("market-tick", map[string]interface{}{
		"symbol": m.Symbol,
		"price":  m.Price,
		"time":   now,
	})
}

// InjectVolatility perturbs every instrument by a one-shot ±2.5% move
// outside the regular drift model and folds it through the same candle path.
func (r *Room) InjectVolatility() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Status == StatusEnded {
		return ErrRoomEnded
	}

	now := time.Now().Unix()
	for _, sym := range r.Symbols {
		m := r.Markets[sym]
		r.applyPriceLocked(m, game.InjectVolatility(m.rng, m.Price), now)
	}
	r.remarkAllLocked()
	log.Printf("⚡ Volatility injected in room %s", r.Code)
	return nil
}

/* =========================
   ROSTER
========================= */

// AddPlayer admits a player to the roster. Rejected when the game has ended
// or the room is at capacity.
func (r *Room) AddPlayer(id, name string) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Status == StatusEnded {
		return nil, ErrRoomEnded
	}
	if len(r.Players) >= config.MaxPlayersPerRoom {
		return nil, ErrRoomFull
	}

	player := &Player{
		ID:        id,
		Name:      name,
		Balance:   config.StartingCapital,
		Positions: make([]*Position, 0),
	}
	r.Players = append(r.Players, player)

	r.emitEvent("leaderboard-update", r.leaderboardLocked())
	log.Printf("👤 Player %s joined room %s (%d/%d)", name, r.Code, len(r.Players), config.MaxPlayersPerRoom)
	return player, nil
}

// RemovePlayer drops a player from the roster on disconnect. Other players'
// positions and the market state are untouched.
func (r *Room) RemovePlayer(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.Players {
		if p.ID == id {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			r.emitEvent("leaderboard-update", r.leaderboardLocked())
			log.Printf("👋 Player %s left room %s (%d remaining)", p.Name, r.Code, len(r.Players))
			return
		}
	}
}

// PlayerName resolves a roster player's display name.
func (r *Room) PlayerName(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.findPlayerLocked(id); p != nil {
		return p.Name
	}
	return ""
}

// PlayerCount returns the current roster size.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Players)
}
