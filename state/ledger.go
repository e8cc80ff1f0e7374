package state

import (
	"errors"

	"stocksim/config"
)

// Order types accepted by ExecuteTrade.
const (
	OrderBuy   = "buy"
	OrderSell  = "sell"
	OrderShort = "short"
	OrderCover = "cover"
)

// Trade rejection reasons. Insufficient-resource rejections are silent at
// the transport layer: no fill, no event, no state change.
var (
	ErrRoomNotActive        = errors.New("room is not active")
	ErrUnknownSymbol        = errors.New("unknown symbol")
	ErrUnknownPlayer        = errors.New("player not in room")
	ErrInvalidQuantity      = errors.New("quantity must be a positive integer")
	ErrUnknownOrderType     = errors.New("unknown order type")
	ErrInsufficientFunds    = errors.New("insufficient balance")
	ErrInsufficientPosition = errors.New("insufficient position quantity")
)

// ExecuteTrade applies one order against the ledger at the current market
// price. On success the trade counter increments, the player is remarked,
// and a leaderboard update is broadcast. No partial fills.
func (r *Room) ExecuteTrade(playerID, symbol, orderType string, qty int) (*Fill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Status != StatusActive {
		return nil, ErrRoomNotActive
	}
	player := r.findPlayerLocked(playerID)
	if player == nil {
		return nil, ErrUnknownPlayer
	}
	market, ok := r.Markets[symbol]
	if !ok {
		return nil, ErrUnknownSymbol
	}
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	price := market.Price
	var err error
	switch orderType {
	case OrderBuy:
		err = applyBuy(player, symbol, qty, price)
	case OrderSell:
		err = applySell(player, symbol, qty, price)
	case OrderShort:
		err = applyShort(player, symbol, qty, price)
	case OrderCover:
		err = applyCover(player, symbol, qty, price)
	default:
		return nil, ErrUnknownOrderType
	}
	if err != nil {
		return nil, err
	}

	player.Trades++
	r.remarkLocked(player)
	r.emitEvent("leaderboard-update", r.leaderboardLocked())

	return &Fill{Balance: player.Balance, Positions: copyPositions(player.Positions), Price: price}, nil
}

// applyBuy debits cost and opens or extends the long position with
// volume-weighted averaging.
func applyBuy(player *Player, symbol string, qty int, price float64) error {
	cost := price * float64(qty)
	if player.Balance < cost {
		return ErrInsufficientFunds
	}
	player.Balance -= cost

	if pos := findPosition(player, symbol, SideLong); pos != nil {
		totalCost := pos.AvgPrice*float64(pos.Quantity) + cost
		pos.Quantity += qty
		pos.AvgPrice = totalCost / float64(pos.Quantity)
	} else {
		player.Positions = append(player.Positions, &Position{
			Symbol:       symbol,
			Side:         SideLong,
			Quantity:     qty,
			AvgPrice:     price,
			CurrentPrice: price,
		})
	}
	return nil
}

// applySell credits proceeds against an existing long. Selling more than
// held is rejected outright, never partially filled.
func applySell(player *Player, symbol string, qty int, price float64) error {
	pos := findPosition(player, symbol, SideLong)
	if pos == nil || pos.Quantity < qty {
		return ErrInsufficientPosition
	}
	player.Balance += price * float64(qty)
	pos.Quantity -= qty
	if pos.Quantity == 0 {
		removePosition(player, pos)
	}
	return nil
}

// applyShort withholds 50% margin and opens or extends the short position.
// The combined average price is recomputed from the pooled margin:
// avg = 2 × (oldMargin + newMargin) / totalQty, which equals a
// margin-weighted average under the fixed 50% margin ratio.
func applyShort(player *Player, symbol string, qty int, price float64) error {
	margin := price * float64(qty) * config.ShortMarginRatio
	if player.Balance < margin {
		return ErrInsufficientFunds
	}
	player.Balance -= margin

	if pos := findPosition(player, symbol, SideShort); pos != nil {
		totalMargin := pos.AvgPrice*float64(pos.Quantity)*config.ShortMarginRatio + margin
		pos.Quantity += qty
		pos.AvgPrice = totalMargin * 2 / float64(pos.Quantity)
	} else {
		player.Positions = append(player.Positions, &Position{
			Symbol:       symbol,
			Side:         SideShort,
			Quantity:     qty,
			AvgPrice:     price,
			CurrentPrice: price,
		})
	}
	return nil
}

// applyCover returns the proportional margin plus realized profit
// (avg − price) × qty; a negative profit reduces the credit.
func applyCover(player *Player, symbol string, qty int, price float64) error {
	pos := findPosition(player, symbol, SideShort)
	if pos == nil || pos.Quantity < qty {
		return ErrInsufficientPosition
	}
	margin := pos.AvgPrice * float64(qty) * config.ShortMarginRatio
	profit := (pos.AvgPrice - price) * float64(qty)
	player.Balance += margin + profit
	pos.Quantity -= qty
	if pos.Quantity == 0 {
		removePosition(player, pos)
	}
	return nil
}

/* =========================
   MARK-TO-MARKET
========================= */

// remarkLocked refreshes every position's marked price from the room's
// current market state and recomputes the player's P&L and ROI.
func (r *Room) remarkLocked(player *Player) {
	totalPnL := 0.0
	for _, pos := range player.Positions {
		market, ok := r.Markets[pos.Symbol]
		if !ok {
			continue
		}
		pos.CurrentPrice = market.Price
		if pos.Side == SideLong {
			pos.PnL = (market.Price - pos.AvgPrice) * float64(pos.Quantity)
		} else {
			pos.PnL = (pos.AvgPrice - market.Price) * float64(pos.Quantity)
		}
		totalPnL += pos.PnL
	}
	player.PnL = totalPnL
	player.ROI = (player.Balance + totalPnL - config.StartingCapital) / config.StartingCapital * 100
}

func (r *Room) remarkAllLocked() {
	for _, player := range r.Players {
		r.remarkLocked(player)
	}
}

/* =========================
   SQUARE OFF
========================= */

// squareOffAllLocked forcibly closes every open position at the current
// mark using the same settlement formulas as sell/cover.
func (r *Room) squareOffAllLocked() {
	for _, player := range r.Players {
		for _, pos := range player.Positions {
			market, ok := r.Markets[pos.Symbol]
			if !ok {
				continue
			}
			if pos.Side == SideLong {
				player.Balance += market.Price * float64(pos.Quantity)
			} else {
				margin := pos.AvgPrice * float64(pos.Quantity) * config.ShortMarginRatio
				profit := (pos.AvgPrice - market.Price) * float64(pos.Quantity)
				player.Balance += margin + profit
			}
		}
		player.Positions = player.Positions[:0]
		r.remarkLocked(player)
	}
}

/* =========================
   HELPERS
========================= */

func (r *Room) findPlayerLocked(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func findPosition(player *Player, symbol, side string) *Position {
	for _, pos := range player.Positions {
		if pos.Symbol == symbol && pos.Side == side {
			return pos
		}
	}
	return nil
}

func removePosition(player *Player, target *Position) {
	for i, pos := range player.Positions {
		if pos == target {
			player.Positions = append(player.Positions[:i], player.Positions[i+1:]...)
			return
		}
	}
}
