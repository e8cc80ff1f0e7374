package state

import (
	"math"
	"testing"

	"stocksim/config"
)

/* =========================
   HELPERS
========================= */

func newActiveRoom(t *testing.T, symbols ...string) *Room {
	t.Helper()
	if len(symbols) == 0 {
		symbols = []string{"RELIANCE"}
	}
	r := newRoom("TEST01", symbols, "range", 300, nil)
	r.Status = StatusActive
	return r
}

func mustJoin(t *testing.T, r *Room, id, name string) *Player {
	t.Helper()
	p, err := r.AddPlayer(id, name)
	if err != nil {
		t.Fatalf("AddPlayer(%q): %v", name, err)
	}
	return p
}

func setPrice(r *Room, symbol string, price float64) {
	r.mu.Lock()
	r.Markets[symbol].Price = price
	r.mu.Unlock()
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

/* =========================
   BUY / SELL
========================= */

func TestBuyOpensLongPosition(t *testing.T) {
	r := newActiveRoom(t)
	p := mustJoin(t, r, "c1", "alice")
	setPrice(r, "RELIANCE", 100)

	fill, err := r.ExecuteTrade("c1", "RELIANCE", OrderBuy, 10)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if fill.Balance != config.StartingCapital-1000 {
		t.Errorf("balance: want %f, got %f", config.StartingCapital-1000, fill.Balance)
	}
	if len(p.Positions) != 1 {
		t.Fatalf("positions: want 1, got %d", len(p.Positions))
	}
	pos := p.Positions[0]
	if pos.Side != SideLong || pos.Quantity != 10 || pos.AvgPrice != 100 {
		t.Errorf("position: %+v", pos)
	}
	if p.Trades != 1 {
		t.Errorf("trade count: want 1, got %d", p.Trades)
	}
}

func TestBuyInsufficientFundsLeavesStateUnchanged(t *testing.T) {
	r := newActiveRoom(t)
	p := mustJoin(t, r, "c1", "alice")
	setPrice(r, "RELIANCE", 100000)

	_, err := r.ExecuteTrade("c1", "RELIANCE", OrderBuy, 10)
	if err != ErrInsufficientFunds {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	if p.Balance != config.StartingCapital {
		t.Errorf("balance changed on rejected buy: %f", p.Balance)
	}
	if len(p.Positions) != 0 {
		t.Errorf("positions changed on rejected buy: %d", len(p.Positions))
	}
	if p.Trades != 0 {
		t.Errorf("trade count changed on rejected buy: %d", p.Trades)
	}
}

func TestBuyExtendsWithVolumeWeightedAverage(t *testing.T) {
	r := newActiveRoom(t)
	p := mustJoin(t, r, "c1", "alice")

	setPrice(r, "RELIANCE", 100)
	if _, err := r.ExecuteTrade("c1", "RELIANCE", OrderBuy, 10); err != nil {
		t.Fatalf("first buy: %v", err)
	}
	setPrice(r, "RELIANCE", 200)
	if _, err := r.ExecuteTrade("c1", "RELIANCE", OrderBuy, 10); err != nil {
		t.Fatalf("second buy: %v", err)
	}

	if len(p.Positions) != 1 {
		t.Fatalf("want a single netted long position, got %d", len(p.Positions))
	}
	pos := p.Positions[0]
	if pos.Quantity != 20 {
		t.Errorf("quantity: want 20, got %d", pos.Quantity)
	}
	if !almostEqual(pos.AvgPrice, 150) {
		t.Errorf("avg price: want 150, got %f", pos.AvgPrice)
	}
}

func TestSellMoreThanHeldRejected(t *testing.T) {
	r := newActiveRoom(t)
	p := mustJoin(t, r, "c1", "alice")
	setPrice(r, "RELIANCE", 100)
	if _, err := r.ExecuteTrade("c1", "RELIANCE", OrderBuy, 5); err != nil {
		t.Fatalf("buy: %v", err)
	}
	balanceAfterBuy := p.Balance

	_, err := r.ExecuteTrade("c1", "RELIANCE", OrderSell, 6)
	if err != ErrInsufficientPosition {
		t.Fatalf("want ErrInsufficientPosition, got %v", err)
	}
	// No partial fill
	if p.Positions[0].Quantity != 5 {
		t.Errorf("quantity changed on rejected sell: %d", p.Positions[0].Quantity)
	}
	if p.Balance != balanceAfterBuy {
		t.Errorf("balance changed on rejected sell: %f", p.Balance)
	}
}

func TestSellExactQuantityDeletesPosition(t *testing.T) {
	r := newActiveRoom(t)
	p := mustJoin(t, r, "c1", "alice")
	setPrice(r, "RELIANCE", 100)
	if _, err := r.ExecuteTrade("c1", "RELIANCE", OrderBuy, 5); err != nil {
		t.Fatalf("buy: %v", err)
	}

	setPrice(r, "RELIANCE", 110)
	fill, err := r.ExecuteTrade("c1", "RELIANCE", OrderSell, 5)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if len(p.Positions) != 0 {
		t.Errorf("position should be deleted at zero quantity, got %d", len(p.Positions))
	}
	// 500000 - 5*100 + 5*110 = 500050
	if !almostEqual(fill.Balance, config.StartingCapital+50) {
		t.Errorf("balance: want %f, got %f", config.StartingCapital+50, fill.Balance)
	}
}

/* =========================
   SHORT / COVER
========================= */

func TestShortDebitsMargin(t *testing.T) {
	r := newActiveRoom(t)
	p := mustJoin(t, r, "c1", "alice")
	setPrice(r, "RELIANCE", 100)

	fill, err := r.ExecuteTrade("c1", "RELIANCE", OrderShort, 10)
	if err != nil {
		t.Fatalf("short: %v", err)
	}
	// Margin = 0.5 * 100 * 10 = 500
	if !almostEqual(fill.Balance, config.StartingCapital-500) {
		t.Errorf("balance: want %f, got %f", config.StartingCapital-500, fill.Balance)
	}
	pos := p.Positions[0]
	if pos.Side != SideShort || pos.Quantity != 10 || pos.AvgPrice != 100 {
		t.Errorf("short position: %+v", pos)
	}
}

func TestCoverCreditsMarginPlusProfit(t *testing.T) {
	r := newActiveRoom(t)
	p := mustJoin(t, r, "c1", "alice")
	setPrice(r, "RELIANCE", 100)
	if _, err := r.ExecuteTrade("c1", "RELIANCE", OrderShort, 10); err != nil {
		t.Fatalf("short: %v", err)
	}

	setPrice(r, "RELIANCE", 80)
	fill, err := r.ExecuteTrade("c1", "RELIANCE", OrderCover, 10)
	if err != nil {
		t.Fatalf("cover: %v", err)
	}
	// Credit = margin 500 + (100-80)*10 = 700
	if !almostEqual(fill.Balance, config.StartingCapital-500+700) {
		t.Errorf("balance: want %f, got %f", config.StartingCapital+200, fill.Balance)
	}
	if len(p.Positions) != 0 {
		t.Errorf("covered position should be deleted, got %d", len(p.Positions))
	}
}

func TestCoverAtLossReducesCredit(t *testing.T) {
	r := newActiveRoom(t)
	_ = mustJoin(t, r, "c1", "alice")
	setPrice(r, "RELIANCE", 100)
	if _, err := r.ExecuteTrade("c1", "RELIANCE", OrderShort, 10); err != nil {
		t.Fatalf("short: %v", err)
	}

	setPrice(r, "RELIANCE", 120)
	fill, err := r.ExecuteTrade("c1", "RELIANCE", OrderCover, 10)
	if err != nil {
		t.Fatalf("cover: %v", err)
	}
	// Credit = 500 + (100-120)*10 = 300
	if !almostEqual(fill.Balance, config.StartingCapital-500+300) {
		t.Errorf("balance: want %f, got %f", config.StartingCapital-200, fill.Balance)
	}
}

func TestShortExtensionRecomputesAverageFromPooledMargin(t *testing.T) {
	r := newActiveRoom(t)
	p := mustJoin(t, r, "c1", "alice")

	setPrice(r, "RELIANCE", 100)
	if _, err := r.ExecuteTrade("c1", "RELIANCE", OrderShort, 10); err != nil {
		t.Fatalf("first short: %v", err)
	}
	setPrice(r, "RELIANCE", 200)
	if _, err := r.ExecuteTrade("c1", "RELIANCE", OrderShort, 10); err != nil {
		t.Fatalf("second short: %v", err)
	}

	pos := p.Positions[0]
	if pos.Quantity != 20 {
		t.Errorf("quantity: want 20, got %d", pos.Quantity)
	}
	// avg = 2 * (500 + 1000) / 20 = 150
	if !almostEqual(pos.AvgPrice, 150) {
		t.Errorf("avg price: want 150, got %f", pos.AvgPrice)
	}
}

func TestLongAndShortHeldIndependently(t *testing.T) {
	r := newActiveRoom(t)
	p := mustJoin(t, r, "c1", "alice")
	setPrice(r, "RELIANCE", 100)

	if _, err := r.ExecuteTrade("c1", "RELIANCE", OrderBuy, 5); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := r.ExecuteTrade("c1", "RELIANCE", OrderShort, 3); err != nil {
		t.Fatalf("short: %v", err)
	}

	if len(p.Positions) != 2 {
		t.Fatalf("opposing sides must be independent positions, got %d", len(p.Positions))
	}
	// Selling must only touch the long side
	if _, err := r.ExecuteTrade("c1", "RELIANCE", OrderSell, 5); err != nil {
		t.Fatalf("sell: %v", err)
	}
	if len(p.Positions) != 1 || p.Positions[0].Side != SideShort {
		t.Errorf("short side disturbed by sell: %+v", p.Positions)
	}
}

/* =========================
   VALIDATION REJECTIONS
========================= */

func TestTradeRejectionsLeaveNoTrace(t *testing.T) {
	r := newActiveRoom(t)
	p := mustJoin(t, r, "c1", "alice")
	setPrice(r, "RELIANCE", 100)

	cases := []struct {
		name      string
		playerID  string
		symbol    string
		orderType string
		qty       int
		wantErr   error
	}{
		{"unknown symbol", "c1", "TSLA", OrderBuy, 1, ErrUnknownSymbol},
		{"unknown player", "ghost", "RELIANCE", OrderBuy, 1, ErrUnknownPlayer},
		{"zero quantity", "c1", "RELIANCE", OrderBuy, 0, ErrInvalidQuantity},
		{"negative quantity", "c1", "RELIANCE", OrderBuy, -5, ErrInvalidQuantity},
		{"unknown order type", "c1", "RELIANCE", "yolo", 1, ErrUnknownOrderType},
		{"sell without position", "c1", "RELIANCE", OrderSell, 1, ErrInsufficientPosition},
		{"cover without position", "c1", "RELIANCE", OrderCover, 1, ErrInsufficientPosition},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.ExecuteTrade(tc.playerID, tc.symbol, tc.orderType, tc.qty)
			if err != tc.wantErr {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
			if p.Balance != config.StartingCapital || len(p.Positions) != 0 || p.Trades != 0 {
				t.Errorf("rejected trade mutated state: balance=%f positions=%d trades=%d",
					p.Balance, len(p.Positions), p.Trades)
			}
		})
	}
}

func TestTradeRejectedWhenRoomNotActive(t *testing.T) {
	for _, status := range []Status{StatusWaiting, StatusPaused, StatusEnded} {
		r := newActiveRoom(t)
		p := mustJoin(t, r, "c1", "alice")
		setPrice(r, "RELIANCE", 100)
		r.Status = status

		_, err := r.ExecuteTrade("c1", "RELIANCE", OrderBuy, 1)
		if err != ErrRoomNotActive {
			t.Errorf("status %s: want ErrRoomNotActive, got %v", status, err)
		}
		if p.Trades != 0 {
			t.Errorf("status %s: trade counter mutated", status)
		}
	}
}

/* =========================
   MARK-TO-MARKET
========================= */

func TestRemarkUpdatesPnLAndROI(t *testing.T) {
	r := newActiveRoom(t)
	p := mustJoin(t, r, "c1", "alice")

	setPrice(r, "RELIANCE", 100)
	if _, err := r.ExecuteTrade("c1", "RELIANCE", OrderBuy, 10); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := r.ExecuteTrade("c1", "RELIANCE", OrderShort, 4); err != nil {
		t.Fatalf("short: %v", err)
	}

	setPrice(r, "RELIANCE", 110)
	r.mu.Lock()
	r.remarkLocked(p)
	r.mu.Unlock()

	// Long: (110-100)*10 = +100; short: (100-110)*4 = -40
	if !almostEqual(p.PnL, 60) {
		t.Errorf("total pnl: want 60, got %f", p.PnL)
	}
	for _, pos := range p.Positions {
		if pos.CurrentPrice != 110 {
			t.Errorf("position %s not remarked: currentPrice=%f", pos.Side, pos.CurrentPrice)
		}
	}

	// ROI = (balance + pnl - capital) / capital * 100
	wantROI := (p.Balance + 60 - config.StartingCapital) / config.StartingCapital * 100
	if !almostEqual(p.ROI, wantROI) {
		t.Errorf("roi: want %f, got %f", wantROI, p.ROI)
	}
}
