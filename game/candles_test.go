package game

import "testing"

func TestNewCandleSeedsAllFields(t *testing.T) {
	c := NewCandle("TCS", 100, 3500)
	if c.Open != 3500 || c.High != 3500 || c.Low != 3500 || c.Close != 3500 {
		t.Errorf("new candle not seeded open=high=low=close: %+v", c)
	}
	if c.Symbol != "TCS" || c.Time != 100 {
		t.Errorf("candle identity wrong: %+v", c)
	}
}

func TestCandleApply(t *testing.T) {
	c := NewCandle("TCS", 100, 3500)

	c.Apply(3520)
	c.Apply(3480)
	c.Apply(3505)

	if c.Open != 3500 {
		t.Errorf("open must never change after creation, got %f", c.Open)
	}
	if c.High != 3520 {
		t.Errorf("high: want 3520, got %f", c.High)
	}
	if c.Low != 3480 {
		t.Errorf("low: want 3480, got %f", c.Low)
	}
	if c.Close != 3505 {
		t.Errorf("close: want 3505, got %f", c.Close)
	}
}

func TestCandleOHLCInvariant(t *testing.T) {
	rng := NewSeededRNG("ohlc-test")
	regime := LookupRegime("volatile")

	c := NewCandle("X", 0, 1000)
	price := 1000.0
	for i := 0; i < 500; i++ {
		price = NextPrice(rng, regime, price)
		c.Apply(price)

		maxOC := c.Open
		if c.Close > maxOC {
			maxOC = c.Close
		}
		minOC := c.Open
		if c.Close < minOC {
			minOC = c.Close
		}
		if c.High < maxOC {
			t.Fatalf("tick %d: high %f < max(open,close) %f", i, c.High, maxOC)
		}
		if c.Low > minOC {
			t.Fatalf("tick %d: low %f > min(open,close) %f", i, c.Low, minOC)
		}
	}
}

func TestBucketTime(t *testing.T) {
	if got := BucketTime(1007); got != 1005 {
		t.Errorf("BucketTime(1007): want 1005, got %d", got)
	}
	if got := BucketTime(1005); got != 1005 {
		t.Errorf("BucketTime(1005): want 1005, got %d", got)
	}

	if !SameBucket(1005, 1009) {
		t.Error("1005 and 1009 should share a 5s bucket")
	}
	if SameBucket(1009, 1010) {
		t.Error("1009 and 1010 should be in different buckets")
	}
}
