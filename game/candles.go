package game

import "stocksim/config"

// Candle is an OHLC summary of ticks within one fixed time bucket.
// Once a new bucket begins the previous candle is immutable.
type Candle struct {
	Symbol string  `json:"symbol"`
	Time   int64   `json:"time"` // unix seconds, bucket start
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
}

// NewCandle opens a candle seeded with open=high=low=close=price.
func NewCandle(symbol string, bucketTime int64, price float64) Candle {
	return Candle{
		Symbol: symbol,
		Time:   bucketTime,
		Open:   price,
		High:   price,
		Low:    price,
		Close:  price,
	}
}

// Apply folds a tick into the open candle: high/low/close update in place,
// open never changes after creation.
func (c *Candle) Apply(price float64) {
	if price > c.High {
		c.High = price
	}
	if price < c.Low {
		c.Low = price
	}
	c.Close = price
}

// BucketTime truncates a unix-second timestamp to its candle bucket start.
func BucketTime(unixSec int64) int64 {
	return unixSec - unixSec%config.CandleBucketSeconds
}

// SameBucket reports whether two timestamps fall in the same candle bucket.
func SameBucket(a, b int64) bool {
	return BucketTime(a) == BucketTime(b)
}
