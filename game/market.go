package game

import (
	"math/rand"

	"stocksim/config"
)

// Regime holds the drift/volatility/spike parameters shaping a simulated
// price path. All values are fractional per-tick moves.
type Regime struct {
	Name       string
	BaseTrend  float64 // baseline drift per tick
	Volatility float64 // uniform noise magnitude
	Spike      float64 // one-shot move applied with SpikeProbability
}

// Named regime presets. An unrecognized name falls back to DefaultRegime.
var regimes = map[string]Regime{
	"bullish":  {Name: "bullish", BaseTrend: 0.001, Volatility: 0.0005, Spike: 0.002},
	"bearish":  {Name: "bearish", BaseTrend: -0.001, Volatility: 0.0005, Spike: -0.002},
	"range":    {Name: "range", BaseTrend: 0, Volatility: 0.0003, Spike: 0},
	"volatile": {Name: "volatile", BaseTrend: 0, Volatility: 0.002, Spike: 0.005},
}

const DefaultRegime = "bullish"

// LookupRegime resolves a regime tag, falling back to the default preset
// rather than failing on unknown tags.
func LookupRegime(name string) Regime {
	if r, ok := regimes[name]; ok {
		return r
	}
	return regimes[DefaultRegime]
}

// KnownRegime reports whether name maps to a preset without falling back.
func KnownRegime(name string) bool {
	_, ok := regimes[name]
	return ok
}

// NextPrice advances price one tick under the given regime:
//
//	price * (1 + trend + uniformNoise(vol) + maybeSpike + residualNoise)
//
// clamped to the price floor.
func NextPrice(rng *rand.Rand, regime Regime, price float64) float64 {
	trend := regime.BaseTrend
	volatility := (rng.Float64() - 0.5) * regime.Volatility
	spike := 0.0
	if rng.Float64() < config.SpikeProbability {
		spike = regime.Spike
	}
	noise := (rng.Float64() - 0.5) * config.ResidualNoise

	next := price * (1 + trend + volatility + spike + noise)
	return FloorPrice(next)
}

// InjectVolatility perturbs price by a one-shot ±2.5% move outside the
// regular drift model, re-floored identically.
func InjectVolatility(rng *rand.Rand, price float64) float64 {
	shock := (rng.Float64() - 0.5) * config.InjectVolatilityRange
	return FloorPrice(price * (1 + shock))
}

// FloorPrice clamps a price to the simulation floor.
func FloorPrice(price float64) float64 {
	if price < config.PriceFloor {
		return config.PriceFloor
	}
	return price
}

// Base seed prices per instrument symbol.
var basePrices = map[string]float64{
	"RELIANCE":   2500,
	"TCS":        3500,
	"HDFCBANK":   1650,
	"INFY":       1500,
	"ICICIBANK":  950,
	"BHARTIARTL": 1200,
	"SBIN":       600,
	"BAJFINANCE": 7500,
	"LICI":       650,
	"ITC":        450,
	"HINDUNILVR": 2500,
	"KOTAKBANK":  1800,
	"LT":         3500,
	"AXISBANK":   1100,
	"ASIANPAINT": 3200,
}

// SeedPrice returns the initial price for a symbol, or the default seed
// price for symbols outside the base table.
func SeedPrice(symbol string) float64 {
	if p, ok := basePrices[symbol]; ok {
		return p
	}
	return config.DefaultSeedPrice
}
