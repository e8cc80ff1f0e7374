package config

import "time"

/* =========================
   MARKET SIMULATION
========================= */

const (
	// Price floor - simulated prices never drop below 1 unit
	PriceFloor = 1.0

	// Default seed price for symbols not in the base price table
	DefaultSeedPrice = 1000.0

	// Spike probability per tick (all regimes)
	SpikeProbability = 0.10

	// Residual noise applied on every tick: (rand - 0.5) * ResidualNoise
	ResidualNoise = 0.0002

	// Manual volatility injection: (rand - 0.5) * InjectVolatilityRange = ±2.5%
	InjectVolatilityRange = 0.05
)

/* =========================
   GAME TIMING
========================= */

const (
	// Market ticks every 500ms while a room is active
	MarketTickInterval = 500 * time.Millisecond

	// Countdown decrements once per second
	CountdownInterval = 1 * time.Second

	// Candles aggregate ticks into fixed 5-second buckets
	CandleBucketSeconds = 5

	// Default session length when the operator omits one (5 minutes)
	DefaultDuration = 300

	// Ended rooms linger before registry cleanup so clients see the final state
	EndedRoomLinger = 60 * time.Second
)

/* =========================
   TRADING
========================= */

const (
	// Every player starts with this cash balance
	StartingCapital = 500000.0

	// Margin withheld for short positions (fraction of notional)
	ShortMarginRatio = 0.5

	// Maximum players per room
	MaxPlayersPerRoom = 10

	// Rooms carry between 1 and 3 instruments
	MaxSymbolsPerRoom = 3

	// Room codes are 6 chars from A-Z0-9
	RoomCodeLength = 6
)

/* =========================
   SERVER
========================= */

const (
	ServerHost = "0.0.0.0"
	ServerPort = "8080"

	// WebSocket buffer sizes
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024

	// Per-client outbound queue depth
	ClientSendBuffer = 256
)

/* =========================
   ARCHIVE (Postgres / Redis)
========================= */

const (
	// Connection pool settings
	MaxOpenConns    = 25
	ConnMaxLifetime = 5 * time.Minute

	// Final leaderboard cache TTL
	// Key: result:{roomCode}
	ResultCacheTTL = 2 * time.Hour

	// Redis key pattern for cached final leaderboards
	RedisResultKey = "result:%s" // result:{roomCode}

	// Recent results returned by the API
	MaxRecentResults = 50
)
