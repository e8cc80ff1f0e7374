package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"stocksim/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// PostgresPool is the global PostgreSQL connection pool.
	// Nil when DATABASE_URL is not configured; all writers guard on it.
	PostgresPool *pgxpool.Pool
)

// TradeRecord is one executed order archived for post-session review.
type TradeRecord struct {
	RoomCode   string    `json:"roomCode"`
	PlayerID   string    `json:"playerId"`
	PlayerName string    `json:"playerName"`
	Symbol     string    `json:"symbol"`
	OrderType  string    `json:"orderType"`
	Quantity   int       `json:"quantity"`
	Price      float64   `json:"price"`
	ExecutedAt time.Time `json:"executedAt"`
}

// GameResultRecord is the final leaderboard of an ended session.
type GameResultRecord struct {
	RoomCode    string          `json:"roomCode"`
	Regime      string          `json:"regime"`
	Leaderboard json.RawMessage `json:"leaderboard"`
	EndedAt     time.Time       `json:"endedAt"`
}

// InitPostgres initializes the PostgreSQL connection pool. The archive is a
// best-effort write-through: the trading engine never reads it back.
func InitPostgres() error {
	log.Println("🔌 Connecting to PostgreSQL...")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolConfig.MaxConns = config.MaxOpenConns
	poolConfig.MaxConnLifetime = config.ConnMaxLifetime

	PostgresPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := PostgresPool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ PostgreSQL connected successfully")

	if err := InitSchema(context.Background()); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// ClosePostgres closes the PostgreSQL connection pool.
func ClosePostgres() {
	if PostgresPool != nil {
		log.Println("🔌 Closing PostgreSQL connection...")
		PostgresPool.Close()
	}
}

// InitSchema creates the archive tables if they don't exist.
func InitSchema(ctx context.Context) error {
	log.Println("📋 Initializing database schema...")

	tradeSchema := `
	CREATE TABLE IF NOT EXISTS trade_history (
		id SERIAL PRIMARY KEY,
		room_code TEXT NOT NULL,
		player_id TEXT NOT NULL,
		player_name TEXT NOT NULL,
		symbol TEXT NOT NULL,
		order_type TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		executed_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_trade_history_room_code ON trade_history(room_code);
	CREATE INDEX IF NOT EXISTS idx_trade_history_executed_at ON trade_history(executed_at DESC);
	`
	if _, err := PostgresPool.Exec(ctx, tradeSchema); err != nil {
		return fmt.Errorf("failed to create trade_history table: %w", err)
	}

	resultSchema := `
	CREATE TABLE IF NOT EXISTS game_results (
		id SERIAL PRIMARY KEY,
		room_code TEXT NOT NULL,
		regime TEXT NOT NULL,
		leaderboard JSONB NOT NULL,
		ended_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_game_results_ended_at ON game_results(ended_at DESC);
	`
	if _, err := PostgresPool.Exec(ctx, resultSchema); err != nil {
		return fmt.Errorf("failed to create game_results table: %w", err)
	}

	log.Println("✅ Database schema initialized")
	return nil
}

// StoreTrade archives one executed order. No-op when Postgres is disabled.
func StoreTrade(ctx context.Context, record *TradeRecord) error {
	if PostgresPool == nil {
		return nil
	}

	query := `
	INSERT INTO trade_history (room_code, player_id, player_name, symbol, order_type, quantity, price, executed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := PostgresPool.Exec(ctx, query,
		record.RoomCode, record.PlayerID, record.PlayerName,
		record.Symbol, record.OrderType, record.Quantity, record.Price, record.ExecutedAt)
	if err != nil {
		return fmt.Errorf("failed to store trade: %w", err)
	}
	return nil
}

// StoreGameResult archives the final leaderboard of an ended session.
func StoreGameResult(ctx context.Context, record *GameResultRecord) error {
	if PostgresPool == nil {
		return nil
	}

	query := `
	INSERT INTO game_results (room_code, regime, leaderboard, ended_at)
	VALUES ($1, $2, $3, $4)
	`
	_, err := PostgresPool.Exec(ctx, query,
		record.RoomCode, record.Regime, record.Leaderboard, record.EndedAt)
	if err != nil {
		return fmt.Errorf("failed to store game result: %w", err)
	}
	return nil
}

// GetRecentGameResults returns the most recent final leaderboards.
func GetRecentGameResults(ctx context.Context, limit int) ([]*GameResultRecord, error) {
	if PostgresPool == nil {
		return nil, fmt.Errorf("postgres not configured")
	}

	query := `
	SELECT room_code, regime, leaderboard, ended_at
	FROM game_results
	ORDER BY ended_at DESC
	LIMIT $1
	`
	rows, err := PostgresPool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query game results: %w", err)
	}
	defer rows.Close()

	var records []*GameResultRecord
	for rows.Next() {
		record := &GameResultRecord{}
		if err := rows.Scan(&record.RoomCode, &record.Regime, &record.Leaderboard, &record.EndedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game result: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// HealthCheckPostgres pings the pool.
func HealthCheckPostgres(ctx context.Context) error {
	if PostgresPool == nil {
		return fmt.Errorf("postgres not configured")
	}
	return PostgresPool.Ping(ctx)
}
