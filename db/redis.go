package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"stocksim/config"

	"github.com/redis/go-redis/v9"
)

var (
	// RedisClient is the global Redis client instance.
	// Nil when REDIS_URL is not configured; all callers guard on it.
	RedisClient *redis.Client
)

// InitRedis initializes the Redis client connection.
func InitRedis() error {
	log.Println("🔌 Connecting to Redis...")

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "localhost:6379"
	}

	RedisClient = redis.NewClient(&redis.Options{
		Addr:         redisURL,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := RedisClient.Ping(ctx).Err(); err != nil {
		RedisClient = nil
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("✅ Redis connected successfully - URL: %s", redisURL)
	return nil
}

// CloseRedis closes the Redis connection.
func CloseRedis() error {
	if RedisClient != nil {
		log.Println("🔌 Closing Redis connection...")
		return RedisClient.Close()
	}
	return nil
}

/* =========================
   FINAL LEADERBOARD CACHE
   Redis Key: result:{roomCode}
========================= */

// CacheFinalLeaderboard stores an ended room's final leaderboard with TTL so
// late clients can fetch it after the room is garbage-collected.
func CacheFinalLeaderboard(ctx context.Context, roomCode string, leaderboard interface{}) error {
	if RedisClient == nil {
		return nil
	}

	data, err := json.Marshal(leaderboard)
	if err != nil {
		return fmt.Errorf("failed to marshal leaderboard: %w", err)
	}

	key := fmt.Sprintf(config.RedisResultKey, roomCode)
	if err := RedisClient.Set(ctx, key, data, config.ResultCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache leaderboard: %w", err)
	}

	log.Printf("✅ Cached final leaderboard for room %s", roomCode)
	return nil
}

// GetFinalLeaderboard retrieves a cached final leaderboard, or nil when the
// room is unknown or the cache is disabled.
func GetFinalLeaderboard(ctx context.Context, roomCode string) (json.RawMessage, error) {
	if RedisClient == nil {
		return nil, nil
	}

	key := fmt.Sprintf(config.RedisResultKey, roomCode)
	data, err := RedisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached leaderboard: %w", err)
	}
	return json.RawMessage(data), nil
}

// HealthCheckRedis pings the Redis client.
func HealthCheckRedis(ctx context.Context) error {
	if RedisClient == nil {
		return fmt.Errorf("redis not configured")
	}
	return RedisClient.Ping(ctx).Err()
}
