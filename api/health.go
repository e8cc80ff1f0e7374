package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"stocksim/config"
	"stocksim/db"
	"stocksim/state"
)

// Server exposes the operational query surface over the injected registry.
type Server struct {
	registry *state.Registry
}

// NewServer creates the API layer bound to a room registry.
func NewServer(registry *state.Registry) *Server {
	return &Server{registry: registry}
}

// HandleHealthCheck handles GET /api/health.
// Reports room and player counts plus archive store status.
func (s *Server) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rooms, players := s.registry.Counts()

	postgresStatus := "ok"
	if err := db.HealthCheckPostgres(ctx); err != nil {
		postgresStatus = "disabled"
	}
	redisStatus := "ok"
	if err := db.HealthCheckRedis(ctx); err != nil {
		redisStatus = "disabled"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "ok",
		"rooms":    rooms,
		"players":  players,
		"postgres": postgresStatus,
		"redis":    redisStatus,
	})
}

// HandleGetStats handles GET /api/stats.
// Per-room liveness summaries for monitoring.
func (s *Server) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rooms, players := s.registry.Counts()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"rooms":   rooms,
		"players": players,
		"detail":  s.registry.Summaries(),
	})
}

// HandleGetResults handles GET /api/results.
// Recent final leaderboards from the Postgres archive.
func (s *Server) HandleGetResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	records, err := db.GetRecentGameResults(ctx, config.MaxRecentResults)
	if err != nil {
		log.Printf("⚠️  Failed to get game results: %v", err)
		http.Error(w, "Results archive not available", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"results": records,
	})
}
