package main

import (
	"log"
	"net/http"
	"os"

	"stocksim/api"
	"stocksim/config"
	"stocksim/db"
	"stocksim/state"
	"stocksim/ws"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables")
	} else {
		log.Println("✅ Loaded environment variables from .env")
	}

	// Optional archive stores - the engine runs fully in-memory without them
	if err := db.InitPostgres(); err != nil {
		log.Printf("⚠️  Warning: PostgreSQL initialization failed: %v", err)
		log.Println("   Trade and result archiving will be disabled")
	}
	defer db.ClosePostgres()

	if err := db.InitRedis(); err != nil {
		log.Printf("⚠️  Warning: Redis initialization failed: %v", err)
		log.Println("   Final leaderboard caching will be disabled")
	}
	defer db.CloseRedis()

	// Engine state: room registry + websocket hub
	registry := state.NewRegistry()
	hub := ws.NewHub(registry)
	go hub.Run()

	apiServer := api.NewServer(registry)

	// WebSocket endpoint
	http.HandleFunc("/ws", hub.HandleWS)

	// API endpoints
	http.HandleFunc("/api/health", apiServer.HandleHealthCheck)
	http.HandleFunc("/api/stats", apiServer.HandleGetStats)
	http.HandleFunc("/api/results", apiServer.HandleGetResults)

	port := os.Getenv("PORT")
	if port == "" {
		port = config.ServerPort
	}
	addr := config.ServerHost + ":" + port

	log.Printf("🚀 Server starting on %s", addr)
	log.Println("")
	log.Println("📡 WebSocket Endpoint:")
	log.Println("   ws://localhost:" + port + "/ws")
	log.Println("   Commands: create-room, join, start, pause, end, inject-volatility, execute-trade")
	log.Println("")
	log.Println("🔌 API Endpoints:")
	log.Println("   GET /api/health  - Health check (rooms, players, stores)")
	log.Println("   GET /api/stats   - Per-room liveness summaries")
	log.Println("   GET /api/results - Recent final leaderboards (archive)")
	log.Println("")

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal("❌ Server error:", err)
	}
}
