package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/bigshanyao1/qwen-omni-proxy/config"
	"github.com/bigshanyao1/qwen-omni-proxy/metrics"
	"github.com/bigshanyao1/qwen-omni-proxy/relay"
	"github.com/bigshanyao1/qwen-omni-proxy/server"
	"github.com/bigshanyao1/qwen-omni-proxy/services"
	"github.com/bigshanyao1/qwen-omni-proxy/session"
)

func main() {
	// Initialize context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize config
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	if err := config.Initialize(env); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg := config.Get()

	// Generate a unique ID for this proxy instance
	serverID := uuid.New().String()
	log.Printf("Starting proxy instance with ID: %s", serverID)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// --- Session Store Initialization ---
	var store session.Store
	storeTTL := time.Duration(cfg.SessionStore.TTL) * time.Second

	log.Printf("Initializing session store of type: %s", cfg.SessionStore.Type)
	switch strings.ToLower(cfg.SessionStore.Type) {
	case "memory":
		store = session.NewMemoryStore(storeTTL)
	case "redis":
		redisClient, err := services.NewRedisClient(&cfg.SessionStore.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to Redis for session store: %v", err)
		}
		defer services.CloseRedisClient(redisClient)
		store = session.NewRedisStore(redisClient, storeTTL)
	default:
		// This should be caught by config validation, but we check again as a safeguard.
		log.Fatalf("Invalid session store type specified: %s", cfg.SessionStore.Type)
	}
	// --- End of Session Store Initialization ---

	// Upstream connector: the only place the API credential is attached.
	connector := relay.NewConnector(&cfg.Upstream)

	// Session manager with the collection-wide reaper sweep
	manager := relay.NewManager(store, serverID)
	manager.StartReaper(ctx,
		time.Duration(cfg.Relay.ReaperInterval)*time.Second,
		time.Duration(cfg.Relay.WriteTimeout)*time.Second,
	)

	// Initialize handler
	handler := relay.NewHandler(manager, connector, &cfg.Relay, cfg.Upstream.DefaultModel)

	// Create and start server
	port := ":" + strconv.Itoa(cfg.Server.Port)
	srv := server.NewServer(port, handler.HandleWebSocket, serverID)

	go srv.Start()
	log.Println("Qwen Omni proxy started on " + port)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received")

	// Graceful shutdown
	srv.Shutdown(ctx, manager)
}
