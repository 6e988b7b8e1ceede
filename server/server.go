package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/bigshanyao1/qwen-omni-proxy/relay"
)

// Version is the proxy release reported by the health endpoint.
const Version = "1.2.0"

const (
	// PathWebSocket is the client relay endpoint.
	PathWebSocket = "/"
	// PathHealth is the health/readiness endpoint.
	PathHealth = "/health"
)

// Server hosts the relay's two routable paths.
type Server struct {
	httpServer *http.Server
	serverID   string
}

// NewServer builds the HTTP server. No read/write timeouts are set on the
// listener itself: the websocket path carries long-lived connections.
func NewServer(addr string, wsHandler http.HandlerFunc, serverID string) *Server {
	s := &Server{serverID: serverID}

	mux := http.NewServeMux()
	mux.HandleFunc(PathHealth, s.handleHealth)
	mux.HandleFunc(PathWebSocket, wsHandler)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Start listens and serves. Failure to bind is fatal for the process.
func (s *Server) Start() {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("HTTP server failed: %v", err)
	}
}

// Shutdown closes all relay sessions and then stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context, manager *relay.Manager) {
	log.Println("Shutting down: closing active sessions")
	manager.CloseAll("Server shutting down")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown: %v", err)
	}
	log.Println("Shutdown complete")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"service":   "qwen-omni-proxy",
		"server_id": s.serverID,
		"version":   Version,
		"endpoints": map[string]string{
			"websocket": PathWebSocket,
			"health":    PathHealth,
		},
	})
}
