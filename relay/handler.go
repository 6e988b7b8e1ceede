package relay

import (
	"errors"
	"log"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bigshanyao1/qwen-omni-proxy/config"
)

// Upgrader for client websocket connections.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler accepts client connections and wires each one to a relay session.
type Handler struct {
	manager      *Manager
	dialer       upstreamDialer
	relayCfg     *config.RelayConfig
	defaultModel string
}

// NewHandler creates a new websocket handler.
func NewHandler(manager *Manager, dialer upstreamDialer, relayCfg *config.RelayConfig, defaultModel string) *Handler {
	return &Handler{
		manager:      manager,
		dialer:       dialer,
		relayCfg:     relayCfg,
		defaultModel: defaultModel,
	}
}

// HandleWebSocket handles an incoming client connection: upgrade, session
// creation, and the client read loop. The model query parameter is the only
// request input that influences behavior.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	model := r.URL.Query().Get("model")
	if model == "" {
		model = h.defaultModel
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	sess := NewSession(uuid.New().String(), model, conn, h.dialer, h.relayCfg)
	if err := h.manager.Add(r.Context(), sess); err != nil {
		conn.Close()
		return
	}
	sess.Start()

	// Read messages from the client until the connection ends. Teardown and
	// registry removal happen through the session's own lifecycle.
	for {
		messageType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) &&
				!errors.Is(err, net.ErrClosed) {
				log.Printf("Read error from client %s: %v", sess.ID, err)
			}
			sess.ClientClosed()
			return
		}
		h.manager.RefreshTTL(r.Context(), sess.ID)
		sess.ClientMessage(messageType, msg)
	}
}
