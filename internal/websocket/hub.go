package websocket

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/raaihank/regex-relay/internal/transport"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 4 << 20
	sendBuffer            = 16
)

// Hub maintains the set of connected page agents. The most recently
// connected agent still alive is the active page.
type Hub struct {
	// Connected agents in connection order
	agents []*Agent

	// Register requests from new connections
	register chan *Agent

	// Unregister requests from closed connections
	unregister chan *Agent

	// Closed when Run returns
	done chan struct{}

	upgrader websocket.Upgrader
	config   HubConfig
	logger   *zap.Logger

	mu    sync.RWMutex
	stats HubStats
}

// NewHub creates a new agent hub
func NewHub(config HubConfig, logger *zap.Logger) *Hub {
	if config.PongTimeout <= 0 {
		config.PongTimeout = defaultPongWait
	}
	if config.PingInterval <= 0 || config.PingInterval >= config.PongTimeout {
		config.PingInterval = (config.PongTimeout * 9) / 10
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaultWriteWait
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = defaultMaxMessageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Hub{
		register:   make(chan *Agent),
		unregister: make(chan *Agent),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			// Agents run inside arbitrary pages
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		config: config,
		logger: logger,
	}
}

// Run handles agent registration until ctx is done, then closes every
// remaining connection
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("Starting agent hub", zap.String("component", "websocket"))

	for {
		select {
		case agent := <-h.register:
			h.registerAgent(agent)

		case agent := <-h.unregister:
			h.unregisterAgent(agent)

		case <-ctx.Done():
			close(h.done)

			h.mu.Lock()
			agents := h.agents
			h.agents = nil
			h.mu.Unlock()

			for _, agent := range agents {
				agent.close()
			}
			h.logger.Info("Agent hub stopped", zap.String("component", "websocket"))
			return
		}
	}
}

func (h *Hub) registerAgent(agent *Agent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.agents = append(h.agents, agent)
	h.stats.TotalConnections++
	h.stats.ActiveConnections = int64(len(h.agents))
	h.stats.LastConnectionTime = time.Now()

	h.logger.Info("Agent connected",
		zap.String("component", "websocket"),
		zap.String("agent_id", agent.ID),
		zap.String("agent_ip", agent.IP),
		zap.Int64("active_connections", h.stats.ActiveConnections),
	)
}

func (h *Hub) unregisterAgent(agent *Agent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, a := range h.agents {
		if a != agent {
			continue
		}
		h.agents = append(h.agents[:i], h.agents[i+1:]...)
		h.stats.ActiveConnections = int64(len(h.agents))
		h.stats.LastDisconnectTime = time.Now()

		h.logger.Info("Agent disconnected",
			zap.String("component", "websocket"),
			zap.String("agent_id", agent.ID),
			zap.Int64("active_connections", h.stats.ActiveConnections),
		)
		break
	}
	agent.close()
}

// ActiveTarget returns the most recently connected agent
func (h *Hub) ActiveTarget(context.Context) (transport.Target, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.agents) == 0 {
		return nil, transport.ErrNoActiveTarget
	}
	return h.agents[len(h.agents)-1], nil
}

// Agents lists the connected agents, the active one last
func (h *Hub) Agents() []AgentInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]AgentInfo, 0, len(h.agents))
	for i, a := range h.agents {
		a.mu.Lock()
		lastPing := a.lastPing
		a.mu.Unlock()

		out = append(out, AgentInfo{
			ID:          a.ID,
			IP:          a.IP,
			UserAgent:   a.UserAgent,
			ConnectedAt: a.ConnectedAt,
			LastPing:    lastPing,
			Active:      i == len(h.agents)-1,
		})
	}
	return out
}

// GetStats returns current hub statistics
func (h *Hub) GetStats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := h.stats
	stats.ActiveConnections = int64(len(h.agents))
	return stats
}

func (h *Hub) countRequest() {
	h.mu.Lock()
	h.stats.TotalRequests++
	h.mu.Unlock()
}

func (h *Hub) countResponse() {
	h.mu.Lock()
	h.stats.TotalResponses++
	h.mu.Unlock()
}

// HandleWebSocket upgrades an authenticated page agent connection. The
// optional "tab" query parameter names the agent.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="regex-relay"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection",
			zap.String("component", "websocket"),
			zap.Error(err),
		)
		return
	}

	id := r.URL.Query().Get("tab")
	if id == "" {
		id = generateAgentID()
	}

	now := time.Now()
	agent := &Agent{
		ID:          id,
		IP:          getClientIP(r),
		UserAgent:   r.UserAgent(),
		ConnectedAt: now,
		hub:         h,
		conn:        conn,
		send:        make(chan transport.Message, sendBuffer),
		closed:      make(chan struct{}),
		pending:     make(map[string]chan transport.Message),
		lastPing:    now,
	}

	select {
	case h.register <- agent:
	case <-h.done:
		conn.Close()
		return
	}

	go agent.writePump()
	go agent.readPump()
}

func (h *Hub) authorized(r *http.Request) bool {
	if h.config.Username == "" && h.config.Password == "" {
		return true
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(h.config.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(h.config.Password)) == 1
	return userOK && passOK
}

// generateAgentID generates a unique agent ID
func generateAgentID() string {
	return fmt.Sprintf("agent_%d", time.Now().UnixNano())
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
