package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raaihank/regex-relay/internal/transport"
)

// HubConfig contains configuration for the agent hub
type HubConfig struct {
	Username        string
	Password        string
	ReadBufferSize  int
	WriteBufferSize int
	PingInterval    time.Duration
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxMessageSize  int64
}

// HubStats tracks agent hub statistics
type HubStats struct {
	TotalConnections   int64     `json:"total_connections"`
	ActiveConnections  int64     `json:"active_connections"`
	TotalRequests      int64     `json:"total_requests"`
	TotalResponses     int64     `json:"total_responses"`
	LastConnectionTime time.Time `json:"last_connection_time"`
	LastDisconnectTime time.Time `json:"last_disconnect_time"`
}

// AgentInfo describes a connected page agent
type AgentInfo struct {
	ID          string    `json:"id"`
	IP          string    `json:"ip"`
	UserAgent   string    `json:"user_agent,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
	LastPing    time.Time `json:"last_ping"`
	Active      bool      `json:"active"`
}

// Agent is one connected page. It implements transport.Target.
type Agent struct {
	ID          string
	IP          string
	UserAgent   string
	ConnectedAt time.Time

	hub      *Hub
	conn     *websocket.Conn
	send     chan transport.Message
	closed   chan struct{}
	once     sync.Once
	mu       sync.Mutex
	pending  map[string]chan transport.Message
	lastPing time.Time
}
