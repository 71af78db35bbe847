package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/raaihank/regex-relay/internal/config"
	"github.com/raaihank/regex-relay/internal/hotkey"
	"github.com/raaihank/regex-relay/internal/logger"
	"github.com/raaihank/regex-relay/internal/session"
	"github.com/raaihank/regex-relay/internal/store"
	"github.com/raaihank/regex-relay/internal/transport"
	"github.com/raaihank/regex-relay/internal/websocket"
)

// Version is reported by /info
var Version = "0.1.0"

// Server is the rule editing and run API
type Server struct {
	config     *config.Config
	logger     *logger.Logger
	session    *session.Session
	repo       *store.Repository
	hub        *websocket.Hub
	resolver   transport.Resolver
	dispatcher *transport.Dispatcher
	hotkeys    *hotkey.Handler
	limiter    *rate.Limiter
	router     *mux.Router
	server     *http.Server
	started    time.Time

	// Runs are delivered one at a time
	runMu sync.Mutex
}

// Option customizes a Server
type Option func(*Server)

// WithResolver delivers runs to r instead of the connected page agents
func WithResolver(r transport.Resolver) Option {
	return func(s *Server) { s.resolver = r }
}

// New creates a server over an editing session and its repository
func New(cfg *config.Config, log *logger.Logger, sess *session.Session, repo *store.Repository, opts ...Option) *Server {
	hub := websocket.NewHub(websocket.HubConfig{
		Username:        cfg.WebSocket.Username,
		Password:        cfg.WebSocket.Password,
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		PingInterval:    cfg.WebSocket.PingInterval,
		PongTimeout:     cfg.WebSocket.PongTimeout,
		WriteTimeout:    cfg.WebSocket.WriteTimeout,
		MaxMessageSize:  cfg.WebSocket.MaxMessageSize,
	}, log.Logger)

	s := &Server{
		config:   cfg,
		logger:   log.WithComponent("server"),
		session:  sess,
		repo:     repo,
		hub:      hub,
		resolver: hub,
		router:   mux.NewRouter(),
		limiter:  newLimiter(cfg.Server),
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.dispatcher = transport.NewDispatcher(s.resolver, transport.Config{
		Timeout:       cfg.Transport.Timeout,
		AttachTimeout: cfg.Transport.AttachTimeout,
	}, log.WithComponent("transport"))
	s.hotkeys = hotkey.NewHandler(repo, s.dispatcher, log)

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

func newLimiter(cfg config.ServerConfig) *rate.Limiter {
	if cfg.RunRateLimit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := cfg.RunBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RunRateLimit), burst)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	// Page agents connect here
	s.router.HandleFunc(s.config.WebSocket.Path, s.hub.HandleWebSocket).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/groups", s.handleListGroups).Methods("GET")
	api.HandleFunc("/groups", s.handleAddGroup).Methods("POST")
	api.HandleFunc("/groups/{id}", s.handleUpdateGroup).Methods("PUT", "PATCH")
	api.HandleFunc("/groups/{id}", s.handleDeleteGroup).Methods("DELETE")
	api.HandleFunc("/groups/{id}/move", s.handleMoveGroup).Methods("POST")
	api.HandleFunc("/groups/{id}/select", s.handleSelectGroup).Methods("POST")
	api.HandleFunc("/groups/{id}/slot", s.handleAssignSlot).Methods("PUT")
	api.HandleFunc("/groups/{id}/run", s.throttled(s.handleRunGroup)).Methods("POST")

	api.HandleFunc("/groups/{id}/rules", s.handleAddRule).Methods("POST")
	api.HandleFunc("/groups/{id}/rules/{rid}", s.handleUpdateRule).Methods("PUT", "PATCH")
	api.HandleFunc("/groups/{id}/rules/{rid}", s.handleDeleteRule).Methods("DELETE")
	api.HandleFunc("/groups/{id}/rules/{rid}/move", s.handleMoveRule).Methods("POST")
	api.HandleFunc("/groups/{id}/rules/{rid}/run", s.throttled(s.handleRunRule)).Methods("POST")

	api.HandleFunc("/run", s.throttled(s.handleRunCurrent)).Methods("POST")
	api.HandleFunc("/commands/{command}", s.throttled(s.handleCommand)).Methods("POST")

	api.HandleFunc("/slots", s.handleListSlots).Methods("GET")
	api.HandleFunc("/agents", s.handleListAgents).Methods("GET")

	api.HandleFunc("/export", s.handleExport).Methods("GET")
	api.HandleFunc("/import", s.handleImport).Methods("POST")
}

// Handler returns the HTTP handler, for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Dispatcher returns the run dispatcher
func (s *Server) Dispatcher() *transport.Dispatcher {
	return s.dispatcher
}

// Hub returns the page agent hub
func (s *Server) Hub() *websocket.Hub {
	return s.hub
}

// Reload applies the settings that can change while running
func (s *Server) Reload(cfg *config.Config) {
	s.dispatcher.SetTimeout(cfg.Transport.Timeout)
	if cfg.Server.RunRateLimit <= 0 {
		s.limiter.SetLimit(rate.Inf)
	} else {
		s.limiter.SetLimit(rate.Limit(cfg.Server.RunRateLimit))
		s.limiter.SetBurst(max(cfg.Server.RunBurst, 1))
	}

	s.logger.Info("Configuration reloaded",
		zap.Duration("transport_timeout", cfg.Transport.Timeout),
		zap.Float64("run_rate_limit", cfg.Server.RunRateLimit))
}

// Start runs the agent hub and serves HTTP until Stop
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting regex-relay server",
		zap.Int("port", s.config.Server.Port),
		zap.String("storage", s.config.Storage.Driver),
		zap.String("websocket_path", s.config.WebSocket.Path),
		zap.Duration("transport_timeout", s.dispatcher.Timeout()),
	)

	go s.hub.Run(ctx)

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server and flushes pending edits
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping regex-relay server")

	err := s.server.Shutdown(ctx)
	if flushErr := s.session.Close(ctx); flushErr != nil && err == nil {
		err = flushErr
	}
	return err
}
