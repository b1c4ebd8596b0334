package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/aangilam/aangilam/internal/chat"
	"github.com/aangilam/aangilam/internal/usage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Config holds the API server configuration.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	RetentionDays  int
}

// Server exposes the usage tracker and the chat proxy over HTTP. It is the
// service-side replacement for the browser hook layer: UI clients drive the
// session lifecycle and read derived stats through these routes.
type Server struct {
	config   Config
	tracker  *usage.Tracker
	chat     *chat.Handler
	server   *http.Server
	router   *mux.Router
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
	logger   zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg Config, tracker *usage.Tracker, chatHandler *chat.Handler, logger zerolog.Logger) *Server {
	router := mux.NewRouter()

	s := &Server{
		config:  cfg,
		tracker: tracker,
		chat:    chatHandler,
		router:  router,
		logger:  logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(CORSMiddleware(s.config.AllowedOrigins))

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	apiRouter := s.router.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/practice/sessions", s.handleStartSession).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/practice/sessions/{id}/end", s.handleEndSession).Methods("POST", "OPTIONS")
	apiRouter.HandleFunc("/practice/sessions/{id}/duration", s.handleUpdateDuration).Methods("PUT", "OPTIONS")
	apiRouter.HandleFunc("/practice/usage/today", s.handleTodayUsage).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/practice/stats", s.handlePracticeStats).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/practice/limits", s.handleLimits).Methods("GET", "OPTIONS")
	apiRouter.HandleFunc("/practice/cleanup", s.handleCleanup).Methods("POST", "OPTIONS")

	if s.chat != nil {
		apiRouter.HandleFunc("/chat", s.chat.HandleChat).Methods("POST", "OPTIONS")
	}
}

// Router returns the underlying router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// SetListener sets a pre-created listener for systemd socket activation.
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting API server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated API listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()
	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}
