package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Session metrics
	SessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aangilam_sessions_started_total",
			Help: "Total practice sessions started",
		},
		[]string{"practice_type"},
	)

	SessionsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aangilam_sessions_completed_total",
			Help: "Total practice sessions completed",
		},
		[]string{"practice_type"},
	)

	PracticeSecondsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aangilam_practice_seconds_recorded_total",
			Help: "Total completed practice seconds recorded",
		},
		[]string{"practice_type"},
	)

	// Quota gauges, refreshed by the stats poller
	PracticeUsedMinutes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aangilam_practice_used_minutes",
			Help: "Completed practice minutes used today",
		},
		[]string{"practice_type"},
	)

	PracticeRemainingMinutes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aangilam_practice_remaining_minutes",
			Help: "Practice minutes remaining today",
		},
		[]string{"practice_type"},
	)

	PracticeLocked = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aangilam_practice_locked",
			Help: "Whether the practice type is locked for the day (1 = locked)",
		},
		[]string{"practice_type"},
	)

	// HTTP API metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aangilam_requests_total",
			Help: "Total HTTP API requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// Chat proxy metrics
	ChatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aangilam_chat_requests_total",
			Help: "Total chat proxy requests",
		},
		[]string{"outcome"},
	)

	ChatUpstreamErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "aangilam_chat_upstream_errors_total",
			Help: "Chat upstream request errors",
		},
	)

	// Storage metrics
	StorageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aangilam_storage_errors_total",
			Help: "Usage store read/write failures absorbed by the tracker",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsStarted,
		SessionsCompleted,
		PracticeSecondsRecorded,
		PracticeUsedMinutes,
		PracticeRemainingMinutes,
		PracticeLocked,
		RequestsTotal,
		ChatRequestsTotal,
		ChatUpstreamErrors,
		StorageErrors,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
