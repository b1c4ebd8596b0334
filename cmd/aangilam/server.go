package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aangilam/aangilam/internal/api"
	"github.com/aangilam/aangilam/internal/chat"
	"github.com/aangilam/aangilam/internal/config"
	"github.com/aangilam/aangilam/internal/metrics"
	"github.com/aangilam/aangilam/internal/storage"
	"github.com/aangilam/aangilam/internal/storage/bolt"
	"github.com/aangilam/aangilam/internal/storage/redis"
	"github.com/aangilam/aangilam/internal/systemd"
	"github.com/aangilam/aangilam/internal/usage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Aangilam server",
	Long:  `Start the Aangilam server with the practice API, chat proxy, and metrics endpoints.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting Aangilam")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Msg("Storage initialized")

	// Initialize Usage Tracker
	limits := usage.LimitsFromConfig(cfg.Limits)
	tracker := usage.NewTracker(store.Usage(), limits, usage.RealClock{}, logger)

	logger.Info().Int("practice_types", len(limits)).Msg("Usage Tracker initialized")

	// Initialize Stats Poller
	poller := usage.NewStatsPoller(tracker, parseDuration(cfg.Usage.StatsPollInterval, 30*time.Second), logger)
	poller.Start()

	// Initialize Cleanup Scheduler
	cleanupScheduler, err := usage.NewCleanupScheduler(tracker, cfg.Usage.RetentionDays, cfg.Usage.DailyCleanupTime, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Cleanup Scheduler: %w", err)
	}
	cleanupScheduler.Start()

	// Initialize Chat Proxy
	chatClient := chat.NewClient(chat.ClientConfig{
		URL:     cfg.Chat.UpstreamURL,
		APIKey:  cfg.Chat.APIKey,
		Model:   cfg.Chat.Model,
		Timeout: parseDuration(cfg.Chat.Timeout, 30*time.Second),
	}, logger)
	chatHandler := chat.NewHandler(chatClient, cfg.Chat.Temperature, cfg.Chat.MaxTokens, logger)

	logger.Info().
		Str("upstream", cfg.Chat.UpstreamURL).
		Str("model", cfg.Chat.Model).
		Msg("Chat proxy initialized")

	// Initialize API Server
	apiServer := api.NewServer(api.Config{
		ListenAddr:     fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.HTTPPort),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RetentionDays:  cfg.Usage.RetentionDays,
	}, tracker, chatHandler, logger)

	if sdListeners.HTTP != nil {
		apiServer.SetListener(sdListeners.HTTP)
	}
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	// Initialize Metrics Server
	metricsServer := metrics.NewServer(fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort), logger)
	if sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	logger.Info().Msg("Aangilam startup complete")
	logger.Info().Msgf("API: http://%s:%d/api", cfg.Server.BindAddress, cfg.Server.HTTPPort)
	logger.Info().Msgf("Metrics: http://%s:%d/metrics", cfg.Server.BindAddress, cfg.Server.MetricsPort)

	if sdListeners.Activated {
		if err := systemd.NotifyReady(); err != nil {
			logger.Warn().Err(err).Msg("Failed to notify systemd")
		}
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	if sdListeners.Activated {
		_ = systemd.NotifyStopping()
	}

	cleanupScheduler.Stop()
	poller.Stop()

	if err := apiServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping API server")
	}

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping metrics server")
	}

	logger.Info().Msg("Aangilam stopped")
	return nil
}

// openStorage opens the configured storage backend
func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return bolt.Open(cfg.Path)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
