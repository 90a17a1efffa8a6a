package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/vihansingh1735-lab/cobalstonee/internal/accrual"
	"github.com/vihansingh1735-lab/cobalstonee/internal/config"
	"github.com/vihansingh1735-lab/cobalstonee/internal/metrics"
	"github.com/vihansingh1735-lab/cobalstonee/internal/poller"
	"github.com/vihansingh1735-lab/cobalstonee/internal/presence"
	"github.com/vihansingh1735-lab/cobalstonee/internal/report"
	"github.com/vihansingh1735-lab/cobalstonee/internal/sink"
	"github.com/vihansingh1735-lab/cobalstonee/internal/storage"
	"github.com/vihansingh1735-lab/cobalstonee/internal/storage/bolt"
	"github.com/vihansingh1735-lab/cobalstonee/internal/storage/redis"
	"github.com/vihansingh1735-lab/cobalstonee/internal/systemd"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Cobalstonee tracker service",
	Long:  `Start the presence poller, the daily report scheduler, and the metrics endpoint.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting Cobalstonee")

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

	// Load the persisted snapshot into the in-memory store
	loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, err := store.Accruals().List(loadCtx)
	if err != nil {
		return fmt.Errorf("failed to load accrual records: %w", err)
	}
	groups, err := store.Groups().List(loadCtx)
	if err != nil {
		return fmt.Errorf("failed to load group configs: %w", err)
	}

	memStore := accrual.NewStore(logger)
	memStore.Load(records, groups)

	logger.Info().
		Int("records", len(records)).
		Int("groups", len(groups)).
		Msg("Snapshot loaded")

	// Initialize presence source
	source, err := presence.NewRobloxClient(presence.RobloxConfig{
		UsersURL:      cfg.Presence.UsersURL,
		PresenceURL:   cfg.Presence.PresenceURL,
		ThumbnailsURL: cfg.Presence.ThumbnailsURL,
		Timeout:       parseDuration(cfg.Presence.Timeout, presence.DefaultTimeout),
		CacheSize:     cfg.Presence.CacheSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize presence client: %w", err)
	}

	// Initialize accrual engine
	engine := accrual.NewEngine(accrual.Config{
		PointInterval: parseDuration(cfg.Tracking.PointInterval, accrual.DefaultPointInterval),
		DailyCap:      cfg.Tracking.DailyCap,
	}, logger)

	logger.Info().
		Str("point_interval", cfg.Tracking.PointInterval).
		Int64("daily_cap", cfg.Tracking.DailyCap).
		Msg("Accrual engine initialized")

	// Start the presence poller
	presencePoller := poller.NewPoller(memStore, engine, source, store, accrual.RealClock{}, poller.Config{
		Tick:        parseDuration(cfg.Tracking.PollTick, poller.DefaultTick),
		Concurrency: cfg.Tracking.LookupConcurrency,
	}, logger)
	presencePoller.Start()

	// Start the daily report scheduler
	webhookSink := sink.NewWebhook(sink.WebhookConfig{
		Timeout:   parseDuration(cfg.Report.Timeout, sink.DefaultTimeout),
		UserAgent: cfg.Report.UserAgent,
	}, logger)

	scheduler := report.NewScheduler(memStore, store, webhookSink, accrual.RealClock{}, report.SchedulerConfig{
		Tick: parseDuration(cfg.Tracking.SchedulerTick, report.DefaultTick),
	}, logger)
	scheduler.Start()

	// Initialize Metrics Server
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Metrics.BindAddress, cfg.Metrics.Port)
	metricsServer := metrics.NewServer(metricsAddr, logger)

	// Use systemd socket-activated listener if available
	if sdListeners.Activated && sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}

	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start Metrics Server: %w", err)
	}

	logger.Info().
		Str("addr", metricsAddr).
		Msg("Metrics Server started")

	logger.Info().Msg("Cobalstonee startup complete")
	logger.Info().Msgf("Metrics: http://%s:%d/metrics", cfg.Metrics.BindAddress, cfg.Metrics.Port)

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// Stop components
	presencePoller.Stop()
	scheduler.Stop()

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping Metrics Server")
	}

	logger.Info().Msg("Cobalstonee stopped")

	return nil
}

// openStorage opens the configured storage backend
func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	storageType := cfg.Type
	if storageType == "" {
		storageType = "bolt"
	}

	switch storageType {
	case "bolt":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (must be 'bolt' or 'redis')", storageType)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
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

	// Set output format
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
