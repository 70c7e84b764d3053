package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/alertbeacon/alertbeacon/internal/alerter"
	"github.com/alertbeacon/alertbeacon/internal/api"
	"github.com/alertbeacon/alertbeacon/internal/config"
	"github.com/alertbeacon/alertbeacon/internal/indicator"
	"github.com/alertbeacon/alertbeacon/internal/ingest"
	"github.com/alertbeacon/alertbeacon/internal/logbuf"
	"github.com/alertbeacon/alertbeacon/internal/metrics"
	"github.com/alertbeacon/alertbeacon/internal/notifier"
	"github.com/alertbeacon/alertbeacon/internal/pattern"
	"github.com/alertbeacon/alertbeacon/internal/version"
	"github.com/alertbeacon/alertbeacon/internal/ws"
)

func serveCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook receiver (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*envFile)
		},
	}
}

func runServe(envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	// Keep the last 1000 log lines for /api/logs
	logBuffer := logbuf.NewLogBuffer(1000)
	logger := newLogger(cfg, os.Stdout, logBuffer)

	logger.Info().
		Int("port", cfg.Port).
		Str("lightbulb_type", cfg.Indicator.LightbulbType).
		Bool("secret_required", cfg.WebhookSecret != "").
		Msg("Starting alertbeacon")

	table := pattern.NewTable()
	if err := config.ApplyPatterns(cfg.Patterns.File, table); err != nil {
		return fmt.Errorf("loading pattern file: %w", err)
	}

	driver := indicator.Open(indicatorOptions(cfg), logger)
	info := driver.Info()
	if !info.Available {
		logger.Warn().
			Str("driver", info.Type).
			Str("detail", info.Detail).
			Msg("Indicator hardware unavailable, running degraded")
	}

	engine := pattern.NewEngine(driver, nil, logger)
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error().Err(err).Msg("Error releasing indicator")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notify := notifier.NewNotifier(cfg.Apprise, logger)
	if notify.Enabled() {
		go notify.Run(ctx)
	}

	tracker := alerter.NewTracker(engine, table, nil, notify, logger, alerter.Options{
		RemindInterval: cfg.Alerts.RemindInterval,
		FlapThreshold:  cfg.Alerts.FlapThreshold,
		FlapWindow:     cfg.Alerts.FlapWindow,
	})
	defer tracker.Close()

	if cfg.Patterns.File != "" {
		go watchPatterns(ctx, cfg.Patterns.File, table, logger)
	}

	hub := ws.New(engine.State, logger)
	engine.Subscribe(hub.Publish)
	go hub.Run(ctx)

	v := version.Get()
	server := api.NewServer(tracker, engine, ingest.NewRegistry(), cfg.WebhookSecret, logger, cfg.Addr())
	server.SetLogBuffer(logBuffer)
	server.SetMetrics(metrics.New(engine, tracker))
	server.SetEventStream(hub)
	server.SetVersion(v.Version, v.Commit, v.BuildDate)

	if err := server.Start(); err != nil {
		logger.Error().Err(err).Msg("Failed to start API server")
		return err
	}

	logger.Info().Msg("alertbeacon running, press Ctrl+C to stop")
	<-ctx.Done()
	logger.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error draining API server")
	}

	logger.Info().Msg("alertbeacon stopped")
	return nil
}

func watchPatterns(ctx context.Context, path string, table *pattern.Table, logger zerolog.Logger) {
	if err := config.WatchPatterns(ctx, path, table, logger, nil); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Pattern file hot reload disabled")
	}
}
