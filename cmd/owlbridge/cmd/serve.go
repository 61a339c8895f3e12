package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/owlbridge/owlbridge/internal/adapter/inbound/http"
	"github.com/owlbridge/owlbridge/internal/adapter/outbound/memory"
	"github.com/owlbridge/owlbridge/internal/config"
	"github.com/owlbridge/owlbridge/internal/domain/ratelimit"
	"github.com/owlbridge/owlbridge/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve [-- command [args...]]",
	Short: "Start the HTTP server",
	Long: `Start the owlbridge HTTP server.

Each POST /api/analyze request spawns the engine command configured as
peer.command (default "rustowl"). Arguments after "--" replace the configured
command and its arguments.

Examples:
  # Serve with owlbridge.yaml or defaults
  owlbridge serve

  # Use a specific engine binary
  owlbridge serve -- /opt/rustowl/bin/rustowl

  # Verbose logging
  owlbridge serve --dev`,
	RunE: runServe,
}

var devMode bool

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging, pretty traces)")
	rootCmd.AddCommand(serveCmd)
}

// loadConfig loads configuration, applies CLI overrides from args (the
// engine command line), then dev defaults and validation.
func loadConfig(args []string) (*config.Config, error) {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if devMode {
		cfg.DevMode = true
	}

	if len(args) > 0 {
		cfg.Peer.Command = args[0]
		cfg.Peer.Args = args[1:]
	}

	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := newLogger(cfg, os.Stderr)
	logger.Debug("log level configured", "level", cfg.Server.LogLevel)

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer func() { _ = os.Remove(pidPath) }()
	}

	if err := serve(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("owlbridge stopped")
	return nil
}

// serve wires every component and blocks until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	_, shutdownTracing, err := telemetry.SetupTracing(telemetry.Options{
		Enabled:        cfg.Tracing.Enabled,
		Pretty:         cfg.Tracing.Pretty,
		ServiceVersion: Version,
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	registry := httpadapter.NewRegistry()
	metrics := httpadapter.NewMetrics(registry)

	analysisService, cache := newAnalysisService(cfg, logger, os.Stderr, metrics)

	keys, err := newKeyRing(cfg)
	if err != nil {
		return fmt.Errorf("failed to load API keys: %w", err)
	}

	opts := []httpadapter.Option{
		httpadapter.WithAddr(cfg.Server.HTTPAddr),
		httpadapter.WithLogger(logger),
		httpadapter.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		httpadapter.WithMetrics(registry, metrics),
		httpadapter.WithKeyRing(keys),
	}

	var limiter *memory.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = memory.NewRateLimiter(cfg.CleanupInterval(), cfg.MaxTTL())
		limiter.StartCleanup(ctx)
		defer limiter.Stop()
		opts = append(opts, httpadapter.WithRateLimit(limiter, ratelimit.PerMinute(cfg.RateLimit.IPRate)))
	}

	opts = append(opts, httpadapter.WithHealthChecker(
		httpadapter.NewHealthChecker(cfg.Peer.Command, analysisService, limiter, cache, Version),
	))

	logger.Info("engine configured",
		"command", cfg.Peer.Command,
		"args", cfg.Peer.Args,
		"sync", cfg.Peer.Sync,
		"timeout", cfg.PeerTimeout(),
		"max_concurrent", cfg.Server.MaxConcurrent,
	)
	if keys == nil {
		logger.Warn("no API keys configured, /api/analyze is unauthenticated")
	}

	server := httpadapter.NewServer(analysisService, opts...)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
