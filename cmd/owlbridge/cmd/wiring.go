package cmd

import (
	"io"
	"log/slog"
	"strings"

	"github.com/owlbridge/owlbridge/internal/adapter/outbound/memory"
	"github.com/owlbridge/owlbridge/internal/adapter/outbound/peer"
	"github.com/owlbridge/owlbridge/internal/adapter/outbound/workspace"
	"github.com/owlbridge/owlbridge/internal/config"
	"github.com/owlbridge/owlbridge/internal/domain/auth"
	"github.com/owlbridge/owlbridge/internal/service"
	"github.com/owlbridge/owlbridge/pkg/lsp"
)

// newLogger builds the process logger. Logs go to w (stderr) so stdout stays
// free for command output.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// sessionConfig maps the peer and protocol sections onto a SessionConfig.
func sessionConfig(cfg *config.Config) service.SessionConfig {
	sync := service.SyncAck
	if cfg.Peer.Sync == string(service.SyncDelay) {
		sync = service.SyncDelay
	}
	return service.SessionConfig{
		Builder: lsp.Builder{
			LanguageID:    cfg.Protocol.LanguageID,
			AnalyzeMethod: cfg.Protocol.AnalyzeMethod,
			CursorMethod:  cfg.Protocol.CursorMethod,
		},
		Sync:          sync,
		WriteDelay:    cfg.WriteDelay(),
		MaxFrameBytes: cfg.Peer.MaxFrameBytes,
	}
}

// newAnalysisService wires the peer factory, workspace and optional result
// cache into an AnalysisService. The returned cache is nil when caching is
// disabled.
func newAnalysisService(cfg *config.Config, logger *slog.Logger, engineStderr io.Writer, observer service.TransactionObserver) (*service.AnalysisService, *memory.ResultCache) {
	var peerOpts []peer.Option
	if cfg.Workspace.Dir != "" {
		peerOpts = append(peerOpts, peer.WithDir(cfg.Workspace.Dir))
	}
	if engineStderr != nil {
		peerOpts = append(peerOpts, peer.WithStderr(engineStderr))
	}

	opts := []service.Option{
		service.WithSessionConfig(sessionConfig(cfg)),
		service.WithTimeout(cfg.PeerTimeout()),
		service.WithMaxConcurrent(cfg.Server.MaxConcurrent),
		service.WithMaxSourceBytes(cfg.Server.MaxSourceBytes),
	}
	if observer != nil {
		opts = append(opts, service.WithObserver(observer))
	}

	var cache *memory.ResultCache
	if cfg.Cache.Enabled {
		cache = memory.NewResultCache(cfg.Cache.MaxEntries)
		opts = append(opts, service.WithResultCache(cache))
	}

	svc := service.NewAnalysisService(
		peer.NewFactory(cfg.Peer.Command, cfg.Peer.Args, peerOpts...),
		workspace.New(cfg.Workspace.Dir, cfg.Workspace.Extension, logger),
		logger,
		opts...,
	)
	return svc, cache
}

// newKeyRing converts configured API keys. It returns nil when none are
// configured, which leaves the API unauthenticated.
func newKeyRing(cfg *config.Config) (*auth.KeyRing, error) {
	if len(cfg.Auth.APIKeys) == 0 {
		return nil, nil
	}
	keys := make([]auth.Key, 0, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		keys = append(keys, auth.Key{Name: k.Name, Hash: k.KeyHash})
	}
	return auth.NewKeyRing(keys)
}
