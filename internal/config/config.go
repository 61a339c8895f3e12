// Package config provides configuration types for owlbridge.
//
// Configuration is file-based (owlbridge.yaml) with environment overrides.
// Every section is optional; SetDefaults fills in a working local setup that
// listens on localhost and spawns "rustowl" from PATH.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values applied by SetDefaults.
const (
	DefaultHTTPAddr        = "127.0.0.1:7819"
	DefaultLogLevel        = "info"
	DefaultMaxBodyBytes    = 1 << 20
	DefaultMaxSourceBytes  = 512 << 10
	DefaultMaxConcurrent   = 4
	DefaultPeerCommand     = "rustowl"
	DefaultPeerTimeout     = "60s"
	DefaultPeerSync        = "ack"
	DefaultWriteDelay      = "300ms"
	DefaultMaxFrameBytes   = 64 << 20
	DefaultLanguageID      = "rust"
	DefaultAnalyzeMethod   = "rustowl/analyze"
	DefaultCursorMethod    = "rustowl/cursor"
	DefaultExtension       = ".rs"
	DefaultCacheEntries    = 256
	DefaultIPRate          = 60
	DefaultCleanupInterval = "5m"
	DefaultMaxTTL          = "1h"
)

// Config is the top-level configuration for owlbridge.
type Config struct {
	// Server configures the HTTP listener and request limits.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Peer configures the analysis engine process.
	Peer PeerConfig `yaml:"peer" mapstructure:"peer"`

	// Protocol names the methods and language tag sent to the engine.
	Protocol ProtocolConfig `yaml:"protocol" mapstructure:"protocol"`

	// Workspace configures where analyzed documents are written.
	Workspace WorkspaceConfig `yaml:"workspace" mapstructure:"workspace"`

	// Cache configures the optional result cache.
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`

	// RateLimit configures optional per-IP rate limiting.
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Auth configures API keys. When empty, the API is unauthenticated.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Tracing configures OpenTelemetry span export.
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`

	// DevMode enables development features (verbose logging, pretty traces).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g., "127.0.0.1:7819", "0.0.0.0:7819").
	// Defaults to "127.0.0.1:7819" (localhost only) if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// MaxBodyBytes bounds the analyze request body. Defaults to 1 MiB.
	MaxBodyBytes int64 `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"gte=0"`

	// MaxSourceBytes bounds the source text of one request. Defaults to 512 KiB.
	MaxSourceBytes int `yaml:"max_source_bytes" mapstructure:"max_source_bytes" validate:"gte=0"`

	// MaxConcurrent bounds how many engine processes run at once. Defaults to 4.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent" validate:"gte=0,lte=256"`
}

// PeerConfig configures the engine process spawned per transaction.
type PeerConfig struct {
	// Command is the engine executable, resolved through PATH.
	// Defaults to "rustowl".
	Command string `yaml:"command" mapstructure:"command"`

	// Args are passed to Command.
	Args []string `yaml:"args" mapstructure:"args"`

	// Timeout bounds one whole transaction (e.g., "60s").
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty,duration"`

	// Sync selects how the session waits between messages: "ack" waits for
	// the engine's reply to each request, "delay" sleeps WriteDelay instead.
	Sync string `yaml:"sync" mapstructure:"sync" validate:"omitempty,peer_sync"`

	// WriteDelay is the pause used in "delay" mode. Defaults to "300ms".
	WriteDelay string `yaml:"write_delay" mapstructure:"write_delay" validate:"omitempty,duration"`

	// MaxFrameBytes bounds one inbound frame body. Defaults to 64 MiB.
	MaxFrameBytes int `yaml:"max_frame_bytes" mapstructure:"max_frame_bytes" validate:"gte=0"`
}

// ProtocolConfig names the messages sent to the engine.
type ProtocolConfig struct {
	LanguageID    string `yaml:"language_id" mapstructure:"language_id"`
	AnalyzeMethod string `yaml:"analyze_method" mapstructure:"analyze_method"`
	CursorMethod  string `yaml:"cursor_method" mapstructure:"cursor_method"`
}

// WorkspaceConfig configures document files.
type WorkspaceConfig struct {
	// Dir holds the per-transaction documents. Empty means the working
	// directory, which is where the engine looks for a crate.
	Dir string `yaml:"dir" mapstructure:"dir"`

	// Extension is appended to each document name. Defaults to ".rs".
	Extension string `yaml:"extension" mapstructure:"extension"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	// Enabled turns on caching of successful results. Default: false.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// MaxEntries bounds the cache. Defaults to 256.
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries" validate:"gte=0"`
}

// RateLimitConfig configures rate limiting.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active.
	// Defaults to true when not set.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// IPRate is the maximum analyze requests per minute per IP address.
	// Defaults to 60.
	IPRate int `yaml:"ip_rate" mapstructure:"ip_rate" validate:"gte=0"`

	// CleanupInterval is how often expired limiter entries are removed.
	// Defaults to "5m" if not specified.
	CleanupInterval string `yaml:"cleanup_interval" mapstructure:"cleanup_interval" validate:"omitempty,duration"`

	// MaxTTL is how long an idle key is kept.
	// Defaults to "1h" if not specified.
	MaxTTL string `yaml:"max_ttl" mapstructure:"max_ttl" validate:"omitempty,duration"`
}

// AuthConfig configures API key authentication.
type AuthConfig struct {
	APIKeys []APIKeyConfig `yaml:"api_keys" mapstructure:"api_keys" validate:"omitempty,dive"`
}

// APIKeyConfig is one accepted API key. Only the hash is stored; generate it
// with "owlbridge hash-key".
type APIKeyConfig struct {
	Name    string `yaml:"name" mapstructure:"name" validate:"required"`
	KeyHash string `yaml:"key_hash" mapstructure:"key_hash" validate:"required"`
}

// TracingConfig configures span export to stdout.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	Pretty  bool `yaml:"pretty" mapstructure:"pretty"`
}

// SetDevDefaults applies permissive defaults for development mode.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	c.Server.LogLevel = "debug"
	c.Tracing.Pretty = true
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = DefaultLogLevel
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Server.MaxSourceBytes == 0 {
		c.Server.MaxSourceBytes = DefaultMaxSourceBytes
	}
	if c.Server.MaxConcurrent == 0 {
		c.Server.MaxConcurrent = DefaultMaxConcurrent
	}

	if c.Peer.Command == "" {
		c.Peer.Command = DefaultPeerCommand
	}
	if c.Peer.Timeout == "" {
		c.Peer.Timeout = DefaultPeerTimeout
	}
	if c.Peer.Sync == "" {
		c.Peer.Sync = DefaultPeerSync
	}
	if c.Peer.WriteDelay == "" {
		c.Peer.WriteDelay = DefaultWriteDelay
	}
	if c.Peer.MaxFrameBytes == 0 {
		c.Peer.MaxFrameBytes = DefaultMaxFrameBytes
	}

	if c.Protocol.LanguageID == "" {
		c.Protocol.LanguageID = DefaultLanguageID
	}
	if c.Protocol.AnalyzeMethod == "" {
		c.Protocol.AnalyzeMethod = DefaultAnalyzeMethod
	}
	if c.Protocol.CursorMethod == "" {
		c.Protocol.CursorMethod = DefaultCursorMethod
	}

	if c.Workspace.Extension == "" {
		c.Workspace.Extension = DefaultExtension
	}

	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = DefaultCacheEntries
	}

	// viper.IsSet distinguishes "not set" (zero value) from "explicitly false".
	if !viper.IsSet("rate_limit.enabled") {
		c.RateLimit.Enabled = true
	}
	if c.RateLimit.IPRate == 0 {
		c.RateLimit.IPRate = DefaultIPRate
	}
	if c.RateLimit.CleanupInterval == "" {
		c.RateLimit.CleanupInterval = DefaultCleanupInterval
	}
	if c.RateLimit.MaxTTL == "" {
		c.RateLimit.MaxTTL = DefaultMaxTTL
	}
}

// PeerTimeout returns Peer.Timeout as a duration, or zero if unparseable.
func (c *Config) PeerTimeout() time.Duration {
	return parseDuration(c.Peer.Timeout)
}

// WriteDelay returns Peer.WriteDelay as a duration, or zero if unparseable.
func (c *Config) WriteDelay() time.Duration {
	return parseDuration(c.Peer.WriteDelay)
}

// CleanupInterval returns RateLimit.CleanupInterval as a duration.
func (c *Config) CleanupInterval() time.Duration {
	return parseDuration(c.RateLimit.CleanupInterval)
}

// MaxTTL returns RateLimit.MaxTTL as a duration.
func (c *Config) MaxTTL() time.Duration {
	return parseDuration(c.RateLimit.MaxTTL)
}

// Validate has already rejected unparseable values by the time these run.
func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
