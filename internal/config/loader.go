package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

const (
	configName = "owlbridge"
	envPrefix  = "OWLBRIDGE"
)

// InitViper initializes Viper with the configuration file and environment variables.
// If configFile is empty, it searches for owlbridge.yaml/.yml in standard locations.
// The search requires an explicit YAML extension to avoid matching the binary itself,
// which Viper's built-in SetConfigName would match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// Without search paths ReadInConfig returns ConfigFileNotFoundError,
		// which LoadConfig treats as "env vars only".
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}

	// Environment variable support: OWLBRIDGE_SERVER_HTTP_ADDR
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches ".", "$HOME/.owlbridge" and the system config
// directory for owlbridge.yaml or owlbridge.yml.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".owlbridge"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "owlbridge"))
		}
	} else {
		paths = append(paths, "/etc/owlbridge")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for owlbridge.yaml or .yml.
// Returns the full path of the first match, or empty string if none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, configName+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds every scalar key so it can be overridden from the
// environment. Example: OWLBRIDGE_PEER_TIMEOUT overrides peer.timeout.
// peer.args and auth.api_keys are lists and belong in the config file.
func bindNestedEnvKeys() {
	for _, key := range []string{
		"server.http_addr",
		"server.log_level",
		"server.max_body_bytes",
		"server.max_source_bytes",
		"server.max_concurrent",

		"peer.command",
		"peer.timeout",
		"peer.sync",
		"peer.write_delay",
		"peer.max_frame_bytes",

		"protocol.language_id",
		"protocol.analyze_method",
		"protocol.cursor_method",

		"workspace.dir",
		"workspace.extension",

		"cache.enabled",
		"cache.max_entries",

		"rate_limit.enabled",
		"rate_limit.ip_rate",
		"rate_limit.cleanup_interval",
		"rate_limit.max_ttl",

		"tracing.enabled",
		"tracing.pretty",

		"dev_mode",
	} {
		_ = viper.BindEnv(key)
	}
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and returns the Config.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}

	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults,
// but does NOT apply dev defaults or validate.
// Use this when CLI flags may override fields before validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
