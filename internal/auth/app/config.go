package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deepslate-launcher/deepslate-core/internal/auth/domain"
)

type Config struct {
	StorePath    string `yaml:"store_path"`    // Path to the accounts document (default: <config dir>/accounts.json)
	LauncherMode string `yaml:"launcher_mode"` // Launcher token mode (production, experimental) (default: production)

	LogLevel  string `yaml:"log_level"`  // Log level (debug, info, warn, error) (default: info)
	LogFormat string `yaml:"log_format"` // Log format (json, text) (default: text)

	// Endpoint overrides. Empty values fall back to the production
	// endpoints baked into each client.
	DeviceAuthURL       string `yaml:"device_auth_url"`
	SisuAuthenticateURL string `yaml:"sisu_authenticate_url"`
	SisuAuthorizeURL    string `yaml:"sisu_authorize_url"`
	XstsAuthorizeURL    string `yaml:"xsts_authorize_url"`
	OAuthTokenURL       string `yaml:"oauth_token_url"`
	MinecraftBaseURL    string `yaml:"minecraft_base_url"`
	LauncherBaseURL     string `yaml:"launcher_base_url"`

	HTTPTimeout time.Duration `yaml:"-"` // Per-request timeout, environment only (default: 30s)
}

// DefaultConfig returns the configuration used when no file and no
// environment overrides are present.
func DefaultConfig() Config {
	return Config{
		StorePath:    filepath.Join(defaultConfigDir(), "accounts.json"),
		LauncherMode: string(domain.ModeProduction),
		LogLevel:     "info",
		LogFormat:    "text",
		HTTPTimeout:  30 * time.Second,
	}
}

// LoadConfig layers a YAML config file over the defaults and environment
// variables over the file. The file lives at DEEPSLATE_CONFIG, or
// <config dir>/config.yaml when unset; a missing file is not an error.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("DEEPSLATE_CONFIG")
	if path == "" {
		path = filepath.Join(defaultConfigDir(), "config.yaml")
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults plus environment.
	case err != nil:
		return Config{}, fmt.Errorf("app: failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("app: failed to parse config %s: %w", path, err)
		}
	}

	cfg.StorePath = getEnvOrDefault("DEEPSLATE_STORE_PATH", cfg.StorePath)
	cfg.LauncherMode = getEnvOrDefault("DEEPSLATE_MODE", cfg.LauncherMode)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.LauncherBaseURL = getEnvOrDefault("DEEPSLATE_API_URL", cfg.LauncherBaseURL)
	cfg.HTTPTimeout = getEnvDurationOrDefault("DEEPSLATE_HTTP_TIMEOUT", cfg.HTTPTimeout)

	return cfg, nil
}

func defaultConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, "deepslate")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
