package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Anthropic  AnthropicConfig
	Enrichment EnrichmentConfig
	Cache      CacheConfig
	Session    SessionConfig
	Storage    StorageConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port int
}

type AnthropicConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	MaxTokens      int
	ImageMaxTokens int
	Timeout        time.Duration
}

type EnrichmentConfig struct {
	Enabled     bool
	Concurrency int
}

type CacheConfig struct {
	ImageTTL time.Duration
}

type SessionConfig struct {
	IdleTimeout time.Duration
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Anthropic: AnthropicConfig{
			BaseURL:        "https://api.anthropic.com",
			Model:          "claude-sonnet-4-20250514",
			MaxTokens:      4000,
			ImageMaxTokens: 1000,
			Timeout:        120 * time.Second,
		},
		Enrichment: EnrichmentConfig{
			Enabled:     true,
			Concurrency: 1,
		},
		Cache: CacheConfig{
			ImageTTL: 24 * time.Hour,
		},
		Session: SessionConfig{
			IdleTimeout: 2 * time.Hour,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ErrMissingAPIKey is returned by Validate when no Anthropic API key is configured.
var ErrMissingAPIKey = errors.New("missing required config: Anthropic API key")

// Load reads configuration from the platform-native backend, a .env file in
// the working directory, environment variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.kalambet.shopper) and
// secrets fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/shopper/config.json
// and secrets fall back to $XDG_DATA_HOME/shopper/secrets.json.
//
// Environment variables (SHOPPER_*) override backend values on all platforms.
// Values already present in the environment win over the .env file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not read .env file", "error", err)
	}
	return loadWith(newPlatformBackend(), keychainReader{})
}

// Secret store coordinates of the API key.
const (
	secretService = "shopper"
	apiKeyAccount = "anthropic_api_key"
)

// errSecretNotFound means the secret store has no entry for the key.
var errSecretNotFound = errors.New("secret not found")

// keychain abstracts secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Anthropic.APIKey == "" {
		key, err := kc.Get(secretService, apiKeyAccount)
		switch {
		case err == nil && key != "":
			cfg.Anthropic.APIKey = key
		case err != nil && !errors.Is(err, errSecretNotFound):
			slog.Warn("could not read API key from secret store", "error", err)
		}
	}

	if cfg.Enrichment.Concurrency < 1 {
		cfg.Enrichment.Concurrency = 1
	}

	return cfg, nil
}

// Validate reports configuration the server cannot run without.
func (c Config) Validate() error {
	if c.Anthropic.APIKey == "" {
		return fmt.Errorf("%w. Set it via environment variable SHOPPER_ANTHROPIC_API_KEY%s", ErrMissingAPIKey, apiKeyHint())
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}

// SlogLevel maps log.level to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
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

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
