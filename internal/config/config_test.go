package config

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"
)

// mockKeychain is a test double for the keychain interface.
type mockKeychain struct {
	value string
	err   error
}

func (m mockKeychain) Get(service, account string) (string, error) {
	return m.value, m.err
}

// mapBackend is an in-memory ConfigBackend.
type mapBackend map[string]string

func (m mapBackend) GetString(key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := m[key]
	if !ok {
		return 0, false, nil
	}
	i, err := strconv.Atoi(v)
	return i, true, err
}

func (m mapBackend) SetString(key, val string) error { m[key] = val; return nil }
func (m mapBackend) SetInt(key string, val int) error {
	m[key] = strconv.Itoa(val)
	return nil
}
func (m mapBackend) Delete(key string) error { delete(m, key); return nil }

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied when nothing is configured.
func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(mapBackend{}, mockKeychain{err: errors.New("none")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Anthropic.BaseURL != "https://api.anthropic.com" {
		t.Errorf("Anthropic.BaseURL = %q", cfg.Anthropic.BaseURL)
	}
	if cfg.Anthropic.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Anthropic.Model = %q", cfg.Anthropic.Model)
	}
	if cfg.Anthropic.MaxTokens != 4000 || cfg.Anthropic.ImageMaxTokens != 1000 {
		t.Errorf("token budgets = %d/%d, want 4000/1000", cfg.Anthropic.MaxTokens, cfg.Anthropic.ImageMaxTokens)
	}
	if cfg.Anthropic.Timeout != 120*time.Second {
		t.Errorf("Anthropic.Timeout = %v", cfg.Anthropic.Timeout)
	}
	if !cfg.Enrichment.Enabled || cfg.Enrichment.Concurrency != 1 {
		t.Errorf("Enrichment = %+v", cfg.Enrichment)
	}
	if cfg.Cache.ImageTTL != 24*time.Hour {
		t.Errorf("Cache.ImageTTL = %v", cfg.Cache.ImageTTL)
	}
	if cfg.Session.IdleTimeout != 2*time.Hour {
		t.Errorf("Session.IdleTimeout = %v", cfg.Session.IdleTimeout)
	}
	if cfg.Storage.DataDir == "" {
		t.Error("Storage.DataDir is empty")
	}
	if cfg.Anthropic.APIKey != "" {
		t.Errorf("APIKey = %q, want empty", cfg.Anthropic.APIKey)
	}
}

// TestBackendValues verifies backend values replace defaults.
func TestBackendValues(t *testing.T) {
	clearEnv(t)

	b := mapBackend{
		"server.port":            "5000",
		"anthropic.model":        "claude-test",
		"anthropic.timeout":      "30s",
		"enrichment.enabled":     "false",
		"enrichment.concurrency": "4",
		"anthropic.api_key":      "ignored-from-backend",
	}
	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Anthropic.Model != "claude-test" {
		t.Errorf("Anthropic.Model = %q", cfg.Anthropic.Model)
	}
	if cfg.Anthropic.Timeout != 30*time.Second {
		t.Errorf("Anthropic.Timeout = %v", cfg.Anthropic.Timeout)
	}
	if cfg.Enrichment.Enabled {
		t.Error("Enrichment.Enabled = true, want false")
	}
	if cfg.Enrichment.Concurrency != 4 {
		t.Errorf("Enrichment.Concurrency = %d", cfg.Enrichment.Concurrency)
	}
	if cfg.Anthropic.APIKey != "" {
		t.Error("secret must not be read from the backend")
	}
}

// TestEnvOverride verifies that environment variables override backend values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("SHOPPER_ANTHROPIC_API_KEY", "env-key")
	t.Setenv("SHOPPER_SERVER_PORT", "6000")
	t.Setenv("SHOPPER_SESSION_IDLE_TIMEOUT", "15m")

	cfg, err := loadWith(mapBackend{"server.port": "5000"}, mockKeychain{value: "keychain-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Anthropic.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", cfg.Anthropic.APIKey)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.Session.IdleTimeout != 15*time.Minute {
		t.Errorf("Session.IdleTimeout = %v", cfg.Session.IdleTimeout)
	}
}

// TestInvalidEnvKeepsDefault verifies unparseable values fall back to defaults.
func TestInvalidEnvKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("SHOPPER_SERVER_PORT", "not-a-number")
	t.Setenv("SHOPPER_CACHE_IMAGE_TTL", "forever")

	cfg, err := loadWith(mapBackend{}, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want default", cfg.Server.Port)
	}
	if cfg.Cache.ImageTTL != 24*time.Hour {
		t.Errorf("Cache.ImageTTL = %v, want default", cfg.Cache.ImageTTL)
	}
}

// TestKeychainFallback verifies the secret store is consulted when the env var is unset.
func TestKeychainFallback(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(mapBackend{}, mockKeychain{value: "keychain-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Anthropic.APIKey != "keychain-key" {
		t.Errorf("APIKey = %q, want keychain-key", cfg.Anthropic.APIKey)
	}
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	if err := cfg.Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Validate() = %v, want ErrMissingAPIKey", err)
	}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "SHOPPER_ANTHROPIC_API_KEY") {
		t.Errorf("error should name the env var: %v", err)
	}

	cfg.Anthropic.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() accepted port 0")
	}
}

func TestSetKey(t *testing.T) {
	b := mapBackend{}

	if err := setKeyIn(b, "server.port", "4200"); err != nil {
		t.Fatalf("setKeyIn: %v", err)
	}
	if b["server.port"] != "4200" {
		t.Errorf("stored port = %q", b["server.port"])
	}
	if err := setKeyIn(b, "cache.image_ttl", "1h"); err != nil {
		t.Fatalf("setKeyIn duration: %v", err)
	}
	if err := setKeyIn(b, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKeyIn(b, "enrichment.enabled", "maybe"); err == nil {
		t.Error("expected error for non-bool value")
	}
	if err := setKeyIn(b, "anthropic.api_key", "secret"); err == nil {
		t.Error("expected error setting a secret")
	}
	if err := setKeyIn(b, "nope", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestShowAllMasksSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Anthropic.APIKey = "sk-very-secret"

	for _, ki := range ShowAll(cfg) {
		if strings.Contains(ki.Value, "sk-very-secret") {
			t.Errorf("%s exposes the secret", ki.Key)
		}
		if ki.Key == "anthropic.api_key" && ki.Value != "(set)" {
			t.Errorf("api key shown as %q, want (set)", ki.Value)
		}
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := defaults()
	for in, want := range map[string]string{"debug": "DEBUG", "WARN": "WARN", "error": "ERROR", "": "INFO", "bogus": "INFO"} {
		cfg.Log.Level = in
		if got := cfg.SlogLevel().String(); got != want {
			t.Errorf("SlogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestLoadKeychainNotFoundLeavesKeyEmpty(t *testing.T) {
	t.Setenv("SHOPPER_ANTHROPIC_API_KEY", "")

	cfg, err := loadWith(mapBackend{}, mockKeychain{err: errSecretNotFound})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Anthropic.APIKey != "" {
		t.Errorf("APIKey = %q, want empty", cfg.Anthropic.APIKey)
	}
	if err := cfg.Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Validate = %v, want ErrMissingAPIKey", err)
	}
}
