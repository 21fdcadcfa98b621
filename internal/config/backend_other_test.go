//go:build !darwin

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shopper", "config.json")

	b := newFileBackend(path)
	if err := b.SetInt("server.port", 4300); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if err := b.SetString("anthropic.model", "claude-x"); err != nil {
		t.Fatalf("SetString: %v", err)
	}

	reloaded := newFileBackend(path)
	port, ok, err := reloaded.GetInt("server.port")
	if err != nil || !ok || port != 4300 {
		t.Errorf("GetInt = %d, %v, %v", port, ok, err)
	}
	model, ok, _ := reloaded.GetString("anthropic.model")
	if !ok || model != "claude-x" {
		t.Errorf("GetString = %q, %v", model, ok)
	}

	if err := reloaded.Delete("anthropic.model"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := newFileBackend(path).GetString("anthropic.model"); ok {
		t.Error("key still present after Delete")
	}
}

func TestSecretsFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	if _, err := keychainExec(secretService, apiKeyAccount); !errors.Is(err, errSecretNotFound) {
		t.Errorf("missing secrets file: err = %v, want errSecretNotFound", err)
	}

	os.MkdirAll(filepath.Join(dir, "shopper"), 0o700)
	content := `{"shopper": {"anthropic_api_key": "sk-file\n"}}`
	if err := os.WriteFile(filepath.Join(dir, "shopper", "secrets.json"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := keychainReader{}.Get("shopper", "anthropic_api_key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "sk-file" {
		t.Errorf("Get = %q, want sk-file", got)
	}
}

func TestSecretsFileMissingAccount(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)
	os.MkdirAll(filepath.Join(dir, "shopper"), 0o700)
	os.WriteFile(filepath.Join(dir, "shopper", "secrets.json"), []byte(`{"shopper": {}}`), 0o600)

	if _, err := keychainExec(secretService, apiKeyAccount); !errors.Is(err, errSecretNotFound) {
		t.Errorf("err = %v, want errSecretNotFound", err)
	}

	os.WriteFile(filepath.Join(dir, "shopper", "secrets.json"), []byte(`not json`), 0o600)
	if _, err := keychainExec(secretService, apiKeyAccount); err == nil || errors.Is(err, errSecretNotFound) {
		t.Errorf("corrupt secrets file: err = %v, want a parse error", err)
	}
}

func TestFileBackendSaveLeavesNoTempFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shopper")
	b := newFileBackend(filepath.Join(dir, "config.json"))

	for i := range 3 {
		if err := b.SetInt("enrichment.concurrency", i+1); err != nil {
			t.Fatalf("SetInt: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "config.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("config dir holds %v, want only config.json", names)
	}
}
