//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

func secretsFilePath() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "shopper", "secrets.json")
}

// keychainExec reads a secret from a JSON file shaped {service: {account: value}}.
func keychainExec(service, account string) ([]byte, error) {
	path := secretsFilePath()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist", errSecretNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("secret store not available: %w", err)
	}
	var secrets map[string]map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	val, ok := secrets[service][account]
	if !ok {
		return nil, fmt.Errorf("%w: account %q in service %q", errSecretNotFound, account, service)
	}
	return []byte(val), nil
}
