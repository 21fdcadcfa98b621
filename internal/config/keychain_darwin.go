//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os/exec"
)

// securityItemNotFound is the exit status of `security find-generic-password`
// when no matching item exists.
const securityItemNotFound = 44

func keychainExec(service, account string) ([]byte, error) {
	out, err := exec.Command(
		"security", "find-generic-password",
		"-s", service,
		"-a", account,
		"-w",
	).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == securityItemNotFound {
			return nil, fmt.Errorf("%w: keychain item %s/%s", errSecretNotFound, service, account)
		}
		return nil, fmt.Errorf("reading keychain item %s/%s: %w", service, account, err)
	}
	return out, nil
}
