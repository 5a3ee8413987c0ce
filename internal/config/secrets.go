package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret reads a secret using the *_FILE convention: envName+"_FILE"
// names a file holding the value and wins over envName itself. Neither set
// yields "". An unreadable file is an error.
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	if path := os.Getenv(fileEnv); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, path, err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return os.Getenv(envName), nil
}

// ResolveSecrets resolves several secrets, stopping at the first error.
func ResolveSecrets(envNames ...string) (map[string]string, error) {
	out := make(map[string]string, len(envNames))
	for _, name := range envNames {
		v, err := ResolveSecret(name)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// PostgresPassword resolves SENTIENT_PG_PASSWORD, falling back to the libpq
// PGPASSWORD variable.
func PostgresPassword() (string, error) {
	v, err := ResolveSecret("SENTIENT_PG_PASSWORD")
	if err != nil || v != "" {
		return v, err
	}
	return os.Getenv("PGPASSWORD"), nil
}
