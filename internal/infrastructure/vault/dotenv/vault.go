// Package dotenv provides a dotenv-based vault for development.
package dotenv

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Scheme prefixes every secret URI served by this vault.
const Scheme = "dotenv://"

// Vault reads secrets from the process environment first and then from
// optional dotenv files, which are never exported into the environment.
type Vault struct {
	secrets map[string]string
}

// NewVault creates a vault backed by the given dotenv files. Missing files
// are an error; pass none to use the environment only.
func NewVault(files ...string) (*Vault, error) {
	secrets := map[string]string{}
	if len(files) > 0 {
		read, err := godotenv.Read(files...)
		if err != nil {
			return nil, fmt.Errorf("failed to read secrets file: %w", err)
		}
		secrets = read
	}
	return &Vault{secrets: secrets}, nil
}

// GetSecret returns the secret named by uri.
func (v *Vault) GetSecret(ctx context.Context, uri string) (string, error) {
	key := strings.TrimPrefix(uri, Scheme)
	if key == "" {
		return "", fmt.Errorf("secret key is empty")
	}

	if value := os.Getenv(key); value != "" {
		return value, nil
	}
	if value, ok := v.secrets[key]; ok && value != "" {
		return value, nil
	}

	return "", fmt.Errorf("secret not found: %s", key)
}

// Ping always succeeds.
func (v *Vault) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (v *Vault) Close() error {
	return nil
}
