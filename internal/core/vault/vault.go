// Package vault defines secret lookup for configuration values.
package vault

import (
	"context"
	"fmt"
	"strings"
)

// Vault resolves secret references.
type Vault interface {
	// GetSecret retrieves a secret by URI, e.g. "dotenv://DOCDB_PASSWORD".
	GetSecret(ctx context.Context, uri string) (string, error)

	// Ping checks if the vault is reachable.
	Ping(ctx context.Context) error

	// Close releases vault resources.
	Close() error
}

// IsReference reports whether value is a secret URI of the given type.
func IsReference(t Type, value string) bool {
	return strings.HasPrefix(value, string(t)+"://")
}

// Resolve returns value unchanged unless it is a reference of type t, in
// which case the secret is fetched from v.
func Resolve(ctx context.Context, v Vault, t Type, value string) (string, error) {
	if !IsReference(t, value) {
		return value, nil
	}
	if v == nil {
		return "", fmt.Errorf("secret %s requires a %s vault", value, t)
	}
	secret, err := v.GetSecret(ctx, value)
	if err != nil {
		return "", fmt.Errorf("failed to resolve secret %s: %w", value, err)
	}
	return secret, nil
}
