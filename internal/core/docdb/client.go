// Package docdb defines the document database connector interface.
package docdb

import (
	"context"
)

// Credentials identify the principal used to authenticate against the store.
type Credentials struct {
	Username string
	Password string
	// Source is the authentication database. Empty means the target database.
	Source string
}

// Connector is the transport-level connection to a document store. A single
// connector backs one orchestrator.
type Connector interface {
	// Open establishes the transport connection.
	Open(ctx context.Context) error

	// IsConnected reports whether the transport is currently open.
	IsConnected() bool

	// Collection resolves a collection handle by name. Open must have succeeded.
	Collection(name string) (Collection, error)

	// Authenticate verifies that the connection is authenticated as creds.
	Authenticate(ctx context.Context, creds Credentials) error

	// Ping verifies the transport connection.
	Ping(ctx context.Context) error

	// Close closes the transport connection.
	Close(ctx context.Context) error

	// Database returns the name of the target database.
	Database() string
}
