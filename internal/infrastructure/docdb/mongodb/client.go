// Package mongodb provides MongoDB client implementation.
package mongodb

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/unifiedui/docstore/internal/core/docdb"
)

const (
	// DefaultHost is used when no hosts are configured.
	DefaultHost = "127.0.0.1:27017"
	// DefaultPort is appended to hosts that carry no port.
	DefaultPort = "27017"
	// DefaultDatabase is used when no database name is configured.
	DefaultDatabase = "test"
	// DefaultServerSelectionTimeout bounds how long Open waits for a server.
	DefaultServerSelectionTimeout = 10 * time.Second
)

// ClientConfig holds MongoDB connection configuration.
type ClientConfig struct {
	// URI, when set, is applied before the explicit fields below.
	URI string
	// Hosts lists host[:port] seeds. More than one host enables replica set mode.
	Hosts        []string
	ReplicaSet   string
	DatabaseName string
	Credentials  *docdb.Credentials
	AppName      string

	ServerSelectionTimeout time.Duration
}

// Client implements the docdb.Connector interface for MongoDB.
type Client struct {
	config *ClientConfig

	mu     sync.RWMutex
	client *mongo.Client
}

// NewClient creates a new, not yet connected, MongoDB client.
func NewClient(config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	cfg := *config
	if cfg.URI == "" && len(cfg.Hosts) == 0 {
		cfg.Hosts = []string{DefaultHost}
	}
	hosts := make([]string, 0, len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		host, err := normalizeHost(h)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, host)
	}
	cfg.Hosts = hosts

	if cfg.DatabaseName == "" {
		cfg.DatabaseName = DefaultDatabase
	}
	if cfg.ServerSelectionTimeout == 0 {
		cfg.ServerSelectionTimeout = DefaultServerSelectionTimeout
	}
	if cfg.Credentials != nil && cfg.Credentials.Username == "" {
		return nil, fmt.Errorf("credentials require a username")
	}

	return &Client{config: &cfg}, nil
}

// normalizeHost appends the default port to hosts that carry none.
func normalizeHost(host string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", fmt.Errorf("mongodb host cannot be empty")
	}
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host, nil
	}
	return net.JoinHostPort(strings.Trim(host, "[]"), DefaultPort), nil
}

// ClientOptions builds the driver options for this configuration.
func (c *Client) ClientOptions() *options.ClientOptions {
	opts := options.Client()
	if c.config.URI != "" {
		opts.ApplyURI(c.config.URI)
	}
	if len(c.config.Hosts) > 0 {
		opts.SetHosts(c.config.Hosts)
	}
	if c.config.ReplicaSet != "" {
		opts.SetReplicaSet(c.config.ReplicaSet)
	}
	if c.config.AppName != "" {
		opts.SetAppName(c.config.AppName)
	}
	if creds := c.config.Credentials; creds != nil {
		opts.SetAuth(options.Credential{
			Username:   creds.Username,
			Password:   creds.Password,
			AuthSource: c.authSource(*creds),
		})
	}
	opts.SetServerSelectionTimeout(c.config.ServerSelectionTimeout)
	return opts
}

func (c *Client) authSource(creds docdb.Credentials) string {
	if creds.Source != "" {
		return creds.Source
	}
	return c.config.DatabaseName
}

// Open connects to MongoDB and verifies the connection with a ping. A client
// left from an earlier Open is disconnected first.
func (c *Client) Open(ctx context.Context) error {
	if err := c.Close(ctx); err != nil {
		return err
	}

	client, err := mongo.Connect(ctx, c.ClientOptions())
	if err != nil {
		return fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Verify connection
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("failed to ping mongodb: %w", err)
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	return nil
}

// IsConnected reports whether Open succeeded and Close has not been called.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client != nil
}

// Collection returns a handle to the named collection in the target database.
func (c *Client) Collection(name string) (docdb.Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil {
		return nil, fmt.Errorf("mongodb client is not connected")
	}
	return NewCollection(c.client.Database(c.config.DatabaseName).Collection(name)), nil
}

// Authenticate verifies that the connection is authenticated as creds. The
// driver performs the authentication handshake when the connection opens,
// so this checks the server's view of the session.
func (c *Client) Authenticate(ctx context.Context, creds docdb.Credentials) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return fmt.Errorf("mongodb client is not connected")
	}
	return VerifyAuthenticated(ctx, client.Database(c.authSource(creds)), creds.Username)
}

// connectionStatus is the subset of the connectionStatus command reply we read.
type connectionStatus struct {
	AuthInfo struct {
		AuthenticatedUsers []struct {
			User string `bson:"user"`
			DB   string `bson:"db"`
		} `bson:"authenticatedUsers"`
	} `bson:"authInfo"`
}

// VerifyAuthenticated runs connectionStatus against db and checks that
// username is among the authenticated users of the session.
func VerifyAuthenticated(ctx context.Context, db *mongo.Database, username string) error {
	var status connectionStatus
	if err := db.RunCommand(ctx, bson.D{{Key: "connectionStatus", Value: 1}}).Decode(&status); err != nil {
		return fmt.Errorf("failed to read connection status: %w", err)
	}
	for _, u := range status.AuthInfo.AuthenticatedUsers {
		if u.User == username && u.DB == db.Name() {
			return nil
		}
	}
	return fmt.Errorf("mongodb session is not authenticated as %s@%s", username, db.Name())
}

// Ping verifies the connection to MongoDB.
func (c *Client) Ping(ctx context.Context) error {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return fmt.Errorf("mongodb client is not connected")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongodb ping failed: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection. Closing a closed client is a no-op.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()
	if client == nil {
		return nil
	}
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from mongodb: %w", err)
	}
	return nil
}

// Database returns the target database name.
func (c *Client) Database() string {
	return c.config.DatabaseName
}
