// Package config handles application configuration loading and management.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/unifiedui/docstore/internal/core/cache"
	"github.com/unifiedui/docstore/internal/core/docdb"
	"github.com/unifiedui/docstore/internal/core/metrics"
	"github.com/unifiedui/docstore/internal/core/vault"
	"github.com/unifiedui/docstore/internal/domain/models"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig
	Cache   CacheConfig
	DocDB   DocDBConfig
	Vault   VaultConfig
	Metrics MetricsConfig
	Log     LogConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host         string
	Port         int
	GinMode      string
	AllowOrigins []string
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CacheConfig holds cache-related configuration.
type CacheConfig struct {
	Type      string
	Host      string
	Port      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

// DocDBConfig holds document database configuration.
type DocDBConfig struct {
	Type       string
	URI        string
	Hosts      []string
	ReplicaSet string
	Database   string
	Collection string
	Username   string
	// Password may be a vault reference such as "dotenv://DOCDB_SECRET".
	Password   string
	AuthSource string
	AppName    string
	Indices    []models.IndexSpec

	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
}

// Credentials returns the configured credentials, or nil when no username
// is set. The password is returned as configured.
func (c DocDBConfig) Credentials() *docdb.Credentials {
	if c.Username == "" {
		return nil
	}
	return &docdb.Credentials{
		Username: c.Username,
		Password: c.Password,
		Source:   c.AuthSource,
	}
}

// VaultConfig holds vault configuration.
type VaultConfig struct {
	Type        string
	SecretsFile string
	// EncryptionKey seals cached documents. Empty stores them in plain form.
	EncryptionKey string
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Type      string
	Namespace string
	Path      string
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	indices, err := ParseIndices(getEnv("DOCDB_INDICES", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid DOCDB_INDICES: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			GinMode:      getEnv("GIN_MODE", "release"),
			AllowOrigins: getEnvAsList("CORS_ALLOW_ORIGINS"),
		},
		Cache: CacheConfig{
			Type:      getEnv("CACHE_TYPE", string(cache.TypeNone)),
			Host:      getEnv("REDIS_HOST", "localhost"),
			Port:      getEnv("REDIS_PORT", "6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			TTL:       time.Duration(getEnvAsInt("CACHE_TTL_SECONDS", 180)) * time.Second,
			KeyPrefix: getEnv("CACHE_KEY_PREFIX", "docstore:"),
		},
		DocDB: DocDBConfig{
			Type:                   getEnv("DOCDB_TYPE", string(docdb.TypeMongoDB)),
			URI:                    getEnv("DOCDB_URI", ""),
			Hosts:                  getEnvAsList("DOCDB_HOSTS"),
			ReplicaSet:             getEnv("DOCDB_REPLICA_SET", ""),
			Database:               getEnv("DOCDB_DATABASE", "test"),
			Collection:             getEnv("DOCDB_COLLECTION", "documents"),
			Username:               getEnv("DOCDB_USERNAME", ""),
			Password:               getEnv("DOCDB_PASSWORD", ""),
			AuthSource:             getEnv("DOCDB_AUTH_SOURCE", ""),
			AppName:                getEnv("DOCDB_APP_NAME", "docstore"),
			Indices:                indices,
			ConnectTimeout:         time.Duration(getEnvAsInt("DOCDB_CONNECT_TIMEOUT_SECONDS", 30)) * time.Second,
			ServerSelectionTimeout: time.Duration(getEnvAsInt("DOCDB_SERVER_SELECTION_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Vault: VaultConfig{
			Type:          getEnv("VAULT_TYPE", string(vault.TypeDotEnv)),
			SecretsFile:   getEnv("VAULT_SECRETS_FILE", ""),
			EncryptionKey: getEnv("CACHE_ENCRYPTION_KEY", ""),
		},
		Metrics: MetricsConfig{
			Type:      getEnv("METRICS_TYPE", string(metrics.TypePrometheus)),
			Namespace: getEnv("METRICS_NAMESPACE", "docstore"),
			Path:      getEnv("METRICS_PATH", "/metrics"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch docdb.Type(c.DocDB.Type) {
	case docdb.TypeMongoDB, docdb.TypeCosmosDB:
	default:
		return fmt.Errorf("unsupported docdb type: %s", c.DocDB.Type)
	}
	switch cache.Type(c.Cache.Type) {
	case cache.TypeRedis, cache.TypeNone:
	default:
		return fmt.Errorf("unsupported cache type: %s", c.Cache.Type)
	}
	switch metrics.Type(c.Metrics.Type) {
	case metrics.TypePrometheus, metrics.TypeNoOp:
	default:
		return fmt.Errorf("unsupported metrics type: %s", c.Metrics.Type)
	}
	if vault.Type(c.Vault.Type) != vault.TypeDotEnv {
		return fmt.Errorf("unsupported vault type: %s", c.Vault.Type)
	}
	if c.DocDB.Collection == "" {
		return fmt.Errorf("DOCDB_COLLECTION is required")
	}
	if c.DocDB.Password != "" && c.DocDB.Username == "" {
		return fmt.Errorf("DOCDB_PASSWORD requires DOCDB_USERNAME")
	}
	return nil
}

// ParseIndices parses an index list such as "email:unique;-created;last+first".
// Entries are separated by ';'. Keys within an entry are joined by '+', and a
// leading '-' sorts that key descending. Options follow a ':' as a comma
// separated list of "unique" and "name=<index name>".
func ParseIndices(s string) ([]models.IndexSpec, error) {
	var specs []models.IndexSpec
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		keyPart, optPart, _ := strings.Cut(entry, ":")
		var spec models.IndexSpec
		for _, key := range strings.Split(keyPart, "+") {
			key = strings.TrimSpace(key)
			order := models.SortAsc
			if strings.HasPrefix(key, "-") {
				order = models.SortDesc
				key = key[1:]
			}
			if key == "" {
				return nil, fmt.Errorf("index %q has an empty key", entry)
			}
			spec.Keys = append(spec.Keys, models.SortField{Field: key, Order: order})
		}

		for _, opt := range strings.Split(optPart, ",") {
			opt = strings.TrimSpace(opt)
			switch {
			case opt == "":
			case opt == "unique":
				spec.Unique = true
			case strings.HasPrefix(opt, "name="):
				spec.Name = strings.TrimPrefix(opt, "name=")
			default:
				return nil, fmt.Errorf("index %q has unknown option %q", entry, opt)
			}
		}

		specs = append(specs, spec)
	}
	return specs, nil
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated environment variable.
func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
