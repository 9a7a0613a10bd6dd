// Package main is the entry point for the docstore service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/unifiedui/docstore/internal/api/handlers"
	"github.com/unifiedui/docstore/internal/api/middleware"
	"github.com/unifiedui/docstore/internal/api/routes"
	"github.com/unifiedui/docstore/internal/config"
	"github.com/unifiedui/docstore/internal/core/cache"
	"github.com/unifiedui/docstore/internal/core/docdb"
	"github.com/unifiedui/docstore/internal/core/metrics"
	"github.com/unifiedui/docstore/internal/core/vault"
	rediscache "github.com/unifiedui/docstore/internal/infrastructure/cache/redis"
	"github.com/unifiedui/docstore/internal/infrastructure/docdb/mongodb"
	promsink "github.com/unifiedui/docstore/internal/infrastructure/metrics/prometheus"
	dotenvvault "github.com/unifiedui/docstore/internal/infrastructure/vault/dotenv"
	"github.com/unifiedui/docstore/internal/pkg/encryption"
	"github.com/unifiedui/docstore/internal/services/connection"
	"github.com/unifiedui/docstore/internal/services/documents"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	setupLogger(cfg.Log)
	ctx := context.Background()

	secrets, err := createVault(cfg.Vault)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize vault")
	}
	defer secrets.Close()

	registry := prometheus.NewRegistry()
	sink, err := createMetricsSink(cfg.Metrics, registry)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}
	scoped := sink.Scope(documents.MetricsScope(cfg.DocDB.Database, cfg.DocDB.Collection))

	creds, err := resolveCredentials(ctx, cfg.DocDB, secrets)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve document db credentials")
	}

	connector, err := createConnector(cfg.DocDB, creds)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize document db client")
	}

	orchestrator, err := connection.NewOrchestrator(&connection.Config{
		Connector:      connector,
		CollectionName: cfg.DocDB.Collection,
		Credentials:    creds,
		Indices:        cfg.DocDB.Indices,
		Logger:         &log.Logger,
		Metrics:        scoped,
		ConnectTimeout: cfg.DocDB.ConnectTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize connection orchestrator")
	}

	service, err := documents.NewService(&documents.Config{
		Connection: orchestrator,
		Translator: mongodb.NewErrorTranslator(),
		Metrics:    scoped,
		Logger:     &log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize document service")
	}

	docCache, err := createCache(ctx, cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize cache")
	}
	if docCache != nil {
		defer docCache.Close()

		sealer, err := createSealer(ctx, cfg.Vault, secrets)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize cache encryption")
		}
		service, err = documents.NewCachedService(service, &documents.CacheConfig{
			Cache:     docCache,
			Sealer:    sealer,
			TTL:       cfg.Cache.TTL,
			Namespace: cfg.DocDB.Database + "." + cfg.DocDB.Collection,
			Logger:    &log.Logger,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize document cache")
		}
	}

	gin.SetMode(cfg.Server.GinMode)
	router := setupRouter(cfg, service, orchestrator, docCache, secrets, registry)

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Address()).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := service.Disconnect(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to close document db connection")
	}

	log.Info().Msg("server exited")
}

// setupLogger configures the global zerolog logger.
func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", "docstore").Logger()
}

// createVault creates a vault based on the configuration.
func createVault(cfg config.VaultConfig) (vault.Vault, error) {
	switch vault.Type(cfg.Type) {
	case vault.TypeDotEnv:
		if cfg.SecretsFile != "" {
			return dotenvvault.NewVault(cfg.SecretsFile)
		}
		return dotenvvault.NewVault()
	default:
		return nil, errors.New("unsupported vault type: " + cfg.Type)
	}
}

// createMetricsSink creates the root metrics sink.
func createMetricsSink(cfg config.MetricsConfig, registry *prometheus.Registry) (metrics.Sink, error) {
	switch metrics.Type(cfg.Type) {
	case metrics.TypePrometheus:
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return promsink.NewSink(registry, promsink.Config{Namespace: cfg.Namespace})
	default:
		return metrics.NewNoOp(), nil
	}
}

// resolveCredentials builds the store credentials, fetching the password
// from the vault when it is a reference.
func resolveCredentials(ctx context.Context, cfg config.DocDBConfig, secrets vault.Vault) (*docdb.Credentials, error) {
	creds := cfg.Credentials()
	if creds == nil {
		return nil, nil
	}
	password, err := vault.Resolve(ctx, secrets, vault.TypeDotEnv, creds.Password)
	if err != nil {
		return nil, err
	}
	creds.Password = password
	return creds, nil
}

// createConnector creates a document database connector based on the configuration.
func createConnector(cfg config.DocDBConfig, creds *docdb.Credentials) (docdb.Connector, error) {
	switch docdb.Type(cfg.Type) {
	case docdb.TypeMongoDB, docdb.TypeCosmosDB:
		// Cosmos DB speaks the MongoDB wire protocol.
		return mongodb.NewClient(&mongodb.ClientConfig{
			URI:                    cfg.URI,
			Hosts:                  cfg.Hosts,
			ReplicaSet:             cfg.ReplicaSet,
			DatabaseName:           cfg.Database,
			Credentials:            creds,
			AppName:                cfg.AppName,
			ServerSelectionTimeout: cfg.ServerSelectionTimeout,
		})
	default:
		return nil, errors.New("unsupported docdb type: " + cfg.Type)
	}
}

// createCache creates the document cache, or nil when caching is disabled.
func createCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	switch cache.Type(cfg.Type) {
	case cache.TypeRedis:
		return rediscache.NewCache(ctx, rediscache.Config{
			Host:       cfg.Host,
			Port:       cfg.Port,
			Password:   cfg.Password,
			DB:         cfg.DB,
			DefaultTTL: cfg.TTL,
			KeyPrefix:  cfg.KeyPrefix,
		})
	default:
		return nil, nil
	}
}

// createSealer creates the cache value sealer. The key may be a vault reference.
func createSealer(ctx context.Context, cfg config.VaultConfig, secrets vault.Vault) (encryption.Sealer, error) {
	if cfg.EncryptionKey == "" {
		log.Warn().Msg("CACHE_ENCRYPTION_KEY not set, cached documents are stored unencrypted")
		return encryption.NewPlain(), nil
	}
	key, err := vault.Resolve(ctx, secrets, vault.TypeDotEnv, cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	return encryption.NewAESSealer(key)
}

// setupRouter creates and configures the Gin router.
func setupRouter(cfg *config.Config, service documents.Service, orchestrator *connection.Orchestrator, docCache cache.Cache, secrets vault.Vault, registry *prometheus.Registry) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true

	components := map[string]handlers.Pinger{
		"docdb": handlers.PingFunc(func(ctx context.Context) error {
			if err := service.Connect(ctx); err != nil {
				return err
			}
			return orchestrator.Ping(ctx)
		}),
		"vault": secrets,
	}
	if docCache != nil {
		components["cache"] = docCache
	}

	routes.SetupWithMiddleware(router, &routes.Config{
		HealthHandler:    handlers.NewHealthHandler(components),
		DocumentsHandler: handlers.NewDocumentsHandler(service),
	}, middleware.NewLoggingMiddleware(log.Logger), middleware.NewErrorMiddleware(), middleware.DefaultCORSConfig(cfg.Server.AllowOrigins...))

	if metrics.Type(cfg.Metrics.Type) == metrics.TypePrometheus {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	}

	return router
}
