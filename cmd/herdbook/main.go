// Package main provides the herdbook livestock inventory service.
//
// The service keeps an append-only ledger of animal movements per farm and
// category, maintains snapshot stock balances, and serves reports computed
// from the ledger.
package main

import (
	"flag"
	"io"
	"log"
	"log/slog"
	"os"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/herdbook-io/herdbook/internal/aliasing"
	"github.com/herdbook-io/herdbook/internal/api"
	"github.com/herdbook-io/herdbook/internal/api/middleware"
	"github.com/herdbook-io/herdbook/internal/config"
	"github.com/herdbook-io/herdbook/internal/feed"
	"github.com/herdbook-io/herdbook/internal/storage"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "herdbook"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	serverConfig := api.LoadServerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: serverConfig.LogLevel,
	}))

	logger.Info("Starting herdbook service",
		slog.String("service", name),
		slog.String("version", version),
	)

	logger.Info("Loaded server configuration",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.Duration("read_timeout", serverConfig.ReadTimeout),
		slog.Duration("write_timeout", serverConfig.WriteTimeout),
		slog.Duration("shutdown_timeout", serverConfig.ShutdownTimeout),
		slog.String("log_level", serverConfig.LogLevel.String()),
	)

	// Load rate limiter configuration
	middlewareConfig := middleware.LoadConfig()

	// Create rate limiter instance (graceful shutdown handled by server.shutdown())
	rateLimiter := middleware.NewInMemoryRateLimiter(middlewareConfig)

	logger.Info("Rate limiter initialized",
		slog.Int("global_rps", middlewareConfig.GlobalRPS),
		slog.Int("key_rps", middlewareConfig.KeyRPS),
		slog.Int("unauth_rps", middlewareConfig.UnAuthRPS),
	)

	// Load storage configuration
	storageConfig := storage.LoadConfig()

	dbConn, err := storage.NewConnection(storageConfig)
	if err != nil {
		logger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		_ = dbConn.Close() // Ensure connection closes on normal shutdown
	}()

	var apiKeyStore storage.APIKeyStore

	authEnabled := config.GetEnvBool("HERDBOOK_AUTH_ENABLED", false)
	if authEnabled {
		apiKeyStore, err = storage.NewPersistentKeyStore(dbConn)
		if err != nil {
			logger.Error("Failed to connect to persistent key store", slog.String("error", err.Error()))

			_ = dbConn.Close()
			//nolint:gocritic // Explicit cleanup before os.Exit is intentional (defer won't run)
			os.Exit(1)
		}

		logger.Info("API key authentication enabled",
			slog.String("database_url", storageConfig.MaskDatabaseURL()),
		)
	} else {
		logger.Warn("API key authentication disabled",
			slog.String("security", "Only use in trusted networks (localhost, VPN, internal)"),
			slog.String("note", "Set HERDBOOK_AUTH_ENABLED=true to enable API key authentication"),
		)
	}

	storeOptions, feedCloser := buildStoreOptions(logger)
	if feedCloser != nil {
		defer func() {
			_ = feedCloser.Close() // Flush pending feed messages on shutdown
		}()
	}

	inventoryStore, err := storage.NewInventoryStore(dbConn, storeOptions...)
	if err != nil {
		logger.Error("Failed to connect to inventory store", slog.String("error", err.Error()))
		// Close database connection before exit (defer won't run with os.Exit)
		_ = dbConn.Close()
		// Fail-fast: the inventory store is required.
		os.Exit(1)
	}

	logger.Info("Inventory store initialized",
		slog.String("database_url", storageConfig.MaskDatabaseURL()),
	)

	stores := &api.Stores{
		Recorder:    inventoryStore,
		Transferrer: inventoryStore,
		Reporter:    inventoryStore,
		Registry:    inventoryStore,
		References:  inventoryStore,
	}

	server := api.NewServer(serverConfig, stores, apiKeyStore, rateLimiter)

	if err := server.Start(); err != nil {
		logger.Error("Server failed to start",
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger.Info("herdbook service stopped")
}

// buildStoreOptions assembles the optional inventory store wiring: the
// category alias resolver and, when brokers are configured, the Kafka
// movement feed. The returned closer is non-nil when the feed is enabled.
func buildStoreOptions(logger *slog.Logger) ([]storage.InventoryStoreOption, io.Closer) {
	options := []storage.InventoryStoreOption{}

	aliasConfig, err := aliasingConfig(logger)
	if err == nil && aliasConfig != nil {
		options = append(options, storage.WithAliasResolver(aliasing.NewResolver(aliasConfig)))
	}

	feedConfig := feed.LoadConfig()
	if !feedConfig.Enabled() {
		logger.Info("Movement feed disabled - HERDBOOK_KAFKA_BROKERS not set")

		return options, nil
	}

	publisher, err := feed.NewPublisher(feedConfig)
	if err != nil {
		logger.Error("Failed to initialize movement feed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Movement feed enabled",
		slog.String("topic", feedConfig.Topic),
		slog.Any("brokers", feedConfig.Brokers),
	)

	options = append(options, storage.WithCommitHook(publisher.CommitHook()))

	return options, publisher
}

// aliasingConfig loads the optional category alias configuration. Missing
// files degrade to no aliases.
func aliasingConfig(logger *slog.Logger) (*aliasing.Config, error) {
	cfg, err := aliasing.LoadConfigFromEnv()
	if err != nil {
		logger.Warn("Failed to load category alias configuration", slog.String("error", err.Error()))

		return nil, err
	}

	return cfg, nil
}
