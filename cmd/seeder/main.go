// Package main provides the herdbook system category seeder.
//
// The seeder installs the nine system animal categories and materializes
// zero stock balances for them on every active farm. It is idempotent:
// rerunning it repairs categories that drifted from their canonical
// definition, adopts existing categories whose names match (directly or
// through the alias configuration), creates only what is missing, and
// skips the rest.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/herdbook-io/herdbook/internal/aliasing"
	"github.com/herdbook-io/herdbook/internal/config"
	"github.com/herdbook-io/herdbook/internal/storage"
)

const (
	version     = "1.0.0-dev"
	name        = "seeder"
	seedTimeout = 30 * time.Second
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
	}))

	storageConfig := storage.LoadConfig()

	dbConn, err := storage.NewConnection(storageConfig)
	if err != nil {
		logger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		_ = dbConn.Close()
	}()

	options := []storage.InventoryStoreOption{}

	aliasConfig, err := aliasing.LoadConfigFromEnv()
	if err != nil {
		logger.Warn("Failed to load category alias configuration", slog.String("error", err.Error()))
	} else if aliasConfig != nil {
		resolver := aliasing.NewResolver(aliasConfig)
		if resolver.HasAliases() {
			logger.Info("Category alias configuration loaded")
		}

		options = append(options, storage.WithAliasResolver(resolver))
	}

	store, err := storage.NewInventoryStore(dbConn, options...)
	if err != nil {
		logger.Error("Failed to initialize inventory store", slog.String("error", err.Error()))

		_ = dbConn.Close()
		//nolint:gocritic // Explicit cleanup before os.Exit is intentional (defer won't run)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()

	report, err := store.SeedSystemCategories(ctx)
	if err != nil {
		logger.Error("Seeding failed", slog.String("error", err.Error()))

		_ = dbConn.Close()
		os.Exit(1)
	}

	logger.Info("System categories seeded",
		slog.String("database_url", storageConfig.MaskDatabaseURL()),
		slog.Int("created", report.Created),
		slog.Int("adopted", report.Adopted),
		slog.Int("updated", report.Updated),
		slog.Int("skipped", report.Skipped),
	)
}
