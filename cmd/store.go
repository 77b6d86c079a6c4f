package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/bookshelf/internal/config"
	"github.com/jon4hz/bookshelf/internal/database"
	"github.com/jon4hz/bookshelf/internal/database/mongo"
)

// openStore connects to the configured credential store and runs its migrations.
func openStore(ctx context.Context, cfg *config.DatabaseConfig) (database.DB, error) {
	switch cfg.Driver {
	case config.DatabaseDriverMongo:
		log.Info("connecting to mongo", "database", cfg.Name)
		db, err := mongo.New(ctx, cfg.URL, cfg.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		return db, nil
	case config.DatabaseDriverSQLite, "":
		log.Info("opening sqlite database", "path", cfg.URL)
		db, err := database.New(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}
