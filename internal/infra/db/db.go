// Package db opens the configured listing store.
package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-listing-bot/internal/config"
	"telegram-listing-bot/internal/domain/ports/repository"
	"telegram-listing-bot/internal/infra/db/postgres"
	"telegram-listing-bot/internal/infra/db/sqlite"
)

// Store bundles the repositories of one backend.
type Store struct {
	Listings   repository.ListingRepository
	Deliveries repository.DeliveryRepository
	Close      func()
}

// Open connects to sqlite or postgres per cfg.Driver and applies the schema.
func Open(ctx context.Context, cfg config.StorageConfig, log *zerolog.Logger) (*Store, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		log.Info().Msg("listing store: postgres")
		return &Store{
			Listings:   postgres.NewListingRepo(pool),
			Deliveries: postgres.NewDeliveryRepo(pool),
			Close:      pool.Close,
		}, nil

	case "sqlite", "":
		sqlDB, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("listing store: sqlite")
		return &Store{
			Listings:   sqlite.NewListingRepo(sqlDB),
			Deliveries: sqlite.NewDeliveryRepo(sqlDB),
			Close:      func() { _ = sqlDB.Close() },
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
