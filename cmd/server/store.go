package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartcity/saferoute/internal/config"
	"github.com/smartcity/saferoute/internal/domain"
	"github.com/smartcity/saferoute/internal/repository/firestore"
	"github.com/smartcity/saferoute/internal/repository/memory"
	"github.com/smartcity/saferoute/internal/repository/postgres"
)

// openStore connects the configured incident store. When strict is false a
// store that cannot be reached falls back to memory.
func openStore(ctx context.Context, cfg *config.Config, strict bool) (domain.IncidentRepository, func(), error) {
	noop := func() {}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var (
		repo    domain.IncidentRepository
		cleanup = noop
		err     error
	)
	switch cfg.IncidentStore {
	case config.StorePostgres:
		repo, cleanup, err = openPostgres(ctx, cfg.DatabaseURL)
	case config.StoreFirestore:
		repo, cleanup, err = openFirestore(ctx, cfg)
	default:
		slog.Info("using in-memory incident store")
		return memory.NewRepository(), noop, nil
	}

	if err != nil {
		if strict {
			return nil, noop, err
		}
		slog.Warn("could not connect to incident store, running with in-memory store",
			"store", cfg.IncidentStore, "error", err)
		return memory.NewRepository(), noop, nil
	}
	return repo, cleanup, nil
}

func openPostgres(ctx context.Context, databaseURL string) (domain.IncidentRepository, func(), error) {
	if databaseURL == "" {
		return nil, nil, fmt.Errorf("postgres: database_url is not set")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}
	repo := postgres.NewPostgresRepository(pool)
	if err := repo.Health(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	slog.Info("connected to PostgreSQL")
	return repo, pool.Close, nil
}

func openFirestore(ctx context.Context, cfg *config.Config) (domain.IncidentRepository, func(), error) {
	if cfg.FirebaseCredentials == "" {
		return nil, nil, fmt.Errorf("firestore: firebase_credentials is not set")
	}
	client, err := firestore.NewClient(ctx, cfg.FirebaseCredentials)
	if err != nil {
		return nil, nil, err
	}
	repo := firestore.NewRepository(client, cfg.FirestoreCollection)
	slog.Info("connected to Firestore", "collection", cfg.FirestoreCollection)
	return repo, func() {
		if err := repo.Close(); err != nil {
			slog.Warn("firestore close failed", "error", err)
		}
	}, nil
}
