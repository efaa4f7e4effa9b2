package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/roster/internal/config"
	"github.com/JonMunkholm/roster/internal/core"
	"github.com/JonMunkholm/roster/internal/docstore"
	"github.com/JonMunkholm/roster/internal/docstore/memstore"
	"github.com/JonMunkholm/roster/internal/docstore/mongostore"
	"github.com/JonMunkholm/roster/internal/docstore/pgstore"
	"github.com/JonMunkholm/roster/internal/metrics"
)

type indexer interface {
	EnsureIndex(ctx context.Context, collection, field string, desc bool) error
}

// openStore connects the configured backend and wraps it with metrics.
func openStore(ctx context.Context, cfg *config.StoreConfig, m *metrics.Metrics) (docstore.Store, error) {
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	var (
		store docstore.Store
		err   error
	)
	switch cfg.Driver {
	case config.DriverMongo:
		store, err = mongostore.Open(ctx, mongostore.Config{
			URI:            cfg.URL,
			Database:       cfg.Database,
			MaxPoolSize:    uint64(cfg.MaxConns),
			ConnectTimeout: cfg.ConnectTimeout,
		})
	case config.DriverPostgres:
		store, err = pgstore.Open(ctx, pgstore.Config{
			URL:             cfg.URL,
			MaxConns:        int32(cfg.MaxConns),
			MinConns:        int32(cfg.MinConns),
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		}, cfg.StudentsCollection, cfg.ConfigCollection)
	case config.DriverMemory:
		store = memstore.New()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if ix, ok := store.(indexer); ok {
		if err := ix.EnsureIndex(ctx, cfg.StudentsCollection, core.FieldCreatedAt, true); err != nil {
			_ = store.Close(context.Background())
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
	}

	slog.Info("store connected", "driver", cfg.Driver, "database", cfg.Database)
	return metrics.InstrumentStore(store, m), nil
}
