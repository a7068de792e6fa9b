package datastore

import (
	"context"
	"fmt"

	"grammargame/internal"
	"grammargame/internal/config"
	"grammargame/internal/datastore/memory_store"
	"grammargame/internal/datastore/mongo_store"
	"grammargame/internal/interfaces"
)

// Open connects the configured backend and verifies it is reachable. The
// caller owns the returned store and must Shutdown it.
func Open(ctx context.Context, cfg *config.Config) (interfaces.Store, error) {
	var store interfaces.Store

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		store = NewSQLStore(OpenPostgres(cfg.DatabaseDSN, cfg.DatabasePass))
	case config.DriverSQLite:
		db, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, internal.WrapStorage("open sqlite", err)
		}
		store = NewSQLStore(db)
	case config.DriverMongo:
		mongoStore, err := mongo_store.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		store = mongoStore
	case config.DriverMemory:
		store = memory_store.New()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.StoreOpTimeout)
	defer cancel()

	if err := store.Ping(pingCtx); err != nil {
		//nolint:errcheck
		store.Shutdown()
		return nil, err
	}

	return store, nil
}
