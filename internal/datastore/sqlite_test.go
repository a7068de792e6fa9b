package datastore_test

import (
	"context"
	"path/filepath"
	"testing"

	"grammargame/internal/datastore"
	"grammargame/internal/datastore/storetest"
	"grammargame/internal/interfaces"

	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) interfaces.Store {
	t.Helper()

	db, err := datastore.OpenSQLite(filepath.Join(t.TempDir(), "grammargame.db"))
	require.NoError(t, err)

	store := datastore.NewSQLStore(db)
	t.Cleanup(func() {
		//nolint:errcheck
		store.Shutdown()
	})

	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Migrate(ctx))
	// migrations are idempotent
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, newSQLiteStore)
}
