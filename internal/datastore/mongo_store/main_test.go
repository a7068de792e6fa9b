package mongo_store_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"grammargame/internal/datastore/mongo_store"
	"grammargame/internal/datastore/storetest"
	"grammargame/internal/interfaces"

	"github.com/stretchr/testify/require"
)

// TestStore runs against a live server; set MONGO_URI to enable it.
func TestStore(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	storetest.Run(t, func(t *testing.T) interfaces.Store {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		database := fmt.Sprintf("grammar_game_test_%d", time.Now().UnixNano())
		store, err := mongo_store.Connect(ctx, uri, database)
		require.NoError(t, err)
		require.NoError(t, store.Ping(ctx))
		require.NoError(t, store.Migrate(ctx))

		t.Cleanup(func() {
			//nolint:errcheck
			store.Drop(context.Background())
			//nolint:errcheck
			store.Shutdown()
		})
		return store
	})
}
