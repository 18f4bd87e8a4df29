// Package storetest opens throwaway SQLite-backed stores for tests.
package storetest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"catalog-service/internal/schema"
	"catalog-service/internal/store"
)

// Open returns stores over a fresh in-memory SQLite database that is closed when t ends.
func Open(t testing.TB) *store.SQLStores {
	t.Helper()

	db, err := store.OpenSQLite(":memory:", logger.Silent)
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() { db.Close() })

	stores, err := store.NewSQLStores(db, store.SQLite, schema.Default())
	require.NoError(t, err)
	return stores
}
