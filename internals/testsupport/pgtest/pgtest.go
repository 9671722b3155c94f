// Package pgtest hands integration tests a freshly migrated PostgreSQL
// database. Tests are skipped unless TEST_DATABASE_URL (or TEST_POSTGRES_DB)
// is set.
package pgtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"library_backend/internals/configs"
	database "library_backend/internals/databases"
)

// Open connects to the test database, drops every public table and migrates
// the schema. The pool is closed when the test ends.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := configs.Load()
	if cfg.TestDatabaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres test")
	}
	cfg.DBLogLevel = "silent"

	db, err := database.Open(cfg.TestDatabaseURL, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	require.NoError(t, database.Reset(context.Background(), db))
	require.NoError(t, database.Migrate(db))
	return db
}
