// Package dbtest opens migrated throwaway databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/templui/marketplace/internal/db"
)

// NewSQLite returns a migrated SQLite database in t's temp dir, closed on cleanup.
func NewSQLite(t testing.TB) *sqlx.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "items.db") + "?_pragma=busy_timeout(5000)"

	database, err := db.Init("sqlite", dsn)
	require.NoError(t, err)

	// one writer at a time; concurrent callers queue on the pool
	database.SetMaxOpenConns(1)

	require.NoError(t, db.RunMigrations(database.DB, "sqlite"))

	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}
