package db_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/marketplace/internal/db"
)

func TestMigrationsUpAndDown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "items.db")

	database, err := db.Init("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })

	require.NoError(t, db.RunMigrations(database.DB, "sqlite"))

	version, err := db.Version(database.DB, "sqlite")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	var count int
	require.NoError(t, database.Get(&count, `SELECT COUNT(*) FROM items`))
	assert.Zero(t, count)

	require.NoError(t, db.MigrateDown(database.DB, "sqlite"))

	err = database.Get(&count, `SELECT COUNT(*) FROM items`)
	assert.Error(t, err)
}

func TestItemsTableEnforcesBuyerInvariant(t *testing.T) {
	database, err := db.Init("sqlite", filepath.Join(t.TempDir(), "items.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })
	require.NoError(t, db.RunMigrations(database.DB, "sqlite"))

	_, err = database.Exec(`INSERT INTO items (id, owner_id, created_at, name, price, status, buyer_id)
		VALUES ('a', 'u', '2026-01-01 00:00:00', 'Bike', 10, 'sold', NULL)`)
	assert.Error(t, err, "sold without buyer must be rejected")

	_, err = database.Exec(`INSERT INTO items (id, owner_id, created_at, name, price, status)
		VALUES ('b', 'u', '2026-01-01 00:00:00', 'Bike', -1, 'available')`)
	assert.Error(t, err, "negative price must be rejected")
}
