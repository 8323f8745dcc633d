package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, path, table string) bool {
	t.Helper()
	db, err := Open(path, nil)
	require.NoError(t, err)
	defer db.Close()

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
	require.NoError(t, err)
	return count == 1
}

func TestOpenWithMigrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "usage.db")

	db, err := OpenWithMigrations(dbPath, nil)
	require.NoError(t, err)
	db.Close()

	assert.True(t, tableExists(t, dbPath, "schema_migrations"))
	assert.True(t, tableExists(t, dbPath, "model_usage"))
}

func TestMigrateIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "usage.db")

	db, err := Open(dbPath, nil)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db, nil))
	require.NoError(t, Migrate(db, nil))

	names, err := migrationFiles()
	require.NoError(t, err)

	var applied int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, len(names), applied)
}

func TestMigrationFilesSorted(t *testing.T) {
	names, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "000_create_schema_migrations.sql", names[0])
	assert.IsIncreasing(t, names)
}

func TestOpenWithMigrationsBadPath(t *testing.T) {
	_, err := OpenWithMigrations("/dev/null/usage.db", nil)
	assert.Error(t, err)
}
