// Package testing holds fixtures shared by package tests.
package testing

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/teranos/strata/db"
)

// CreateTestDB creates a migrated SQLite usage database in a temporary
// directory. A file is used instead of :memory: because every pooled
// connection to :memory: sees its own empty database.
// Automatically registers cleanup via t.Cleanup().
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.OpenWithMigrations(filepath.Join(t.TempDir(), "usage.db"), nil)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		conn.Close()
	})

	return conn
}
