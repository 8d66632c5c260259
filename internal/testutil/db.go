// Package testutil provides helpers shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"refbook/config"
	"refbook/internal/database"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB opens a migrated SQLite database in a per-test temp directory. The real
// conditional UPDATE statements run against it, so store-level atomicity is exercised
// rather than simulated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewDB(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=on",
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}
