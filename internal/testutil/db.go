// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/welldanyogia/mailpilot-backend/internal/database"
)

// NewSQLiteDB opens a migrated in-memory SQLite database. The pool is pinned
// to one connection so every goroutine sees the same in-memory database.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// ResetTables empties every pipeline table, children first
func ResetTables(db *gorm.DB) {
	for _, table := range []string{
		"activity_records", "batch_draft_jobs", "drafts", "rules",
		"messages", "user_settings", "mailbox_connections", "owners",
	} {
		db.Exec("DELETE FROM " + table)
	}
}
