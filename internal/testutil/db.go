// Package testutil provides shared database fixtures for backend tests.
package testutil

import (
	"testing"

	"agora/internal/config"
	"agora/internal/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewSQLiteDB opens a private in-memory SQLite database with every forum
// table migrated. The pool is pinned to one connection so the whole test
// sees the same memory database.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := &config.Config{
		Env:          "test",
		DBDriver:     "sqlite",
		DBPath:       ":memory:",
		DBSchemaMode: database.SchemaModeAuto,
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: true})
	require.NoError(t, err)

	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// NewMockDB returns a gorm handle backed by sqlmock using the postgres
// dialect, for exercising storage failure paths.
func NewMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db, mock
}
