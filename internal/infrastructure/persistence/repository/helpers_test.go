package repository

import (
	"database/sql"
	"testing"

	"github.com/garyjia/eak-connector/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/eak-connector/migrations"
	"github.com/garyjia/eak-connector/pkg/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupTestDB opens a migrated in-memory database
func setupTestDB(t *testing.T) (*sql.DB, *sqlite.DB) {
	t.Helper()

	conn, err := database.New(database.Config{Path: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, database.NewMigrator(conn, zap.NewNop()).RunMigrations(migrations.FS))
	return conn.DB, sqlite.NewDB(conn.DB, zap.NewNop())
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...interface{}) int64 {
	t.Helper()
	res, err := db.Exec(query, args...)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func int64Ptr(v int64) *int64 { return &v }
