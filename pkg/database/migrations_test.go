package database

import (
	"testing"
	"testing/fstest"

	"github.com/garyjia/eak-connector/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadMigrations_Ordered(t *testing.T) {
	fsys := fstest.MapFS{
		"010_later.sql":   {Data: []byte("SELECT 1;")},
		"002_second.sql":  {Data: []byte("SELECT 2;")},
		"001_initial.sql": {Data: []byte("SELECT 3;")},
		"README.md":       {Data: []byte("ignored")},
	}

	got, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].Version)
	assert.Equal(t, "initial", got[0].Name)
	assert.Equal(t, 10, got[2].Version)
}

func TestLoadMigrations_RejectsBadNames(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{"init.sql": {Data: []byte("SELECT 1;")}})
	assert.Error(t, err)

	_, err = LoadMigrations(fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 1;")},
	})
	assert.Error(t, err)
}

func TestRunMigrations_EmbeddedSchemaIsIdempotent(t *testing.T) {
	db, err := New(Config{Path: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	m := NewMigrator(db, zap.NewNop())
	require.NoError(t, m.RunMigrations(migrations.FS))
	require.NoError(t, m.RunMigrations(migrations.FS))

	var applied int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 4, applied)

	var placeholders int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM products WHERE default_code = 'EAK-UNMATCHED' AND company_id IS NULL").Scan(&placeholders))
	assert.Equal(t, 1, placeholders)
}
