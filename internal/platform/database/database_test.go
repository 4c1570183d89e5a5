package database

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractUpMigration(t *testing.T) {
	assert.Equal(t, "\nCREATE TABLE a (id INT);\n",
		ExtractUpMigration("-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;"))
	assert.Equal(t, "SELECT 1;", ExtractUpMigration("SELECT 1;"))
}

func TestOpenSQLite_AppliesSchemaOnce(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/rollcall.db"

	db, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	var applied int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestApplyMigrations_RecordsEachFile(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, t.TempDir()+"/m.db")
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"extra/002_notes.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE notes (id TEXT PRIMARY KEY);\n")},
		"extra/README.md":     {Data: []byte("ignored")},
	}
	require.NoError(t, ApplyMigrations(ctx, db, DialectSQLite, fsys, "extra"))
	require.NoError(t, ApplyMigrations(ctx, db, DialectSQLite, fsys, "extra"))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE name = '002_notes.sql'").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestUniqueViolation_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, t.TempDir()+"/u.db")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, "CREATE TABLE t (k TEXT UNIQUE)")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO t (k) VALUES ('a')")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO t (k) VALUES ('a')")
	require.Error(t, err)

	key, ok := UniqueViolation(err)
	require.True(t, ok)
	assert.Equal(t, "t.k", key)
}
