package db

import (
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	write := buildDSN("/tmp/intake.sqlite", ModeWrite)
	assert.True(t, strings.HasPrefix(write, "/tmp/intake.sqlite?"))
	assert.Contains(t, write, "_journal_mode=WAL")
	assert.Contains(t, write, "_busy_timeout=5000")
	assert.Contains(t, write, "_foreign_keys=on")
	assert.Contains(t, write, "_txlock=immediate")

	read := buildDSN("/tmp/intake.sqlite", ModeRead)
	assert.Contains(t, read, "_synchronous=NORMAL")
	assert.NotContains(t, read, "_txlock")
}

func TestOpenSQLite_InvalidMode(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "x.db"), Mode("both"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid SQLite mode")
}

func TestOpenSQLitePair_PoolSizes(t *testing.T) {
	writeDB, readDB, err := OpenSQLitePair(filepath.Join(t.TempDir(), "x.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = writeDB.Close()
		_ = readDB.Close()
	})

	assert.Equal(t, 1, writeDB.Stats().MaxOpenConnections)
	assert.Equal(t, defaultReadConns, readDB.Stats().MaxOpenConnections)

	var mode string
	require.NoError(t, readDB.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", strings.ToLower(mode))
}

func TestRunMigrations_CreatesGrantTable(t *testing.T) {
	writeDB, readDB := OpenTestSQLite(t)

	_, err := writeDB.Exec(`INSERT INTO credential_grants (token_hash, key_prefix, collection) VALUES ('h', 'p', 'c')`)
	require.NoError(t, err)

	var n int
	require.NoError(t, readDB.QueryRow(`SELECT COUNT(*) FROM credential_grants`).Scan(&n))
	assert.Equal(t, 1, n)

	require.NoError(t, RunMigrations(writeDB), "migrations are idempotent")
}
