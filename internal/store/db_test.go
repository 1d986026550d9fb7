package store

import (
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := InitDBWithPath(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInitDB(t *testing.T) {
	testDBPath := t.TempDir() + "/test.db"

	db, err := InitDBWithPath(testDBPath)
	require.NoError(t, err)
	defer db.Close()

	_, statErr := os.Stat(testDBPath)
	require.False(t, os.IsNotExist(statErr), "database file was not created")

	var name string
	require.NoError(t, db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='prefs'").Scan(&name))

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	require.Equal(t, "wal", journalMode)

	require.EqualValues(t, 1, SchemaVersion(db))
}

func TestInitDB_ReopenIsIdempotent(t *testing.T) {
	path := t.TempDir() + "/test.db"

	db, err := InitDBWithPath(path)
	require.NoError(t, err)
	require.NoError(t, NewPrefs(db).Set("k", "v"))
	require.NoError(t, db.Close())

	db, err = InitDBWithPath(path)
	require.NoError(t, err)
	defer db.Close()

	v, ok, err := NewPrefs(db).Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)
}
