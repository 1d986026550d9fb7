package commands

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/dotcommander/errfix/internal/app"
	"github.com/dotcommander/errfix/internal/output"
	"github.com/dotcommander/errfix/internal/store"
	"github.com/dotcommander/errfix/pkg/memory"
)

// DB is an alias so command code doesn't need to import database/sql.
type DB = sql.DB

// kvStore is the persistence surface shared by the result cache and stored
// preferences. Both *store.Prefs and *memory.Store satisfy it.
type kvStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	Keys(prefix string) ([]string, error)
	DeletePrefix(prefix string) (int64, error)
}

type printedError struct {
	err error
}

func (e printedError) Error() string {
	// Intentionally hide the original error: the JSON error response is the output.
	return "error already printed"
}

func (e printedError) Unwrap() error {
	return e.err
}

func openDB() (*DB, func(), error) {
	dbPath, err := app.GetDBPath()
	if err != nil {
		return nil, nil, err
	}

	db, err := store.InitDBWithPath(dbPath)
	if err != nil {
		return nil, nil, err
	}

	return db, func() { _ = db.Close() }, nil
}

func withDB(fn func(db *DB) error) error {
	db, closeDB, err := openDB()
	if err != nil {
		return cmdErr(err)
	}
	defer closeDB()

	if err := fn(db); err != nil {
		return cmdErr(err)
	}
	return nil
}

// withPrefs runs fn against the SQLite-backed KV store. Failures are fatal.
func withPrefs(fn func(kv kvStore) error) error {
	return withDB(func(db *DB) error {
		return fn(store.NewPrefs(db))
	})
}

// withKV is withPrefs for commands that still work without persistence: when
// the database cannot be opened the command runs against an in-memory store.
func withKV(fn func(kv kvStore) error) error {
	db, closeDB, err := openDB()
	if err != nil {
		slog.Warn("database unavailable, cache and settings will not persist", "error", err)
		if err := fn(memory.New()); err != nil {
			return cmdErr(err)
		}
		return nil
	}
	defer closeDB()

	if err := fn(store.NewPrefs(db)); err != nil {
		return cmdErr(err)
	}
	return nil
}

func cmdErr(err error) error {
	if err == nil {
		return nil
	}
	var pe printedError
	if errors.As(err, &pe) {
		return err
	}
	attrs := []any{"error", err.Error()}
	type slogAttrError interface {
		SlogAttrs() []any
	}
	var detailed slogAttrError
	if errors.As(err, &detailed) {
		attrs = append(attrs, detailed.SlogAttrs()...)
	}
	type codedError interface {
		ErrorCode() string
	}
	var coded codedError
	if errors.As(err, &coded) {
		attrs = append(attrs, "code", coded.ErrorCode())
	}
	slog.Error("command error", attrs...)
	_ = output.PrintError(err)
	return printedError{err: err}
}
