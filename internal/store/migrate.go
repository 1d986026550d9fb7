package store

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// MigrateDB runs all pending migrations under an advisory file lock so two
// errfix processes starting together do not race. In-memory databases skip the lock.
func MigrateDB(db *sql.DB, dbPath string) error {
	if !strings.Contains(dbPath, ":memory:") {
		unlock, err := acquireMigrationLock(dbPath)
		if err != nil {
			return fmt.Errorf("migration lock: %w", err)
		}
		defer unlock()
	}
	return RunMigrations(db)
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetVerbose(false) // Suppress migration logs for clean JSON output
	goose.SetLogger(goose.NopLogger())

	// goose's dialect name is "sqlite3" regardless of the driver; it only
	// controls SQL generation. The driver registered by modernc is "sqlite".
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

// SchemaVersion returns the applied goose version, 0 for a fresh database.
func SchemaVersion(db *sql.DB) int64 {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0
	}
	v, err := goose.GetDBVersion(db)
	if err != nil {
		return 0
	}
	return v
}

// acquireMigrationLock takes an exclusive flock on <db>.migrate.lock and
// returns the release func.
func acquireMigrationLock(dbPath string) (func(), error) {
	lockPath := dbPath + ".migrate.lock"
	_ = os.MkdirAll(filepath.Dir(lockPath), 0o755)

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644) //nolint:gosec // G304: lockPath derived from trusted dbPath
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", lockPath, err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
	}
	return func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
	}, nil
}
