package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Prefs is a flat string key-value store backed by the prefs table.
// It has no transactions across calls; each method is atomic on its own.
type Prefs struct {
	db *sql.DB
}

// NewPrefs wraps an initialized database.
func NewPrefs(db *sql.DB) *Prefs {
	return &Prefs{db: db}
}

// Get returns the value for key and whether it exists.
func (p *Prefs) Get(key string) (string, bool, error) {
	var value string
	err := retryBusy(context.Background(), func() error {
		return p.db.QueryRowContext(context.Background(),
			`SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get pref %q: %w", key, err)
	}
	return value, true, nil
}

// Set upserts key.
func (p *Prefs) Set(key, value string) error {
	if key == "" {
		return errors.New("pref key is required")
	}
	err := retryBusy(context.Background(), func() error {
		_, err := p.db.ExecContext(context.Background(), `
			INSERT INTO prefs (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
		`, key, value)
		return err
	})
	if err != nil {
		return fmt.Errorf("set pref %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (p *Prefs) Delete(key string) error {
	err := retryBusy(context.Background(), func() error {
		_, err := p.db.ExecContext(context.Background(), `DELETE FROM prefs WHERE key = ?`, key)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete pref %q: %w", key, err)
	}
	return nil
}

// Keys lists keys starting with prefix in lexical order.
func (p *Prefs) Keys(prefix string) ([]string, error) {
	rows, err := p.db.QueryContext(context.Background(),
		`SELECT key FROM prefs WHERE substr(key, 1, ?) = ? ORDER BY key`, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("list prefs %q: %w", prefix, err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan pref key: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// DeletePrefix removes every key starting with prefix in one transaction and
// returns how many rows were removed.
func (p *Prefs) DeletePrefix(prefix string) (int64, error) {
	if strings.TrimSpace(prefix) == "" {
		return 0, errors.New("refusing to delete with empty prefix")
	}
	var n int64
	err := p.inTx(context.Background(), func(tx *sql.Tx) error {
		res, err := tx.ExecContext(context.Background(),
			`DELETE FROM prefs WHERE substr(key, 1, ?) = ?`, utf8.RuneCountInString(prefix), prefix)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete prefs %q: %w", prefix, err)
	}
	return n, nil
}

// inTx runs fn in one transaction, retrying the whole transaction on lock
// contention. fn may run more than once.
func (p *Prefs) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return retryBusy(ctx, func() error {
		tx, err := p.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}
