package store

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryBusy reruns op while SQLite reports lock contention, for at most
// ten seconds or until ctx is done. Any other error is returned at once.
func retryBusy(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second
	b.RandomizationFactor = 0.1

	return backoff.Retry(func() error {
		err := op()
		if err == nil || isBusy(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx))
}

// isBusy matches modernc.org/sqlite busy/locked error strings (baseline v1.45).
func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}
