package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// withBusyRetry executes op with exponential backoff while it fails with
// SQLITE_BUSY or SQLITE_LOCKED. Any other error is permanent and returned
// immediately. The busy timeout on the connection handles short waits;
// this covers the write-lock contention BEGIN IMMEDIATE can hit under
// concurrent mutations.
func withBusyRetry(ctx context.Context, op func() error) error {
	operation := func() error {
		err := op()
		if err != nil && !isBusy(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = 5 * time.Second

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}

// isBusy reports whether err is a transient SQLite locking error.
func isBusy(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() & 0xff { // primary result code
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
