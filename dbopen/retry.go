package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// The index writer and the query logger share one database file, so a
// chunk replace can land while a log insert holds the write lock. Writes
// therefore go through a short linear-backoff retry loop on busy errors.
const (
	busyAttempts = 3
	busyBaseWait = 100 * time.Millisecond
)

// IsBusy reports whether err is an SQLite lock contention error. The
// driver surfaces these as text, so this matches the known messages.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// RunTx runs fn inside a transaction, retrying the whole transaction
// when the commit or any statement hits lock contention. Errors from fn
// that are not busy errors are returned as-is.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	var err error
	for attempt := range busyAttempts {
		if attempt > 0 {
			if werr := waitBusy(ctx, attempt); werr != nil {
				return werr
			}
		}
		if err = inTx(ctx, db, fn); err == nil || !IsBusy(err) {
			return err
		}
	}
	return fmt.Errorf("dbopen: RunTx: still busy after %d attempts: %w", busyAttempts, err)
}

// Exec runs a single statement with the same busy-retry behaviour as
// RunTx.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var err error
	for attempt := range busyAttempts {
		if attempt > 0 {
			if werr := waitBusy(ctx, attempt); werr != nil {
				return nil, werr
			}
		}
		var result sql.Result
		if result, err = db.ExecContext(ctx, query, args...); err == nil || !IsBusy(err) {
			return result, err
		}
	}
	return nil, fmt.Errorf("dbopen: Exec: still busy after %d attempts: %w", busyAttempts, err)
}

func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbopen: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbopen: commit: %w", err)
	}
	return nil
}

// waitBusy sleeps 100 ms before the second attempt, 200 ms before the
// third, or returns early when ctx is cancelled.
func waitBusy(ctx context.Context, attempt int) error {
	t := time.NewTimer(busyBaseWait * time.Duration(attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("dbopen: context cancelled during retry: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
