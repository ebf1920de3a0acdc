package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// maxRetries is the "retried at most twice" bound of §4/§7 for transient
// store errors (connection reset, lock timeout).
const maxRetries = 2

// WithRetry executes fn, retrying up to maxRetries times with exponential
// backoff (100ms, 200ms, 400ms, ...) when fn returns a transient error.
// Non-transient errors and context cancellation propagate immediately.
//
// No retry library appears anywhere in the retrieved reference corpus
// (confirmed by survey — see DESIGN.md), so this is a small hand-rolled
// loop rather than an imported dependency.
func WithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	backoff := 100 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

// isTransient classifies lock timeouts (pgconn.PgError code 55P03,
// lock_not_available) as retryable, per §7(c), together with codes 40001
// (serialization_failure) and 40P01 (deadlock_detected), since all three
// resolve by retrying the transaction. Of connection failures, only
// pgconn.ConnectError (failure to establish a connection) is retryable; a
// connection that drops mid-statement is not classified as transient here.
// A context deadline is also retryable.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
