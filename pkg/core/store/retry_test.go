package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsTransientClassifiesSerializationAndDeadlock(t *testing.T) {
	assert.True(t, isTransient(&pgconn.PgError{Code: "40001"}))
	assert.True(t, isTransient(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, isTransient(&pgconn.PgError{Code: "23505"}))
}

func TestIsTransientClassifiesContextDeadline(t *testing.T) {
	assert.True(t, isTransient(context.DeadlineExceeded))
	assert.False(t, isTransient(nil))
	assert.False(t, isTransient(errors.New("boom")))
}

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestWithRetryStopsImmediatelyOnNonTransientError(t *testing.T) {
	attempts := 0
	boom := errors.New("boom")
	err := WithRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return boom
	})
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, attempts)
}

func TestWithRetryExhaustsAfterMaxRetries(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return &pgconn.PgError{Code: "40001"}
	})
	assert.Error(t, err)
	assert.Equal(t, maxRetries+1, attempts)
}
