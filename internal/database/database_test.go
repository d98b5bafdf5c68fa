package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 5, time.Millisecond, zap.NewNop(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryNoWaitAfterLastAttempt(t *testing.T) {
	const delay = 300 * time.Millisecond
	refused := errors.New("connection refused")
	calls := 0

	start := time.Now()
	err := retry(context.Background(), 2, delay, zap.NewNop(), func() error {
		calls++
		return refused
	})
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, refused)
	assert.Equal(t, 2, calls)
	assert.GreaterOrEqual(t, elapsed, delay)
	assert.Less(t, elapsed, 2*delay)
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry(ctx, 5, time.Hour, zap.NewNop(), func() error {
		calls++
		cancel()
		return errors.New("connection refused")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
