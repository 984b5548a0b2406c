package shell

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openshelf/lending-engine-go/docstore"
)

func Test_RetryWithExponentialBackoff_Success_NoRetries(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		return nil
	}

	err := RetryWithExponentialBackoff(ctx, fn)

	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func Test_RetryWithExponentialBackoff_RetryOnConcurrencyConflict(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		if callCount < 3 {
			return docstore.ErrConcurrencyConflict
		}
		return nil
	}

	err := RetryWithExponentialBackoff(ctx, fn, WithBaseDelay(time.Millisecond))

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func Test_RetryWithExponentialBackoff_RetryOnStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		if callCount < 2 {
			return docstore.ErrStoreUnavailable
		}
		return nil
	}

	err := RetryWithExponentialBackoff(ctx, fn, WithBaseDelay(time.Millisecond))

	assert.NoError(t, err)
	assert.Equal(t, 2, callCount)
}

func Test_RetryWithExponentialBackoff_FailsFast_OnNonRetryableError(t *testing.T) {
	ctx := context.Background()
	callCount := 0
	permanentErr := errors.New("permanent failure")

	fn := func(_ context.Context) error {
		callCount++
		return permanentErr
	}

	err := RetryWithExponentialBackoff(ctx, fn)

	assert.ErrorIs(t, err, permanentErr)
	assert.Equal(t, 1, callCount)
}

func Test_RetryWithExponentialBackoff_ExhaustsMaxAttempts(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		return docstore.ErrConcurrencyConflict
	}

	err := RetryWithExponentialBackoff(ctx, fn,
		WithMaxAttempts(3),
		WithBaseDelay(time.Millisecond),
		WithJitterFactor(0.1),
	)

	assert.ErrorIs(t, err, docstore.ErrConcurrencyConflict)
	assert.Equal(t, 3, callCount)
}

func Test_RetryWithExponentialBackoff_StopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	fn := func(_ context.Context) error {
		cancel()
		return docstore.ErrConcurrencyConflict
	}

	err := RetryWithExponentialBackoff(ctx, fn, WithBaseDelay(50*time.Millisecond))

	assert.ErrorIs(t, err, context.Canceled)
}

func Test_RetryWithExponentialBackoff_InvalidOptions(t *testing.T) {
	ctx := context.Background()
	fn := func(_ context.Context) error { return nil }

	assert.ErrorIs(t, RetryWithExponentialBackoff(ctx, fn, WithMaxAttempts(0)), ErrInvalidMaxAttempts)
	assert.ErrorIs(t, RetryWithExponentialBackoff(ctx, fn, WithBaseDelay(-time.Second)), ErrNegativeBaseDelay)
	assert.ErrorIs(t, RetryWithExponentialBackoff(ctx, fn, WithJitterFactor(1.5)), ErrInvalidJitterFactor)
}
