package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mrlokans/shelfsync/internal/entities"
)

// linearBackOff waits step, 2*step, 3*step, ... between attempts.
type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.step
}

func (b *linearBackOff) Reset() {
	b.n = 0
}

// withRetry runs op up to attempts times in total. Validation errors and store
// unavailability are not retried. It returns how many attempts were made.
func withRetry(ctx context.Context, attempts int, step time.Duration, op func() error, onRetry func(error)) (int, error) {
	if attempts < 1 {
		attempts = 1
	}
	var b backoff.BackOff = &linearBackOff{step: step}
	b = backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)

	made := 0
	err := backoff.RetryNotify(func() error {
		made++
		err := op()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, _ time.Duration) {
		if onRetry != nil {
			onRetry(err)
		}
	})
	return made, err
}

func retryable(err error) bool {
	switch {
	case entities.IsValidationError(err),
		errors.Is(err, entities.ErrStoreUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// classify maps an error to the kind recorded in a pass result.
func classify(err error) ErrorKind {
	switch {
	case entities.IsValidationError(err):
		return ErrorValidation
	case errors.Is(err, entities.ErrStoreUnavailable):
		return ErrorUnavailable
	default:
		return ErrorTransient
	}
}
