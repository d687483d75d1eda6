package retry

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/nrahal/wgor/pkg/failure"
	"github.com/nrahal/wgor/pkg/timeutil"
)

// retryable is satisfied by errors that know whether another attempt
// could help.
type retryable interface {
	IsRetryable() bool
}

// Retry runs fn up to MaxAttempts times, sleeping an exponentially
// growing, jittered delay between attempts. Only errors reporting
// IsRetryable() == true trigger another attempt; errors without that
// method are assumed transient and retried.
func Retry[T any](retryParam RetryParam, fn func() (T, failure.ClassifiedError)) Result[T] {
	var zero T

	if retryParam.MaxAttempts < 1 {
		return Result[T]{
			value: zero,
			err: &RetryError{
				Message:   "max attempts must be at least 1",
				Cause:     ErrZeroAttempt,
				Retryable: true,
			},
		}
	}

	rng := rand.New(rand.NewSource(retryParam.RandomSeed))

	var lastErr failure.ClassifiedError
	for attempt := 1; attempt <= retryParam.MaxAttempts; attempt++ {
		value, err := fn()
		if err == nil {
			return NewSuccessResult(value, attempt)
		}
		lastErr = err

		if r, ok := err.(retryable); ok && !r.IsRetryable() {
			return Result[T]{value: zero, err: err, attempts: attempt}
		}
		if attempt == retryParam.MaxAttempts {
			break
		}

		time.Sleep(timeutil.ExponentialBackoffDelay(attempt, retryParam.Jitter, *rng, retryParam.BackoffParam))
	}

	return Result[T]{
		value: zero,
		err: &RetryError{
			Message:   fmt.Sprintf("exhausted %d attempts, last error: %v", retryParam.MaxAttempts, lastErr),
			Cause:     ErrExhaustedAttempts,
			Retryable: true, // the crawl moves on to the next item
		},
		attempts: retryParam.MaxAttempts,
	}
}
