package retry

import (
	"fmt"

	"github.com/nrahal/wgor/pkg/failure"
)

type RetryErrorCause string

const (
	ErrZeroAttempt       RetryErrorCause = "zero attempt"
	ErrExhaustedAttempts RetryErrorCause = "exhausted attempts"
)

// RetryError is the terminal error Retry synthesizes itself: either the
// caller asked for zero attempts, or every attempt failed. The last
// underlying error is folded into Message rather than wrapped, since
// callers key on Cause, not on the inner error chain.
type RetryError struct {
	Message   string
	Retryable bool
	Cause     RetryErrorCause
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry error: %s: %s", e.Cause, e.Message)
}

func (e *RetryError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *RetryError) IsRetryable() bool { return e.Retryable }

// Is lets errors.Is match any *RetryError regardless of cause.
func (e *RetryError) Is(target error) bool {
	_, ok := target.(*RetryError)
	return ok
}
