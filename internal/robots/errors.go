package robots

import (
	"fmt"

	"github.com/nrahal/wgor/internal/metadata"
	"github.com/nrahal/wgor/pkg/failure"
)

type RobotsErrorCause string

const (
	ErrCauseBadRequest   RobotsErrorCause = "malformed robots.txt request"
	ErrCauseFetchFailure RobotsErrorCause = "robots.txt fetch failed"
	ErrCauseBodyRead     RobotsErrorCause = "robots.txt body unreadable"
	ErrCauseRateLimited  RobotsErrorCause = "rate limited"
	ErrCauseRedirectLoop RobotsErrorCause = "redirect loop"
	ErrCauseServerError  RobotsErrorCause = "server error"
)

type RobotsError struct {
	Message   string
	Retryable bool
	Cause     RobotsErrorCause
}

func (e *RobotsError) Error() string {
	return fmt.Sprintf("robots error: %s: %s", e.Cause, e.Message)
}

func (e *RobotsError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapRobotsErrorToMetadataCause maps robots-local error semantics to the
// canonical metadata.ErrorCause table. Observational only; never feeds
// control flow.
func mapRobotsErrorToMetadataCause(err *RobotsError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseFetchFailure, ErrCauseRateLimited, ErrCauseRedirectLoop, ErrCauseServerError:
		return metadata.CauseNetworkFailure
	case ErrCauseBodyRead:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
