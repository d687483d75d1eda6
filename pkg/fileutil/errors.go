package fileutil

import (
	"fmt"

	"github.com/nrahal/wgor/pkg/failure"
)

type FileErrorCause string

const ErrCausePathError FileErrorCause = "path error"

// FileError classifies a filesystem failure; directory-creation problems
// are never retryable, so Severity is fatal unless marked otherwise.
type FileError struct {
	Message   string
	Retryable bool
	Cause     FileErrorCause
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file error: %s: %s", e.Cause, e.Message)
}

func (e *FileError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}
