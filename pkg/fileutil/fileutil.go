package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nrahal/wgor/pkg/failure"
)

// GetFileExtension returns path's extension without the leading dot, or
// "" when there is none. The suffix accept/reject rules compare against
// this form.
func GetFileExtension(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimPrefix(ext, ".")
}

// EnsureDir creates dir (joined with any further path segments),
// including missing parents. Existing directories are left alone.
func EnsureDir(dir string, path ...string) failure.ClassifiedError {
	segments := append([]string{dir}, path...)
	target := filepath.Join(segments...)

	if err := os.MkdirAll(target, 0755); err != nil {
		return &FileError{
			Message:   fmt.Sprintf("creating %s: %v", target, err),
			Retryable: false,
			Cause:     ErrCausePathError,
		}
	}
	return nil
}
