// Package rejectlog writes the rejection audit trail: one tab-separated
// row per admission rejection, carrying the reason plus the rejected
// URL's and its parent's decomposed fields.
package rejectlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nrahal/wgor/internal/admission"
	"github.com/nrahal/wgor/internal/metadata"
	"github.com/nrahal/wgor/internal/xurl"
)

// header is the fixed column order; U_* columns describe the rejected
// URL, P_* its parent.
var header = []string{
	"REASON",
	"U_URL", "U_SCHEME", "U_HOST", "U_PORT", "U_PATH", "U_PARAMS", "U_QUERY", "U_FRAGMENT",
	"P_URL", "P_SCHEME", "P_HOST", "P_PORT", "P_PATH", "P_PARAMS", "P_QUERY", "P_FRAGMENT",
}

// Writer appends rejection rows to a TSV file. A Writer with no backing
// file (path == "" or the open failed) is silent: every WriteRejection
// call is then a no-op.
type Writer struct {
	mu           sync.Mutex
	metadataSink metadata.MetadataSink
	path         string
	file         *os.File
	csv          *csv.Writer
}

// Open attempts to create (truncating any prior contents) the rejection
// log at path and write its header row. A failure to open is recorded
// as a diagnostic through metadataSink and yields a silent Writer
// rather than aborting the crawl. When path is empty, Open returns a
// silent Writer without attempting anything.
//
// The header is written only after a successful open; an open failure
// skips header emission entirely.
func Open(metadataSink metadata.MetadataSink, path string) *Writer {
	w := &Writer{metadataSink: metadataSink, path: path}
	if path == "" {
		return w
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		metadataSink.RecordError(
			time.Now(),
			"rejectlog",
			"Open",
			metadata.CauseStorageFailure,
			fmt.Sprintf("failed to open rejection log %s: %v", path, err),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrWritePath, path)},
		)
		return w
	}

	w.file = f
	w.csv = csv.NewWriter(f)
	w.csv.Comma = '\t'
	w.csv.UseCRLF = false

	if err := w.csv.Write(header); err != nil {
		metadataSink.RecordError(
			time.Now(),
			"rejectlog",
			"Open",
			metadata.CauseStorageFailure,
			fmt.Sprintf("failed to write rejection log header: %v", err),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrWritePath, path)},
		)
		f.Close()
		w.file = nil
		w.csv = nil
		return w
	}
	w.csv.Flush()

	metadataSink.RecordArtifact(metadata.ArtifactRejectionLog, path, []metadata.Attribute{
		metadata.NewAttr(metadata.AttrWritePath, path),
	})

	return w
}

// WriteRejection appends one row for a child URL rejected for reason
// with the given parent. Success is never logged. Write failures are
// recorded as diagnostics and do not stop the crawl; only a failed
// write of a mirrored resource is ever fatal.
func (w *Writer) WriteRejection(reason admission.RejectReason, rejected, parent xurl.URL) {
	if reason == admission.Success {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.csv == nil {
		return
	}

	row := []string{
		reason.String(),
		percentEscape(rejected.String()), rejected.Scheme().RejectLogToken(), rejected.Host(), rejected.Port(),
		rejected.Path(), rejected.Params(), rejected.Query(), rejected.Fragment(),
		percentEscape(parent.String()), parent.Scheme().RejectLogToken(), parent.Host(), parent.Port(),
		parent.Path(), parent.Params(), parent.Query(), parent.Fragment(),
	}

	if err := w.csv.Write(row); err != nil {
		w.metadataSink.RecordError(
			time.Now(),
			"rejectlog",
			"WriteRejection",
			metadata.CauseStorageFailure,
			fmt.Sprintf("failed to write rejection row: %v", err),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrWritePath, w.path)},
		)
		return
	}
	w.csv.Flush()
}

// Close releases the underlying file handle, if any. Safe to call on a
// silent Writer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	if w.csv != nil {
		w.csv.Flush()
	}
	err := w.file.Close()
	w.file = nil
	w.csv = nil
	return err
}

// percentEscape escapes control characters, whitespace, and '%' itself
// in a URL string so the logged U_URL/P_URL column can never introduce a
// stray tab or newline into the TSV row, while leaving ordinary URL
// characters (:/?&=) readable.
func percentEscape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= 0x20 || c == 0x7f || c == '%' {
			fmt.Fprintf(&b, "%%%02X", c)
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}
