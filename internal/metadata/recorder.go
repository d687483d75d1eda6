package metadata

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

import (
	"io"
	"log/slog"
	"time"
)

// Recorder is the crawl core's single sink for fetch events, error
// observations, artifact writes, and the terminal crawl summary. Every
// admission/fetch/storage package takes a MetadataSink rather than
// writing to stdout directly, so observability stays structured and
// swappable (e.g. discarded entirely during tests). Recorder is the
// concrete implementation of that interface, emitting one slog JSON line
// per event.
type Recorder struct {
	logger *slog.Logger
}

var _ MetadataSink = (*Recorder)(nil)

// NewRecorder builds a Recorder writing structured log lines to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{logger: slog.New(slog.NewJSONHandler(w, nil))}
}

// NewDiscardRecorder builds a Recorder that drops every event, for tests
// that don't care about observability output.
func NewDiscardRecorder() *Recorder {
	return NewRecorder(io.Discard)
}

// RecordFetch logs a single page fetch attempt's outcome.
func (r *Recorder) RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
	if r == nil || r.logger == nil {
		return
	}
	r.logger.Info("fetch",
		"url", fetchUrl,
		"status", httpStatus,
		"duration_ms", duration.Milliseconds(),
		"content_type", contentType,
		"retry_count", retryCount,
		"depth", crawlDepth,
	)
}

// RecordAssetFetch logs a page-requisite fetch attempt's outcome.
func (r *Recorder) RecordAssetFetch(fetchUrl string, httpStatus int, duration time.Duration, retryCount int) {
	if r == nil || r.logger == nil {
		return
	}
	r.logger.Info("asset_fetch",
		"url", fetchUrl,
		"status", httpStatus,
		"duration_ms", duration.Milliseconds(),
		"retry_count", retryCount,
	)
}

// RecordError logs a canonical-cause error observation. cause MUST NOT be
// used anywhere to derive retry/abort decisions; it exists only so this
// log line can be filtered/aggregated later.
func (r *Recorder) RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, details string, attrs []Attribute) {
	if r == nil || r.logger == nil {
		return
	}
	args := []any{
		"package", packageName,
		"action", action,
		"cause", causeName(cause),
		"error", details,
		"observed_at", observedAt.UTC().Format(time.RFC3339Nano),
	}
	for _, a := range attrs {
		args = append(args, string(a.Key), a.Value)
	}
	r.logger.Error("error", args...)
}

// RecordArtifact logs a written artifact's local path.
func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	if r == nil || r.logger == nil {
		return
	}
	args := []any{"kind", artifactKindName(kind), "path", path}
	for _, a := range attrs {
		args = append(args, string(a.Key), a.Value)
	}
	r.logger.Info("artifact", args...)
}

// RecordFinalCrawlStats logs the terminal crawl summary exactly once.
// Must be computed by the crawl loop after termination and must never be
// read back to influence further scheduling.
func (r *Recorder) RecordFinalCrawlStats(totalPages, totalErrors, totalAssets int, duration time.Duration) {
	if r == nil || r.logger == nil {
		return
	}
	stats := crawlStats{
		totalPages:  totalPages,
		totalErrors: totalErrors,
		totalAssets: totalAssets,
		durationMs:  duration.Milliseconds(),
	}
	r.logger.Info("crawl_complete",
		"total_pages", stats.totalPages,
		"total_errors", stats.totalErrors,
		"total_assets", stats.totalAssets,
		"duration_ms", stats.durationMs,
	)
}

func causeName(cause ErrorCause) string {
	switch cause {
	case CauseNetworkFailure:
		return "network_failure"
	case CausePolicyDisallow:
		return "policy_disallow"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseInvariantViolation:
		return "invariant_violation"
	case CauseRetryFailure:
		return "retry_failure"
	default:
		return "unknown"
	}
}

func artifactKindName(kind ArtifactKind) string {
	switch kind {
	case ArtifactHTMLPage:
		return "html_page"
	case ArtifactStylesheet:
		return "stylesheet"
	case ArtifactBinaryAsset:
		return "binary_asset"
	case ArtifactRejectionLog:
		return "rejection_log"
	default:
		return "unknown"
	}
}
