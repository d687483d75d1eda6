package metadata

import (
	"time"
)

// crawlStats is the terminal summary of one finished crawl: aggregate
// counts only, computed once after the loop exits, never read back to
// influence scheduling or termination.
type crawlStats struct {
	totalPages  int
	totalErrors int
	totalAssets int
	durationMs  int64
}

/*
ErrorCause is a closed, canonical error classification used exclusively
for observability (logging, metrics, reporting).

Rules:
  - ErrorCause MUST NOT influence control flow: no retry, continuation,
    or abort decision may read it.
  - Values have stable, package-agnostic semantics. Pipeline packages
    map their local errors onto this table; they never invent meanings.
  - A failure that matches no defined cause maps to CauseUnknown.

ErrorCause does not encode severity, retryability, or crawl
termination; pkg/failure.Severity owns that axis.
*/
type ErrorCause int

const (
	// CauseUnknown is the fallback for failures that map to no other
	// cause: unexpected internal errors, unclassified library failures.
	CauseUnknown = iota

	// CauseNetworkFailure covers transport and remote availability:
	// timeouts, DNS failures, connection resets.
	CauseNetworkFailure

	// CausePolicyDisallow covers explicit denial: robots.txt disallow,
	// 401/403 responses, rate-limit enforcement.
	CausePolicyDisallow

	// CauseContentInvalid covers fetched-but-unusable content: bodies
	// that cannot be read or parsed for link extraction.
	CauseContentInvalid

	// CauseStorageFailure covers artifact persistence: disk full,
	// permissions, filesystem I/O.
	CauseStorageFailure

	// CauseInvariantViolation covers internal consistency failures,
	// e.g. an impossible crawl depth.
	CauseInvariantViolation

	CauseRetryFailure
)

// MetadataSink is the single observability surface the crawl core writes
// through. Every package that fetches, classifies, or persists content
// takes a MetadataSink instead of logging directly, so the recorded shape
// stays uniform and swappable in tests.
//
// Implementations MUST be safe for concurrent use.
type MetadataSink interface {
	// RecordFetch logs a single page fetch outcome.
	RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int)

	// RecordAssetFetch logs a page-requisite (image, CSS, script,
	// robots.txt) fetch outcome. Requisites are not subject to recursion
	// depth accounting, so this takes no crawlDepth.
	RecordAssetFetch(fetchUrl string, httpStatus int, duration time.Duration, retryCount int)

	// RecordError logs a canonical-cause error observation. cause MUST
	// NOT be used anywhere to derive retry/abort decisions.
	RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, details string, attrs []Attribute)

	// RecordArtifact logs a written local artifact.
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
}

// ArtifactKind classifies a persisted local artifact for observability.
type ArtifactKind int

const (
	ArtifactUnknown ArtifactKind = iota
	ArtifactHTMLPage
	ArtifactStylesheet
	ArtifactBinaryAsset
	ArtifactRejectionLog
)

type Attribute struct {
	Key   AttributeKey
	Value string
}

func NewAttr(key AttributeKey, val string) Attribute {
	return Attribute{
		Key:   key,
		Value: val,
	}
}

type AttributeKey string

const (
	AttrTime       AttributeKey = "time"
	AttrURL        AttributeKey = "url"
	AttrHost       AttributeKey = "host"
	AttrPath       AttributeKey = "path"
	AttrDepth      AttributeKey = "depth"
	AttrField      AttributeKey = "field"
	AttrHTTPStatus AttributeKey = "http_status"
	AttrAssetURL   AttributeKey = "asset_url"
	AttrWritePath  AttributeKey = "write_path"
	AttrMessage    AttributeKey = "message"
)
