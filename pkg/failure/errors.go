// Package failure carries the error-severity contract shared by every
// fetch, store, and robots error: the crawl loop keys its stop/continue
// decision on Severity, never on concrete error types.
package failure

type Severity int

const (
	// SeverityFatal errors stop the crawl.
	SeverityFatal Severity = iota

	// SeverityRecoverable errors cost at most the current item.
	SeverityRecoverable
)

// ClassifiedError is an error that knows whether the crawl can survive it.
type ClassifiedError interface {
	error
	Severity() Severity
}
