// Package fetcher performs the crawl's actual network I/O: HTTP(S) and
// FTP(S) retrieval, non-following redirect detection, content-type
// classification, and retry wrapping. It fetches and classifies; the
// crawl loop decides what each FetchResult means.
package fetcher

import (
	"context"

	"github.com/nrahal/wgor/pkg/failure"
	"github.com/nrahal/wgor/pkg/retry"
)

// Fetcher performs one classified fetch of a single URL, wrapped in the
// caller-supplied retry policy.
type Fetcher interface {
	Fetch(
		ctx context.Context,
		crawlDepth int,
		fetchParam FetchParam,
		retryParam retry.RetryParam,
	) (FetchResult, failure.ClassifiedError)
}

var (
	_ Fetcher = (*HTTPFetcher)(nil)
	_ Fetcher = (*FTPFetcher)(nil)
)

// Dispatcher routes a fetch to the HTTP(S) or FTP(S) fetcher by scheme
// so the crawl loop never needs to know which protocol family it is
// retrieving over.
type Dispatcher struct {
	http *HTTPFetcher
	ftp  *FTPFetcher
}

// NewDispatcher builds a Dispatcher backed by http and ftp.
func NewDispatcher(http *HTTPFetcher, ftp *FTPFetcher) *Dispatcher {
	return &Dispatcher{http: http, ftp: ftp}
}

// Fetch dispatches to the FTP fetcher when rawURL's scheme is ftp/ftps,
// the HTTP fetcher otherwise.
func (d *Dispatcher) Fetch(
	ctx context.Context,
	crawlDepth int,
	isFTP bool,
	fetchParam FetchParam,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	if isFTP {
		return d.ftp.Fetch(ctx, crawlDepth, fetchParam, retryParam)
	}
	return d.http.Fetch(ctx, crawlDepth, fetchParam, retryParam)
}
