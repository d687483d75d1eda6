package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nrahal/wgor/internal/metadata"
	"github.com/nrahal/wgor/pkg/failure"
	"github.com/nrahal/wgor/pkg/retry"
)

/*
HTTPFetcher

Responsibilities

- Perform HTTP(S) requests with browser-like headers
- Apply per-request timeouts via context
- Detect redirects without following them: the crawl loop re-admits
  each redirect target itself, so it needs the target URL, not a
  transparently-followed response
- Classify successful responses as RETROKF/TEXTHTML/TEXTCSS

The fetcher never parses content; it only returns bytes and metadata.
*/

type HTTPFetcher struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client
}

// NewHTTPFetcher builds an HTTPFetcher with a client that stops at the
// first redirect response (http.ErrUseLastResponse) so the caller can
// run the redirect target through admission before anything is fetched
// a second time.
func NewHTTPFetcher(metadataSink metadata.MetadataSink, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		metadataSink: metadataSink,
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (h *HTTPFetcher) Fetch(
	ctx context.Context,
	crawlDepth int,
	fetchParam FetchParam,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	callerMethod := "HTTPFetcher.Fetch"
	startTime := time.Now()

	result, err := h.fetchWithRetry(ctx, fetchParam.fetchUrl, fetchParam.userAgent, retryParam)

	duration := time.Since(startTime)

	var statusCode int
	var contentType string
	var retryCount int

	if err != nil {
		var retryErr *retry.RetryError
		if errors.As(err, &retryErr) {
			retryCount = retryParam.MaxAttempts
		}
	} else {
		statusCode = result.Code()
		contentType = h.extractContentType(result.Headers())
	}

	h.metadataSink.RecordFetch(
		fetchParam.fetchUrl,
		statusCode,
		duration,
		contentType,
		retryCount,
		crawlDepth,
	)

	if err != nil {
		var retryErr *retry.RetryError
		if errors.As(err, &retryErr) {
			h.recordRetryError(callerMethod, fetchParam.fetchUrl, err)
		} else {
			h.recordFetchError(callerMethod, fetchParam.fetchUrl, err)
		}
		return FetchResult{}, err
	}

	return result, nil
}

func (h *HTTPFetcher) extractContentType(headers map[string]string) string {
	return headers["Content-Type"]
}

func (h *HTTPFetcher) recordFetchError(callerMethod string, fetchUrl string, err failure.ClassifiedError) {
	var fetchError *FetchError
	if errors.As(err, &fetchError) {
		h.metadataSink.RecordError(
			time.Now(),
			"fetcher",
			callerMethod,
			mapFetchErrorToMetadataCause(fetchError),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, fetchUrl),
			},
		)
	}
}

func (h *HTTPFetcher) recordRetryError(callerMethod string, fetchUrl string, err failure.ClassifiedError) {
	var retryError *retry.RetryError
	if errors.As(err, &retryError) {
		h.metadataSink.RecordError(
			time.Now(),
			"fetcher",
			callerMethod,
			metadata.CauseRetryFailure,
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrMessage, retryError.Error()),
				metadata.NewAttr(metadata.AttrURL, fetchUrl),
			},
		)
	}
}

func (h *HTTPFetcher) fetchWithRetry(ctx context.Context, fetchUrl string, userAgent string, retryParam retry.RetryParam) (FetchResult, failure.ClassifiedError) {
	fetchTask := func() (FetchResult, failure.ClassifiedError) {
		return h.performFetch(ctx, fetchUrl, userAgent)
	}

	result := retry.Retry(retryParam, fetchTask)
	if result.IsFailure() {
		return FetchResult{}, result.Err()
	}
	return result.Value(), nil
}

func (h *HTTPFetcher) performFetch(ctx context.Context, fetchUrl string, userAgent string) (FetchResult, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchUrl, nil)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}

	for key, value := range requestHeaders(userAgent) {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return h.buildRedirectResult(fetchUrl, resp)
	}

	switch {
	case resp.StatusCode >= 500:
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("server error: %d", resp.StatusCode),
			Retryable: true,
			Cause:     ErrCauseRequest5xx,
		}
	case resp.StatusCode == 429:
		return FetchResult{}, &FetchError{
			Message:   "rate limited (429)",
			Retryable: true,
			Cause:     ErrCauseRequestTooMany,
		}
	case resp.StatusCode == 403:
		return FetchResult{}, &FetchError{
			Message:   "access forbidden (403)",
			Retryable: false,
			Cause:     ErrCauseRequestPageForbidden,
		}
	case resp.StatusCode >= 400:
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("client error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRequestPageForbidden,
		}
	}

	bodyReader, err := decodedBodyReader(resp)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to decode response body: %v", err),
			Retryable: false,
			Cause:     ErrCauseReadResponseBodyError,
		}
	}

	body, err := io.ReadAll(bodyReader)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to read response body: %v", err),
			Retryable: true,
			Cause:     ErrCauseReadResponseBodyError,
		}
	}

	responseHeaders := make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			responseHeaders[key] = values[0]
		}
	}

	contentType := resp.Header.Get("Content-Type")
	result := FetchResult{
		url:      fetchUrl,
		body:     body,
		status:   StatusOK,
		dataType: classifyContentType(contentType),
		meta: ResponseMeta{
			statusCode:      resp.StatusCode,
			responseHeaders: responseHeaders,
		},
	}

	return result, nil
}

// buildRedirectResult resolves the Location header against fetchUrl and
// returns a FetchResult the caller (the crawl loop, via the redirect
// arbiter) treats as a request to re-run admission for the target
// instead of descending into a body.
func (h *HTTPFetcher) buildRedirectResult(fetchUrl string, resp *http.Response) (FetchResult, failure.ClassifiedError) {
	location := resp.Header.Get("Location")
	if location == "" {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("redirect response %d without Location", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRedirectLimitExceeded,
		}
	}

	base, err := url.Parse(fetchUrl)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("invalid source URL: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	ref, err := url.Parse(location)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("invalid redirect location: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}

	target := base.ResolveReference(ref)

	return FetchResult{
		url:          fetchUrl,
		redirectedTo: target.String(),
		status:       StatusRedirected,
		meta:         ResponseMeta{statusCode: resp.StatusCode},
	}, nil
}

// classifyContentType derives the DataType bitmask from a response's
// Content-Type header.
func classifyContentType(contentType string) DataType {
	lower := strings.ToLower(contentType)
	dataType := RETROKF
	switch {
	case strings.Contains(lower, "text/html"), strings.Contains(lower, "application/xhtml"):
		dataType |= TEXTHTML
	case strings.Contains(lower, "text/css"):
		dataType |= TEXTCSS
	}
	return dataType
}

func requestHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		// Only advertise encodings decodedBodyReader can actually decode;
		// net/http disables its own transparent gzip handling once the
		// caller sets Accept-Encoding explicitly (needed here to send
		// browser-like headers), so this fetcher owns decompression.
		"Accept-Encoding": "gzip, deflate",
		"DNT":             "1",
		"Connection":      "keep-alive",
	}
}

// decodedBodyReader wraps resp.Body with the decompressor matching its
// Content-Encoding, since setting Accept-Encoding above opts this fetcher
// out of Go's built-in transparent decompression.
func decodedBodyReader(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "deflate":
		return flate.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}
