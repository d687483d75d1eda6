package robots

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nrahal/wgor/internal/metadata"
	"github.com/nrahal/wgor/internal/robots/cache"
)

// robots.txt bodies beyond this size are truncated before parsing.
const maxRobotsBody = 500 * 1024

// RobotsFetcher retrieves and parses one host's robots.txt. It makes no
// allow/disallow decisions itself; CachedRobot layers the per-crawl
// memoization and evaluation on top.
type RobotsFetcher struct {
	httpClient   *http.Client
	userAgent    string
	cache        cache.Cache
	metadataSink metadata.MetadataSink
}

// SpecResult is one successful robots.txt retrieval: the parsed file
// plus the response metadata a cache entry needs.
type SpecResult struct {
	File        RobotsFile
	FetchedAt   time.Time
	Status      int
	ContentType string
}

// specDTO is SpecResult's serialized form for cache.Cache storage, which
// holds plain strings only.
type specDTO struct {
	File        RobotsFile `json:"file"`
	FetchedAt   time.Time  `json:"fetched_at"`
	Status      int        `json:"status"`
	ContentType string     `json:"content_type"`
}

// NewRobotsFetcher builds a fetcher with its own 30s-timeout client.
// httpCache may be nil, in which case every Fetch goes to the network.
func NewRobotsFetcher(metadataSink metadata.MetadataSink, userAgent string, httpCache cache.Cache) *RobotsFetcher {
	return NewRobotsFetcherWithClient(metadataSink, userAgent, &http.Client{Timeout: 30 * time.Second}, httpCache)
}

// NewRobotsFetcherWithClient builds a fetcher around an existing client.
func NewRobotsFetcherWithClient(metadataSink metadata.MetadataSink, userAgent string, httpClient *http.Client, httpCache cache.Cache) *RobotsFetcher {
	return &RobotsFetcher{
		httpClient:   httpClient,
		userAgent:    userAgent,
		cache:        httpCache,
		metadataSink: metadataSink,
	}
}

func robotsURL(scheme, hostport string) string {
	return fmt.Sprintf("%s://%s/robots.txt", scheme, hostport)
}

// Fetch retrieves scheme://hostport/robots.txt, answering from the cache
// when possible. hostport carries an explicit :port only when non-default.
//
// Status handling: 2xx parses the body; 4xx (except 429) means the host
// publishes no robots.txt and yields an empty, unrestricted file; 429,
// 5xx, and transport failures are errors the caller turns into a dummy
// spec.
func (f *RobotsFetcher) Fetch(ctx context.Context, scheme, hostport string) (SpecResult, *RobotsError) {
	target := robotsURL(scheme, hostport)

	if f.cache != nil {
		if raw, ok := f.cache.Get(target); ok {
			var dto specDTO
			if err := json.Unmarshal([]byte(raw), &dto); err == nil {
				return SpecResult(dto), nil
			}
			// Undecodable cache entry: fall through to a live fetch.
		}
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return SpecResult{}, f.fail(target, ErrCauseBadRequest, false, "building robots.txt request: %v", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/plain,*/*")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return SpecResult{}, f.fail(target, ErrCauseFetchFailure, true, "fetching %s: %v", target, err)
	}
	defer resp.Body.Close()

	var result SpecResult

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, rerr := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBody+1))
		if rerr != nil {
			return SpecResult{}, f.fail(target, ErrCauseBodyRead, true, "reading %s body: %v", target, rerr)
		}
		if len(body) > maxRobotsBody {
			body = body[:maxRobotsBody]
		}
		result = SpecResult{
			File:        ParseRobotsTxt(string(body), hostport),
			FetchedAt:   time.Now(),
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		return SpecResult{}, f.fail(target, ErrCauseRateLimited, true, "rate limited fetching %s", target)

	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		// The client follows redirects itself; landing here means a loop
		// or an exhausted chain.
		return SpecResult{}, f.fail(target, ErrCauseRedirectLoop, true, "redirect loop fetching %s", target)

	case resp.StatusCode < 500:
		// No robots.txt published: nothing is restricted.
		result = SpecResult{
			File:        RobotsFile{Host: hostport},
			FetchedAt:   start,
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
		}

	default:
		return SpecResult{}, f.fail(target, ErrCauseServerError, true, "server error %d fetching %s", resp.StatusCode, target)
	}

	if f.metadataSink != nil {
		f.metadataSink.RecordAssetFetch(target, result.Status, time.Since(start), 0)
	}

	if f.cache != nil {
		if raw, merr := json.Marshal(specDTO(result)); merr == nil {
			f.cache.Put(target, string(raw))
		}
	}

	return result, nil
}

func (f *RobotsFetcher) fail(target string, cause RobotsErrorCause, retryable bool, format string, args ...any) *RobotsError {
	rerr := &RobotsError{
		Message:   fmt.Sprintf(format, args...),
		Retryable: retryable,
		Cause:     cause,
	}
	if f.metadataSink != nil {
		f.metadataSink.RecordError(time.Now(), "robots", "Fetch", mapRobotsErrorToMetadataCause(rerr), rerr.Error(),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, target)})
	}
	return rerr
}
