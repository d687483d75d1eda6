// Package crawl drives the depth-bounded breadth-first retrieval loop:
// dequeue, fetch, extract links, walk each child through admission,
// enqueue the survivors, repeat until the frontier drains, the byte
// quota is exceeded, or a fatal write error surfaces.
package crawl

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/nrahal/wgor/internal/admission"
	"github.com/nrahal/wgor/internal/config"
	"github.com/nrahal/wgor/internal/fetcher"
	"github.com/nrahal/wgor/internal/frontier"
	"github.com/nrahal/wgor/internal/linkextract"
	"github.com/nrahal/wgor/internal/metadata"
	"github.com/nrahal/wgor/internal/rejectlog"
	"github.com/nrahal/wgor/internal/robots"
	"github.com/nrahal/wgor/internal/robots/cache"
	"github.com/nrahal/wgor/internal/store"
	"github.com/nrahal/wgor/internal/xurl"
	"github.com/nrahal/wgor/pkg/failure"
	"github.com/nrahal/wgor/pkg/hashutil"
	"github.com/nrahal/wgor/pkg/limiter"
	"github.com/nrahal/wgor/pkg/retry"
	"github.com/nrahal/wgor/pkg/timeutil"
	"github.com/nrahal/wgor/pkg/urlutil"
)

// visitRecord is one spider-mode "visited" observation.
type visitRecord struct {
	url     string
	referer string
}

// Crawler holds one crawl's state: the queue and seen-set it owns, plus
// the collaborators (fetcher, link extractors, robots cache, store,
// rejection log) whose lifetimes extend beyond a single crawl.
type Crawler struct {
	cfg          config.Config
	metadataSink metadata.MetadataSink

	queue  *frontier.Queue[frontier.WorkItem]
	seen   *frontier.SeenSet
	filter *admission.Filter

	dispatcher    *fetcher.Dispatcher
	htmlExtractor *linkextract.HTML
	cssExtractor  *linkextract.CSS
	rejectWriter  *rejectlog.Writer
	store         *store.Store
	robot         *robots.CachedRobot
	rateLimiter   limiter.RateLimiter
	sleeper       timeutil.Sleeper

	totalBytes int64
	fatalWrite bool

	visited []visitRecord
}

// NewCrawler wires every collaborator from a single config.Config into
// a Crawler ready to run Retrieve.
func NewCrawler(cfg config.Config, metadataSink metadata.MetadataSink) *Crawler {
	httpCache := cache.NewMemoryCache()
	robot := robots.NewCachedRobot(metadataSink, cfg.UserAgent(), httpCache)

	rateLimiter := limiter.NewConcurrentRateLimiter()
	rateLimiter.SetBaseDelay(cfg.BaseDelay())
	rateLimiter.SetJitter(cfg.Jitter())
	rateLimiter.SetRandomSeed(cfg.RandomSeed())

	httpFetcher := fetcher.NewHTTPFetcher(metadataSink, cfg.Timeout())
	ftpFetcher := fetcher.NewFTPFetcher(metadataSink, cfg.Timeout())

	c := &Crawler{
		cfg:           cfg,
		metadataSink:  metadataSink,
		queue:         frontier.NewQueue[frontier.WorkItem](),
		seen:          frontier.NewSeenSet(),
		dispatcher:    fetcher.NewDispatcher(httpFetcher, ftpFetcher),
		htmlExtractor: linkextract.NewHTML(metadataSink),
		cssExtractor:  linkextract.NewCSS(metadataSink),
		rejectWriter:  rejectlog.Open(metadataSink, cfg.RejectedLog()),
		store:         store.NewStore(metadataSink, cfg.OutputDir(), hashutil.HashAlgoBLAKE3),
		robot:         robot,
		rateLimiter:   rateLimiter,
		sleeper:       timeutil.NewRealSleeper(),
	}
	c.filter = admission.NewFilter(cfg, c.seen, robot, rateLimiter, c)
	return c
}

// Visited implements admission.VisitedSink: spider mode records every
// seen-set hit instead of silently short-circuiting.
func (c *Crawler) Visited(url, referer string) {
	c.visited = append(c.visited, visitRecord{url: url, referer: referer})
}

// VisitedURLs returns every spider-mode visited observation recorded so
// far, for diagnostics and tests.
func (c *Crawler) VisitedURLs() []string {
	out := make([]string, len(c.visited))
	for i, v := range c.visited {
		out[i] = v.url
	}
	return out
}

// DeletedPaths returns every local file Retrieve has unlinked during
// post-download cleanup, for diagnostics and tests.
func (c *Crawler) DeletedPaths() []string {
	return c.store.DeletedPaths()
}

// QueueMaxCount is the queue's high-watermark, for diagnostics and
// tests.
func (c *Crawler) QueueMaxCount() int {
	return c.queue.MaxCount()
}

// Retrieve runs the crawl: seed the queue and seen-set from the start
// URL, then loop dequeue/fetch/extract/admit until the queue drains,
// the byte quota is exceeded, or a fatal write error is observed. Every
// exit path closes the rejection log, drains the queue, and releases
// the seen-set.
func (c *Crawler) Retrieve(ctx context.Context) Result {
	start := firstSeedURL(c.cfg)

	c.queue.Enqueue(frontier.NewSeedItem(start))
	c.seen.Add(start.String())

	defer c.rejectWriter.Close()
	defer c.queue.Drain()
	defer c.seen.Release()

	result := OK

	for {
		if c.cfg.Quota() > 0 && c.totalBytes > c.cfg.Quota() {
			result = QuotaExceeded
			break
		}
		if c.fatalWrite {
			result = FatalWriteError
			break
		}

		item, ok := c.queue.Dequeue()
		if !ok {
			break
		}

		c.processItem(ctx, start, item)

		if c.fatalWrite {
			result = FatalWriteError
			break
		}
	}

	return result
}

// firstSeedURL canonicalizes the configured seed once so every later
// admission comparison against the start URL sees a consistent
// scheme/host/port. The seed's query and any trailing path slash are
// restored afterwards: canonicalization exists to normalize the
// comparison fields, not to redirect the crawl to a different resource
// (stripping a directory URL's trailing slash would also break the
// no-parent directory containment test).
func firstSeedURL(cfg config.Config) xurl.URL {
	seed := cfg.SeedURLs()[0]
	canonical := urlutil.Canonicalize(seed)
	canonical.RawQuery = seed.RawQuery
	canonical.ForceQuery = seed.ForceQuery
	if strings.HasSuffix(seed.Path, "/") && !strings.HasSuffix(canonical.Path, "/") {
		canonical.Path += "/"
	}
	return xurl.FromNetURL(&canonical)
}

// processItem handles one dequeued work item: fetch-or-reuse, classify
// descend eligibility, extract and walk children through admission,
// then clean up the local file.
func (c *Crawler) processItem(ctx context.Context, start xurl.URL, item frontier.WorkItem) {
	urlStr := item.URL.String()

	var body []byte
	var localPath string
	var isHTML, isCSS bool
	var wroteFresh bool
	resourceURL := item.URL

	if cachedPath, ok := c.store.Lookup(urlStr); ok {
		// Already downloaded this crawl: reuse the file without
		// refetching.
		localPath = cachedPath
		isHTML = c.store.IsHTML(urlStr) && item.HTMLAllowed
		isCSS = c.store.IsCSS(urlStr) && item.CSSAllowed
		if isHTML || isCSS {
			data, err := os.ReadFile(localPath)
			if err != nil {
				return
			}
			body = data
		}
	} else {
		result, finalURL, ok := c.fetchResource(ctx, start, item)
		if !ok {
			// Fetch failure or redirect rejection: the crawl continues,
			// this item just contributes no children.
			return
		}
		resourceURL = finalURL

		// Descend eligibility from the freshly fetched content. CSSAllowed
		// overrides the response's own typing, covering stylesheets served
		// as text/plain.
		isHTML = item.HTMLAllowed && result.IsHTML()
		isCSS = result.IsCSS() || item.CSSAllowed

		kind := store.KindBinary
		switch {
		case isHTML:
			kind = store.KindHTML
		case isCSS:
			kind = store.KindCSS
		}

		writeResult, werr := c.store.Write(urlStr, result.Body(), kind)
		if werr != nil {
			if isFatalStorageError(werr) {
				c.fatalWrite = true
			}
			return
		}

		localPath = writeResult.Path()
		body = result.Body()
		wroteFresh = true
		c.totalBytes += int64(result.SizeByte())
	}

	candidateDescend := isHTML || isCSS
	requisitesOnly := false
	if candidateDescend && !(c.cfg.IsInfiniteRecursion() || item.Depth < c.cfg.Reclevel()) {
		if c.cfg.PageRequisites() && (item.Depth == c.cfg.Reclevel() || item.Depth == c.cfg.Reclevel()+1) {
			requisitesOnly = true
		} else {
			candidateDescend = false
		}
	}

	if candidateDescend {
		c.extractAndEnqueue(ctx, start, item, resourceURL, body, isHTML, isCSS, requisitesOnly)
	}

	// Post-download cleanup.
	if wroteFresh && localPath != "" {
		if c.cfg.DeleteAfter() || c.cfg.Spider() || !c.filter.Acceptable(item.URL.File()) {
			c.store.Delete(localPath)
		}
	}
}

// fetchResource fetches one work item and, should the response
// redirect, follows admitted redirects up to maxRedirectHops, fetching
// each target only after admission passes so inadmissible cross-host
// content is never downloaded.
func (c *Crawler) fetchResource(ctx context.Context, start xurl.URL, item frontier.WorkItem) (fetcher.FetchResult, xurl.URL, bool) {
	current := item.URL
	parent := item.URL

	for hop := 0; hop < maxRedirectHops; hop++ {
		c.waitForHost(current.Host())

		fetchParam := fetcher.NewFetchParam(current.String(), c.cfg.UserAgent())
		result, err := c.dispatcher.Fetch(ctx, item.Depth, current.Scheme().IsFTPLike(), fetchParam, c.retryParam())

		c.rateLimiter.MarkLastFetchAsNow(current.Host())
		c.applyBackoffOutcome(current.Host(), err)

		if err != nil {
			return fetcher.FetchResult{}, current, false
		}
		if !result.IsRedirect() {
			return result, current, true
		}

		target, perr := xurl.Parse(result.RedirectedTo())
		if perr != nil {
			return fetcher.FetchResult{}, current, false
		}

		// The redirect arbiter is only consulted when this item was a
		// descend candidate. A plain page-requisite (image, script) with
		// both HTMLAllowed and CSSAllowed false carries no intent to
		// descend into it, so its redirect is simply followed rather than
		// re-admitted.
		if item.HTMLAllowed || item.CSSAllowed {
			reason := c.filter.DecideRedirect(ctx, current, item.Depth, start, target)
			if reason != admission.Success {
				c.rejectWriter.WriteRejection(reason, target, parent)
				return fetcher.FetchResult{}, current, false
			}
		}

		c.seen.Add(current.String())
		parent = current
		current = target
	}

	return fetcher.FetchResult{}, current, false
}

// applyBackoffOutcome feeds a fetch's outcome back into the rate
// limiter so repeated 429/5xx responses from a host widen its delay
// exponentially, and a clean fetch relaxes it again. Retry already
// exhausted its own attempts inside dispatcher.Fetch by the time err
// reaches here, so this is host-level backoff across separate work
// items, not a replacement for per-request retry.
func (c *Crawler) applyBackoffOutcome(host string, err failure.ClassifiedError) {
	if c.rateLimiter == nil {
		return
	}

	var fetchErr *fetcher.FetchError
	if err == nil {
		c.rateLimiter.ResetBackoff(host)
		return
	}
	if errors.As(err, &fetchErr) && (fetchErr.Cause == fetcher.ErrCauseRequestTooMany || fetchErr.Cause == fetcher.ErrCauseRequest5xx) {
		c.rateLimiter.Backoff(host)
	}
}

// waitForHost applies the rate limiter's resolved per-host delay before
// a fetch. There is exactly one fetch in flight at a time, so sleeping
// here paces the whole crawl.
func (c *Crawler) waitForHost(host string) {
	if c.rateLimiter == nil {
		return
	}
	delay := c.rateLimiter.ResolveDelay(host)
	if c.sleeper != nil {
		c.sleeper.Sleep(delay)
	}
}

// retryParam adapts this crawl's config into the shape pkg/retry.Retry
// expects.
func (c *Crawler) retryParam() retry.RetryParam {
	return retry.NewRetryParam(
		c.cfg.BaseDelay(),
		c.cfg.Jitter(),
		c.cfg.RandomSeed(),
		c.cfg.MaxAttempt(),
		timeutil.NewBackoffParam(
			c.cfg.BackoffInitialDuration(),
			c.cfg.BackoffMultiplier(),
			c.cfg.BackoffMaxDuration(),
		),
	)
}

// extractAndEnqueue runs the HTML or CSS extractor over body, honors a
// meta-nofollow directive when robots usage is enabled, then walks
// every discovered child through the admission filter and enqueues the
// survivors.
func (c *Crawler) extractAndEnqueue(ctx context.Context, start xurl.URL, item frontier.WorkItem, resourceURL xurl.URL, body []byte, isHTML, isCSS, requisitesOnly bool) {
	var children []frontier.ChildRecord

	if isHTML {
		extracted, metaNofollow, err := c.htmlExtractor.Extract(resourceURL, body)
		if err != nil {
			return
		}
		if metaNofollow && c.cfg.UseRobots() {
			return
		}
		children = extracted
	} else if isCSS {
		extracted, err := c.cssExtractor.Extract(resourceURL, body)
		if err != nil {
			return
		}
		children = extracted
	}

	referer := resourceURL.WithoutCredentials().String()

	for _, child := range children {
		if child.IgnoreWhenDownloading {
			continue
		}
		if requisitesOnly && !child.LinkInline {
			continue
		}

		reason := c.filter.Decide(ctx, child, resourceURL, item.Depth, start)
		if reason == admission.Success {
			c.queue.Enqueue(frontier.WorkItem{
				URL:         child.URL,
				Referer:     referer,
				Depth:       item.Depth + 1,
				HTMLAllowed: child.LinkExpectHTML,
				CSSAllowed:  child.LinkExpectCSS,
			})
			c.seen.Add(child.URL.String())
			continue
		}

		c.rejectWriter.WriteRejection(reason, child.URL, resourceURL)
	}
}

// isFatalStorageError reports whether a store write failure must stop
// the crawl (disk-full, or any other failure to write the retrieved
// bytes to local disk), as opposed to a pre-write failure (e.g. hash
// computation) that leaves the crawl free to continue without this
// item's content.
func isFatalStorageError(err *store.StorageError) bool {
	switch err.Cause {
	case store.ErrCauseDiskFull, store.ErrCauseWriteFailure, store.ErrCausePathError:
		return true
	default:
		return false
	}
}
