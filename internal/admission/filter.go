package admission

import (
	"context"
	"strings"
	"time"

	"github.com/nrahal/wgor/internal/config"
	"github.com/nrahal/wgor/internal/frontier"
	"github.com/nrahal/wgor/internal/robots"
	"github.com/nrahal/wgor/internal/xurl"
	"github.com/nrahal/wgor/pkg/fileutil"
)

// RobotsDecider is the subset of *robots.CachedRobot the filter needs.
// Narrowed to an interface so rule 11 can be exercised in tests without a
// real cache.Cache-backed fetcher.
type RobotsDecider interface {
	Decide(ctx context.Context, u xurl.URL) (robots.Decision, *robots.RobotsError)
}

// CrawlDelaySetter is the subset of limiter.RateLimiter the robots rule
// needs to wire a discovered Crawl-delay into the politeness layer.
type CrawlDelaySetter interface {
	SetCrawlDelay(host string, delay time.Duration)
}

// VisitedSink receives a "visited" observation when spider mode re-sees
// an already-known URL. Optional: a nil sink is a no-op.
type VisitedSink interface {
	Visited(url, referer string)
}

// Filter is the admission filter: the ordered, short-circuiting rule
// chain a discovered child passes through, and the redirect arbiter
// that re-runs the same chain against a post-redirect URL.
type Filter struct {
	cfg     config.Config
	seen    *frontier.SeenSet
	robot   RobotsDecider
	limiter CrawlDelaySetter
	visited VisitedSink
}

// NewFilter builds a Filter. limiter and visited may be nil; robot may be
// nil only if cfg.UseRobots() is false for the lifetime of the Filter.
func NewFilter(cfg config.Config, seen *frontier.SeenSet, robot RobotsDecider, limiter CrawlDelaySetter, visited VisitedSink) *Filter {
	return &Filter{cfg: cfg, seen: seen, robot: robot, limiter: limiter, visited: visited}
}

// Decide runs the eleven-rule admission chain against child, discovered
// on page parent at depth parentDepth, relative to start (the crawl's
// seed URL, used for no-parent/domain comparisons). Rule order is part
// of the contract: cheap string checks come first, the robots rule with
// its network side effect comes last.
func (f *Filter) Decide(ctx context.Context, child frontier.ChildRecord, parent xurl.URL, parentDepth int, start xurl.URL) RejectReason {
	// Rule 1: seen-set check.
	if f.seen.Contains(child.URL.String()) {
		if f.cfg.Spider() && f.visited != nil {
			f.visited.Visited(child.URL.String(), parent.String())
		}
		return Blacklist
	}

	// Rule 2: HTTPS-only.
	if f.cfg.HTTPSOnly() && child.URL.Scheme() != xurl.SchemeHTTPS {
		return NotHTTPS
	}

	// Rule 3: scheme class.
	scheme := child.URL.Scheme()
	if !scheme.IsHTTPLike() && !(scheme.IsFTPLike() && f.cfg.FollowFTP()) {
		return NonHTTP
	}

	// Rule 4: relative-only.
	if f.cfg.RelativeOnly() && scheme.IsHTTPLike() && !child.LinkRelative {
		return Absolute
	}

	// Rule 5: domain accept list.
	if domains := f.cfg.AcceptDomain(); len(domains) > 0 && !hostInDomainList(child.URL.Host(), domains) {
		return Domain
	}

	// Rule 6: no-parent.
	if f.violatesNoParent(child, parentDepth, start) {
		return Parent
	}

	// Rule 7: directory include/exclude lists.
	if f.violatesDirectoryLists(child.URL.Directory()) {
		return List
	}

	// Rule 8: URL regex accept.
	if re := f.cfg.AcceptURL(); re != nil && !re.MatchString(child.URL.String()) {
		return Regex
	}

	// Rule 9: suffix accept/reject rules, skipped for directory-like URLs
	// and for HTML that may still be descended through.
	if !child.URL.IsDirectoryLike() && !f.isNonLeafHTMLExempt(child, parentDepth) {
		if !f.acceptableSuffix(child.URL.File()) {
			return Rules
		}
	}

	// Rule 10: span-host.
	if scheme == parent.Scheme() && !f.cfg.SpanHost() && !parent.SameHost(child.URL) {
		return SpannedHost
	}

	// Rule 11: robots, with its (host,port)-at-most-once fetch side effect.
	if f.cfg.UseRobots() && scheme.IsHTTPLike() && f.robot != nil {
		decision, _ := f.robot.Decide(ctx, child.URL)
		if decision.CrawlDelay != nil && f.limiter != nil {
			host, _ := child.URL.HostPort()
			f.limiter.SetCrawlDelay(host, *decision.CrawlDelay)
		}
		if !decision.Allowed {
			f.seen.Add(child.URL.String())
			return Robots
		}
	}

	return Success
}

// DecideRedirect is the redirect arbiter: a fetch of original at depth
// originalDepth redirected to redirectTarget, so admission re-runs
// against redirectTarget with original as the parent. List and Regex
// rejections are forgiven because the server, not the page author,
// chose the destination.
func (f *Filter) DecideRedirect(ctx context.Context, original xurl.URL, originalDepth int, start xurl.URL, redirectTarget xurl.URL) RejectReason {
	synthetic := frontier.ChildRecord{URL: redirectTarget}
	reason := f.Decide(ctx, synthetic, original, originalDepth, start)

	switch reason {
	case Success, List, Regex:
		// Redirects override local inclusion rules because the
		// destination was externally asserted by the server, but the
		// target is still registered so it is never re-enqueued.
		f.seen.Add(redirectTarget.String())
		return Success
	default:
		return reason
	}
}

// violatesNoParent decides the PARENT rejection. It fires only when the
// child shares the start URL's scheme class and host, agrees on scheme
// or port, is not an inline requisite under --page-requisites, and its
// directory escapes the start directory.
func (f *Filter) violatesNoParent(child frontier.ChildRecord, parentDepth int, start xurl.URL) bool {
	if !f.cfg.NoParent() {
		return false
	}
	if schemeClass(child.URL.Scheme()) != schemeClass(start.Scheme()) {
		return false
	}
	if !start.SameHost(child.URL) {
		return false
	}
	if !(child.URL.Scheme() == start.Scheme() || child.URL.Port() == start.Port()) {
		return false
	}
	if f.cfg.PageRequisites() && child.LinkInline {
		return false
	}
	if start.DirectoryIsPrefixOf(child.URL) {
		return false
	}
	_ = parentDepth
	return true
}

// schemeClass groups schemes into HTTP-like / FTP-like / other for the
// no-parent comparison.
func schemeClass(s xurl.Scheme) int {
	switch {
	case s.IsHTTPLike():
		return 0
	case s.IsFTPLike():
		return 1
	default:
		return 2
	}
}

// violatesDirectoryLists decides the LIST rejection. An exclude match
// always rejects; when includes is non-empty, dir must match one of
// them.
func (f *Filter) violatesDirectoryLists(dir string) bool {
	for _, prefix := range f.cfg.Excludes() {
		if prefix != "" && strings.HasPrefix(dir, prefix) {
			return true
		}
	}
	includes := f.cfg.Includes()
	if len(includes) == 0 {
		return false
	}
	for _, prefix := range includes {
		if strings.HasPrefix(dir, prefix) {
			return false
		}
	}
	return true
}

// isNonLeafHTMLExempt exempts an HTML child from suffix rules when the
// crawl may still need to descend through it: recursion is infinite,
// the child sits above the depth boundary, or page-requisites is on.
// Rejecting such a page on suffix alone would cut off the links below
// it.
func (f *Filter) isNonLeafHTMLExempt(child frontier.ChildRecord, parentDepth int) bool {
	if !(child.LinkExpectHTML || isHTMLSuffix(child.URL.File())) {
		return false
	}
	if f.cfg.IsInfiniteRecursion() {
		return true
	}
	if parentDepth < f.cfg.Reclevel()-1 {
		return true
	}
	return f.cfg.PageRequisites()
}

func isHTMLSuffix(file string) bool {
	switch strings.ToLower(fileutil.GetFileExtension(file)) {
	case "html", "htm", "xhtml", "shtml":
		return true
	default:
		return false
	}
}

// acceptableSuffix applies the accept/reject suffix rules: a configured
// reject list always wins; otherwise an empty accept list admits
// everything, a non-empty one requires a match.
func (f *Filter) acceptableSuffix(file string) bool {
	ext := strings.ToLower(fileutil.GetFileExtension(file))

	for _, suffix := range f.cfg.RejectSuffix() {
		if strings.EqualFold(suffix, ext) {
			return false
		}
	}

	accept := f.cfg.AcceptSuffix()
	if len(accept) == 0 {
		return true
	}
	for _, suffix := range accept {
		if strings.EqualFold(suffix, ext) {
			return true
		}
	}
	return false
}

// Acceptable reports whether file passes the configured accept/reject
// suffix rules. The crawl loop's post-download cleanup also consults
// it: a file failing the suffix rules is deleted after its links are
// harvested.
func (f *Filter) Acceptable(file string) bool {
	return f.acceptableSuffix(file)
}

// hostInDomainList reports whether host matches one of domains exactly
// or as a subdomain.
func hostInDomainList(host string, domains []string) bool {
	host = strings.ToLower(host)
	for _, domain := range domains {
		domain = strings.ToLower(domain)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
