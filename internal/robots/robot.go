package robots

import (
	"context"
	"sync"
	"time"

	"github.com/nrahal/wgor/internal/metadata"
	"github.com/nrahal/wgor/internal/robots/cache"
	"github.com/nrahal/wgor/internal/xurl"
)

/*
CachedRobot

Responsibilities:
  - Guarantee that, for any (host, port) pair seen during a crawl, the
    robots.txt spec for that pair is fetched and parsed at most once.
  - On fetch failure, install an empty dummy spec so every subsequent
    lookup for the same (host, port) is answered from memory instead of
    retried against the network.
  - Evaluate a candidate URL's path against the cached spec using
    longest-matching-rule precedence, the de facto robots.txt semantics
    (ties and the absence of any matching rule both resolve to allow).

This type owns no queue or seen-set state; it is a pure (host,port) →
decision memoization layer the admission filter's robots rule consults.
*/
type CachedRobot struct {
	mu        sync.Mutex
	fetcher   *RobotsFetcher
	userAgent string
	specs     map[string]hostSpec
}

// NewCachedRobot builds a CachedRobot backed by fetcher, memoizing parsed
// specs in-process. fetcher may share its own cache.Cache with other
// CachedRobot instances across a process; the in-memory specs map here is
// the per-crawl (host,port)-at-most-once guarantee layered on top of it.
func NewCachedRobot(metadataSink metadata.MetadataSink, userAgent string, httpCache cache.Cache) *CachedRobot {
	return &CachedRobot{
		fetcher:   NewRobotsFetcher(metadataSink, userAgent, httpCache),
		userAgent: userAgent,
		specs:     make(map[string]hostSpec),
	}
}

func specKey(host, port string) string {
	return host + ":" + port
}

// Decide reports whether u may be fetched under the spec cached (or newly
// fetched) for u's (host, port). The second return is non-nil only when a
// fetch was attempted and failed in a way the caller should classify for
// its own error bookkeeping; Decide itself always still returns a usable
// Decision in that case, derived from the installed dummy spec.
func (r *CachedRobot) Decide(ctx context.Context, u xurl.URL) (Decision, *RobotsError) {
	host, port := u.HostPort()
	key := specKey(host, port)

	spec, fetchErr := r.specFor(ctx, key, host, port, u.Scheme())

	decision := evaluate(spec, u)
	return decision, fetchErr
}

// specFor returns the cached hostSpec for key, fetching and installing it
// (or an empty dummy spec on failure) the first time key is seen.
func (r *CachedRobot) specFor(ctx context.Context, key, host, port string, scheme xurl.Scheme) (hostSpec, *RobotsError) {
	r.mu.Lock()
	if spec, ok := r.specs[key]; ok {
		r.mu.Unlock()
		return spec, nil
	}
	r.mu.Unlock()

	scheme0 := "http"
	if scheme == xurl.SchemeHTTPS || scheme == xurl.SchemeFTPS {
		scheme0 = "https"
	}

	hostport := host
	if port != "" && port != "80" && port != "443" {
		hostport = host + ":" + port
	}

	result, err := r.fetcher.Fetch(ctx, scheme0, hostport)

	var spec hostSpec
	if err != nil {
		// Fetch failed: install an empty dummy spec (permits everything)
		// so this (host, port) is never retried this crawl.
		spec = hostSpec{host: host, agent: r.userAgent, fetchedAt: time.Now()}
	} else {
		spec = specForAgent(result.File, r.userAgent, result.FetchedAt)
	}

	r.mu.Lock()
	if existing, ok := r.specs[key]; ok {
		// Another goroutine lost the fetch race; keep whichever won first.
		r.mu.Unlock()
		return existing, err
	}
	r.specs[key] = spec
	r.mu.Unlock()

	return spec, err
}

// evaluate applies longest-matching-path-rule precedence: the Allow or
// Disallow rule whose prefix most specifically matches u's path wins; a
// tie favors Allow; no matching rule, no matched group, or no groups at
// all all resolve to allowed.
func evaluate(spec hostSpec, u xurl.URL) Decision {
	path := u.Path()
	if path == "" {
		path = "/"
	}

	if !spec.hasGroups {
		return Decision{Path: path, Allowed: true, Reason: EmptyRuleSet, CrawlDelay: spec.crawlDelay}
	}
	if !spec.agentMatched {
		return Decision{Path: path, Allowed: true, Reason: UserAgentNotMatched, CrawlDelay: spec.crawlDelay}
	}

	bestAllow := longestMatch(spec.allow, path)
	bestDisallow := longestMatch(spec.disallow, path)

	if bestDisallow < 0 || bestAllow >= bestDisallow {
		return Decision{Path: path, Allowed: true, Reason: AllowedByRobots, CrawlDelay: spec.crawlDelay}
	}
	return Decision{Path: path, Allowed: false, Reason: DisallowedByRobots, CrawlDelay: spec.crawlDelay}
}

// longestMatch returns the length of the longest rule prefix matching
// path, or -1 if no rule matches.
func longestMatch(rules []string, path string) int {
	best := -1
	for _, prefix := range rules {
		if prefix == "" {
			continue
		}
		if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
			if len(prefix) > best {
				best = len(prefix)
			}
		}
	}
	return best
}
