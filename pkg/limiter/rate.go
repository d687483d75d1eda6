// Package limiter paces the crawl per host: a base delay with jitter,
// per-host Crawl-delay overrides from robots.txt, and exponential
// backoff when a host starts answering 429/5xx.
package limiter

import (
	"math/rand"
	"sync"
	"time"

	"github.com/nrahal/wgor/pkg/timeutil"
)

// hostTiming is one host's politeness state: when it was last fetched,
// and the crawl-delay/backoff delays currently in force for it.
type hostTiming struct {
	lastFetchAt  time.Time
	backoffDelay time.Duration
	crawlDelay   time.Duration
	backoffCount int
}

func (h hostTiming) CrawlDelay() time.Duration   { return h.crawlDelay }
func (h hostTiming) BackOffDelay() time.Duration { return h.backoffDelay }
func (h hostTiming) LastFetchAt() time.Time      { return h.lastFetchAt }
func (h hostTiming) BackoffCount() int           { return h.backoffCount }

// RateLimiter is the politeness surface the crawl loop drives: mark a
// fetch, ask how long to wait before the next one, and feed robots
// Crawl-delay and 429/5xx outcomes back in.
type RateLimiter interface {
	SetBaseDelay(baseDelay time.Duration)
	SetJitter(jitter time.Duration)
	SetRandomSeed(randomSeed int64)
	SetCrawlDelay(host string, delay time.Duration)
	Backoff(host string)
	ResetBackoff(host string)
	MarkLastFetchAsNow(host string)
	SetRNG(rng interface{})
	ResolveDelay(host string) time.Duration
}

type ConcurrentRateLimiter struct {
	mu           sync.RWMutex
	rngMu        sync.Mutex
	baseDelay    time.Duration
	jitter       time.Duration
	hostTimings  map[string]hostTiming
	rng          *rand.Rand
	backoffParam timeutil.BackoffParam
}

func NewConcurrentRateLimiter() *ConcurrentRateLimiter {
	return &ConcurrentRateLimiter{
		hostTimings:  make(map[string]hostTiming),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		backoffParam: timeutil.NewBackoffParam(1*time.Second, 2.0, 30*time.Second),
	}
}

// mutateHost applies fn to host's timing entry under the write lock,
// creating the entry if the host has not been seen before.
func (r *ConcurrentRateLimiter) mutateHost(host string, fn func(*hostTiming)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timing := r.hostTimings[host]
	fn(&timing)
	r.hostTimings[host] = timing
}

func (r *ConcurrentRateLimiter) SetBaseDelay(baseDelay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.baseDelay = baseDelay
}

func (r *ConcurrentRateLimiter) SetJitter(jitter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jitter = jitter
}

func (r *ConcurrentRateLimiter) SetRandomSeed(randomSeed int64) {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	r.rng = rand.New(rand.NewSource(randomSeed))
}

// SetBackoffParam overrides the exponential backoff curve (initial
// delay, multiplier, cap) used by Backoff.
func (r *ConcurrentRateLimiter) SetBackoffParam(param timeutil.BackoffParam) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backoffParam = param
}

// SetCrawlDelay installs a per-host delay (robots.txt Crawl-delay),
// independent of the global base delay.
func (r *ConcurrentRateLimiter) SetCrawlDelay(host string, delay time.Duration) {
	r.mutateHost(host, func(t *hostTiming) {
		t.crawlDelay = delay
	})
}

// Backoff widens host's delay one exponential step. The stored
// backoffDelay has jitter baked in so it is immediately usable on its
// own.
func (r *ConcurrentRateLimiter) Backoff(host string) {
	r.mutateHost(host, func(t *hostTiming) {
		t.backoffCount++
		t.backoffDelay = r.backoffStepDelay(t.backoffCount)
	})
}

// ResetBackoff clears host's backoff state after a clean fetch. A host
// never seen before stays unregistered.
func (r *ConcurrentRateLimiter) ResetBackoff(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timing, seen := r.hostTimings[host]
	if !seen {
		return
	}
	timing.backoffCount = 0
	timing.backoffDelay = 0
	r.hostTimings[host] = timing
}

// MarkLastFetchAsNow stamps host's last-fetch time.
func (r *ConcurrentRateLimiter) MarkLastFetchAsNow(host string) {
	r.mutateHost(host, func(t *hostTiming) {
		t.lastFetchAt = time.Now()
	})
}

// backoffStepDelay computes the jittered exponential delay for the
// given backoff count. Caller must hold r.mu; r.rngMu is taken here.
func (r *ConcurrentRateLimiter) backoffStepDelay(backoffCount int) time.Duration {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()

	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	// rng's underlying source is shared through the pointer copied here,
	// so Int63n calls made while holding rngMu stay race-free even though
	// ExponentialBackoffDelay takes its rand.Rand argument by value.
	return timeutil.ExponentialBackoffDelay(backoffCount, r.jitter, *r.rng, r.backoffParam)
}

// computeJitter returns a pseudo-random duration in [0, max).
func (r *ConcurrentRateLimiter) computeJitter(max time.Duration) time.Duration {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()

	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if max <= 0 {
		return 0
	}
	return time.Duration(r.rng.Int63n(int64(max)))
}

// SetRNG injects a custom random number generator, for deterministic
// tests. Values that are not a *rand.Rand are ignored.
func (r *ConcurrentRateLimiter) SetRNG(rng interface{}) {
	if randImpl, ok := rng.(*rand.Rand); ok {
		r.rngMu.Lock()
		r.rng = randImpl
		r.rngMu.Unlock()
	}
}

// ResolveDelay reports how much longer the caller must wait before
// fetching from host: max(baseDelay, crawlDelay, backoffDelay) minus
// the time already elapsed since host's last fetch. Jitter is added
// once: the stored backoffDelay already carries its own, so it is only
// added here when base/crawlDelay govern instead. An unregistered host
// needs no delay.
func (r *ConcurrentRateLimiter) ResolveDelay(host string) time.Duration {
	r.mu.RLock()
	timing, seen := r.hostTimings[host]
	base := r.baseDelay
	jitter := r.jitter
	r.mu.RUnlock()

	if !seen {
		return 0
	}

	politeDelay := timeutil.MaxDuration([]time.Duration{base, timing.crawlDelay})

	var finalDelay time.Duration
	if timing.backoffDelay > politeDelay {
		finalDelay = timing.backoffDelay
	} else {
		finalDelay = politeDelay + r.computeJitter(jitter)
	}

	elapsed := time.Since(timing.lastFetchAt)
	if elapsed < finalDelay {
		return finalDelay - elapsed
	}
	return 0
}

func (r *ConcurrentRateLimiter) BaseDelay() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.baseDelay
}

func (r *ConcurrentRateLimiter) Jitter() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jitter
}

func (r *ConcurrentRateLimiter) RNG() *rand.Rand {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return r.rng
}

// HostTimings returns a copy of the per-host state, for diagnostics and
// tests.
func (r *ConcurrentRateLimiter) HostTimings() map[string]hostTiming {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]hostTiming, len(r.hostTimings))
	for host, timing := range r.hostTimings {
		out[host] = timing
	}
	return out
}
