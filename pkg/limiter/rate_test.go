package limiter_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/nrahal/wgor/pkg/limiter"
	"github.com/nrahal/wgor/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter() *limiter.ConcurrentRateLimiter {
	r := limiter.NewConcurrentRateLimiter()
	r.SetRandomSeed(1)
	return r
}

func TestResolveDelay_UnknownHostHasNoDelay(t *testing.T) {
	r := newLimiter()
	r.SetBaseDelay(5 * time.Second)

	assert.Equal(t, time.Duration(0), r.ResolveDelay("never-seen.example"))
}

func TestResolveDelay_BaseDelayAfterFetch(t *testing.T) {
	r := newLimiter()
	r.SetBaseDelay(time.Hour)

	r.MarkLastFetchAsNow("h.example")
	delay := r.ResolveDelay("h.example")

	assert.Greater(t, delay, 59*time.Minute)
	assert.LessOrEqual(t, delay, time.Hour)
}

func TestResolveDelay_ElapsedTimeIsSubtracted(t *testing.T) {
	r := newLimiter()
	r.SetBaseDelay(50 * time.Millisecond)

	r.MarkLastFetchAsNow("h.example")
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, time.Duration(0), r.ResolveDelay("h.example"))
}

func TestResolveDelay_CrawlDelayOverridesSmallerBase(t *testing.T) {
	r := newLimiter()
	r.SetBaseDelay(time.Minute)
	r.SetCrawlDelay("slow.example", time.Hour)

	r.MarkLastFetchAsNow("slow.example")
	assert.Greater(t, r.ResolveDelay("slow.example"), 59*time.Minute)

	// The crawl-delay binds one host only.
	r.MarkLastFetchAsNow("fast.example")
	assert.LessOrEqual(t, r.ResolveDelay("fast.example"), time.Minute)
}

func TestResolveDelay_JitterAddedOnTopOfBase(t *testing.T) {
	r := newLimiter()
	r.SetBaseDelay(time.Hour)
	r.SetJitter(time.Minute)

	r.MarkLastFetchAsNow("h.example")
	delay := r.ResolveDelay("h.example")

	assert.Greater(t, delay, 59*time.Minute)
	assert.Less(t, delay, time.Hour+time.Minute)
}

func TestBackoff_GrowsAndWinsOverBase(t *testing.T) {
	r := newLimiter()
	r.SetBaseDelay(time.Millisecond)
	r.SetBackoffParam(timeutil.NewBackoffParam(time.Hour, 2.0, 10*time.Hour))

	r.MarkLastFetchAsNow("h.example")
	r.Backoff("h.example")

	first := r.ResolveDelay("h.example")
	assert.Greater(t, first, 59*time.Minute)

	r.Backoff("h.example")
	timings := r.HostTimings()
	require.Contains(t, timings, "h.example")
	assert.Equal(t, 2, timings["h.example"].BackoffCount())
	assert.GreaterOrEqual(t, timings["h.example"].BackOffDelay(), 2*time.Hour)
}

func TestBackoff_FirstCallInitializesHost(t *testing.T) {
	r := newLimiter()
	r.SetBackoffParam(timeutil.NewBackoffParam(time.Second, 2.0, time.Minute))

	r.Backoff("fresh.example")

	timings := r.HostTimings()
	require.Contains(t, timings, "fresh.example")
	assert.Equal(t, 1, timings["fresh.example"].BackoffCount())
	assert.GreaterOrEqual(t, timings["fresh.example"].BackOffDelay(), time.Second)
}

func TestResetBackoff_ClearsState(t *testing.T) {
	r := newLimiter()
	r.SetBackoffParam(timeutil.NewBackoffParam(time.Hour, 2.0, 10*time.Hour))

	r.Backoff("h.example")
	r.ResetBackoff("h.example")

	timings := r.HostTimings()
	assert.Equal(t, 0, timings["h.example"].BackoffCount())
	assert.Equal(t, time.Duration(0), timings["h.example"].BackOffDelay())
}

func TestResetBackoff_UnknownHostIsANoOp(t *testing.T) {
	r := newLimiter()
	r.ResetBackoff("never-seen.example")
	assert.Empty(t, r.HostTimings())
}

func TestSetCrawlDelay_PreservesExistingTiming(t *testing.T) {
	r := newLimiter()

	r.MarkLastFetchAsNow("h.example")
	before := r.HostTimings()["h.example"].LastFetchAt()

	r.SetCrawlDelay("h.example", 3*time.Second)

	after := r.HostTimings()["h.example"]
	assert.Equal(t, before, after.LastFetchAt())
	assert.Equal(t, 3*time.Second, after.CrawlDelay())
}

func TestSetRNG_AcceptsCustomGenerator(t *testing.T) {
	r := newLimiter()
	custom := rand.New(rand.NewSource(99))

	r.SetRNG(custom)
	assert.Same(t, custom, r.RNG())

	// Non-*rand.Rand values are ignored.
	r.SetRNG("not an rng")
	assert.Same(t, custom, r.RNG())
}

func TestAccessors(t *testing.T) {
	r := newLimiter()
	r.SetBaseDelay(2 * time.Second)
	r.SetJitter(time.Second)

	assert.Equal(t, 2*time.Second, r.BaseDelay())
	assert.Equal(t, time.Second, r.Jitter())
}
