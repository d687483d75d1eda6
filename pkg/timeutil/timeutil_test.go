package timeutil_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/nrahal/wgor/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxDuration(t *testing.T) {
	cases := []struct {
		name string
		in   []time.Duration
		want time.Duration
	}{
		{"empty", nil, 0},
		{"single", []time.Duration{3 * time.Second}, 3 * time.Second},
		{"max first", []time.Duration{5 * time.Second, time.Second}, 5 * time.Second},
		{"max last", []time.Duration{time.Second, 2 * time.Second, 9 * time.Second}, 9 * time.Second},
		{"all zero", []time.Duration{0, 0}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, timeutil.MaxDuration(tc.in))
		})
	}
}

func TestComputeJitter(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	assert.Equal(t, time.Duration(0), timeutil.ComputeJitter(0, *rng))
	assert.Equal(t, time.Duration(0), timeutil.ComputeJitter(-time.Second, *rng))

	for i := 0; i < 100; i++ {
		j := timeutil.ComputeJitter(time.Second, *rng)
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.Less(t, j, time.Second)
	}
}

func TestExponentialBackoffDelay_Curve(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	param := timeutil.NewBackoffParam(time.Second, 2.0, 30*time.Second)

	// No jitter: the curve is exact.
	assert.Equal(t, time.Second, timeutil.ExponentialBackoffDelay(1, 0, *rng, param))
	assert.Equal(t, 2*time.Second, timeutil.ExponentialBackoffDelay(2, 0, *rng, param))
	assert.Equal(t, 4*time.Second, timeutil.ExponentialBackoffDelay(3, 0, *rng, param))
	assert.Equal(t, 16*time.Second, timeutil.ExponentialBackoffDelay(5, 0, *rng, param))
}

func TestExponentialBackoffDelay_Cap(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	param := timeutil.NewBackoffParam(time.Second, 2.0, 30*time.Second)

	assert.Equal(t, 30*time.Second, timeutil.ExponentialBackoffDelay(10, 0, *rng, param))
	assert.Equal(t, 30*time.Second, timeutil.ExponentialBackoffDelay(50, 0, *rng, param))
}

func TestExponentialBackoffDelay_CountBelowOneIsFirstStep(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	param := timeutil.NewBackoffParam(time.Second, 2.0, 30*time.Second)

	assert.Equal(t, time.Second, timeutil.ExponentialBackoffDelay(0, 0, *rng, param))
	assert.Equal(t, time.Second, timeutil.ExponentialBackoffDelay(-3, 0, *rng, param))
}

func TestExponentialBackoffDelay_JitterBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	param := timeutil.NewBackoffParam(time.Second, 2.0, 30*time.Second)

	for i := 0; i < 50; i++ {
		d := timeutil.ExponentialBackoffDelay(2, 500*time.Millisecond, *rng, param)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.Less(t, d, 2*time.Second+500*time.Millisecond)
	}
}

func TestBackoffParamAccessors(t *testing.T) {
	param := timeutil.NewBackoffParam(2*time.Second, 3.0, time.Minute)

	assert.Equal(t, 2*time.Second, param.InitialDuration())
	assert.Equal(t, 3.0, param.Multiplier())
	assert.Equal(t, time.Minute, param.MaxDuration())
}

func TestDurationPtr(t *testing.T) {
	p := timeutil.DurationPtr(4 * time.Second)
	require.NotNil(t, p)
	assert.Equal(t, 4*time.Second, *p)
}

func TestRealSleeper_SleepsRoughlyTheRequestedDuration(t *testing.T) {
	s := timeutil.NewRealSleeper()

	begin := time.Now()
	s.Sleep(20 * time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(begin), 20*time.Millisecond)

	// Non-positive durations return immediately.
	begin = time.Now()
	s.Sleep(-time.Second)
	assert.Less(t, time.Since(begin), 10*time.Millisecond)
}
