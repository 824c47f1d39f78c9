package resilience

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	errx "github.com/Chative-core-poc-v1/orchestrator/internal/core/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func newTestExecutor(settings BreakerSettings) (*Executor, *fakeClock, *recordingSleeper) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	sleeper := &recordingSleeper{}
	ex := NewExecutor(settings, WithClock(clock.Now), WithSleeper(sleeper.Sleep))
	return ex, clock, sleeper
}

var fastPolicy = RetryPolicy{
	MaxAttempts:   4,
	BaseDelay:     10 * time.Millisecond,
	MaxDelay:      100 * time.Millisecond,
	BackoffFactor: 2,
}

func retryable() error    { return errx.New(errors.New("unavailable"), http.StatusServiceUnavailable, "upstream") }
func nonRetryable() error { return errx.New(errors.New("bad key"), http.StatusUnauthorized, "upstream") }

func TestExecuteRetryExhaustion(t *testing.T) {
	ex, _, sleeper := newTestExecutor(BreakerSettings{FailureThreshold: 100, ResetTimeout: time.Minute})

	var calls int
	want := retryable()
	_, err := Execute(context.Background(), ex, "inference:chat", CategoryInference, fastPolicy, func(ctx context.Context) (string, error) {
		calls++
		return "", want
	})

	require.Error(t, err)
	assert.Same(t, want, err)
	assert.Equal(t, fastPolicy.MaxAttempts, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}, sleeper.delays)
}

func TestExecuteNonRetryableShortCircuit(t *testing.T) {
	ex, _, sleeper := newTestExecutor(DefaultBreakerSettings)

	var calls int
	_, err := Execute(context.Background(), ex, "inference:chat", CategoryInference, fastPolicy, func(ctx context.Context) (int, error) {
		calls++
		return 0, nonRetryable()
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.delays)
}

func TestExecuteSucceedsAfterRetry(t *testing.T) {
	ex, _, _ := newTestExecutor(DefaultBreakerSettings)

	var calls int
	got, err := Execute(context.Background(), ex, "search", CategoryAuxiliaryHTTP, fastPolicy, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", retryable()
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	state := ex.State("search")
	assert.Equal(t, PhaseClosed, state.Phase)
	assert.Zero(t, state.FailureCount)
}

func TestExecuteHonoursRetryAfter(t *testing.T) {
	ex, _, sleeper := newTestExecutor(DefaultBreakerSettings)

	policy := fastPolicy
	policy.MaxAttempts = 2
	policy.Jitter = true

	rateLimited := errx.New(errors.New("slow down"), http.StatusTooManyRequests, "upstream")
	rateLimited.Header = http.Header{"Retry-After": []string{"5"}}

	var calls int
	_, err := Execute(context.Background(), ex, "inference:chat", CategoryInference, policy, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", rateLimited
		}
		return "done", nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{5000 * time.Millisecond}, sleeper.delays)
}

func TestCircuitBreakerOpens(t *testing.T) {
	ex, _, _ := newTestExecutor(BreakerSettings{FailureThreshold: 3, ResetTimeout: 30 * time.Second})
	policy := RetryPolicy{MaxAttempts: 1, BackoffFactor: 1}

	fail := func(ctx context.Context) (string, error) { return "", retryable() }
	for i := 0; i < 3; i++ {
		_, err := Execute(context.Background(), ex, "image:generate", CategoryInference, policy, fail)
		require.Error(t, err)
	}
	assert.Equal(t, PhaseOpen, ex.State("image:generate").Phase)

	var invoked bool
	_, err := Execute(context.Background(), ex, "image:generate", CategoryInference, policy, func(ctx context.Context) (string, error) {
		invoked = true
		return "", nil
	})
	assert.False(t, invoked)
	assert.ErrorIs(t, err, errx.ErrCircuitOpen)

	// Other keys are unaffected.
	got, err := Execute(context.Background(), ex, "inference:chat", CategoryInference, policy, func(ctx context.Context) (string, error) {
		return "fine", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fine", got)
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	ex, clock, _ := newTestExecutor(BreakerSettings{FailureThreshold: 2, ResetTimeout: 30 * time.Second})
	policy := RetryPolicy{MaxAttempts: 1, BackoffFactor: 1}
	fail := func(ctx context.Context) (string, error) { return "", retryable() }

	for i := 0; i < 2; i++ {
		_, _ = Execute(context.Background(), ex, "k", CategoryInternal, policy, fail)
	}
	require.Equal(t, PhaseOpen, ex.State("k").Phase)

	clock.Advance(29 * time.Second)
	_, err := Execute(context.Background(), ex, "k", CategoryInternal, policy, fail)
	assert.ErrorIs(t, err, errx.ErrCircuitOpen)

	// Probe fails: back to open with a fresh timestamp.
	clock.Advance(time.Second)
	var probes int
	_, err = Execute(context.Background(), ex, "k", CategoryInternal, policy, func(ctx context.Context) (string, error) {
		probes++
		return "", retryable()
	})
	require.Error(t, err)
	assert.Equal(t, 1, probes)
	state := ex.State("k")
	assert.Equal(t, PhaseOpen, state.Phase)
	assert.Equal(t, clock.Now(), state.LastFailureAt)

	// Probe succeeds: closed with a zero failure count.
	clock.Advance(30 * time.Second)
	got, err := Execute(context.Background(), ex, "k", CategoryInternal, policy, func(ctx context.Context) (string, error) {
		probes++
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, 2, probes)
	state = ex.State("k")
	assert.Equal(t, PhaseClosed, state.Phase)
	assert.Zero(t, state.FailureCount)
}

func TestHalfOpenAdmitsSingleProbe(t *testing.T) {
	ex, clock, _ := newTestExecutor(BreakerSettings{FailureThreshold: 1, ResetTimeout: time.Second})
	policy := RetryPolicy{MaxAttempts: 1, BackoffFactor: 1}

	_, _ = Execute(context.Background(), ex, "k", CategoryInternal, policy, func(ctx context.Context) (int, error) {
		return 0, retryable()
	})
	clock.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	var probeErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, probeErr = Execute(context.Background(), ex, "k", CategoryInternal, policy, func(ctx context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
	}()
	<-started

	var second atomic.Bool
	_, err := Execute(context.Background(), ex, "k", CategoryInternal, policy, func(ctx context.Context) (int, error) {
		second.Store(true)
		return 2, nil
	})
	assert.ErrorIs(t, err, errx.ErrCircuitOpen)
	assert.False(t, second.Load())

	close(release)
	wg.Wait()
	require.NoError(t, probeErr)
	assert.Equal(t, PhaseClosed, ex.State("k").Phase)
}

func TestExecuteAttemptTimeout(t *testing.T) {
	ex, _, sleeper := newTestExecutor(DefaultBreakerSettings)
	policy := RetryPolicy{MaxAttempts: 2, BackoffFactor: 1, TimeoutPerAttempt: 20 * time.Millisecond}

	var calls atomic.Int32
	_, err := Execute(context.Background(), ex, "slow", CategoryAuxiliaryHTTP, policy, func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-ctx.Done()
		return "", ctx.Err()
	})

	var timeoutErr *AttemptTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, sleeper.delays, 1)
	assert.Equal(t, KindTimeout, Classify(err, CategoryAuxiliaryHTTP).Kind)
}

func TestExecuteRecoversPanickingOperation(t *testing.T) {
	for name, timeout := range map[string]time.Duration{
		"inline":            0,
		"attempt goroutine": time.Second,
	} {
		t.Run(name, func(t *testing.T) {
			ex, _, sleeper := newTestExecutor(DefaultBreakerSettings)
			policy := fastPolicy
			policy.TimeoutPerAttempt = timeout

			var calls atomic.Int32
			_, err := Execute(context.Background(), ex, "panicky", CategoryInference, policy, func(context.Context) (string, error) {
				calls.Add(1)
				var m map[string]int
				m["x"]++
				return "never", nil
			})

			var panicErr *PanicError
			require.ErrorAs(t, err, &panicErr)
			assert.Contains(t, err.Error(), "dependency panicked")
			assert.Equal(t, int32(1), calls.Load(), "a panic is not retried")
			assert.Empty(t, sleeper.delays)
			assert.Equal(t, uint(1), ex.State("panicky").FailureCount)
		})
	}
}

func TestExecuteStopsOnCallerCancel(t *testing.T) {
	ex, _, _ := newTestExecutor(BreakerSettings{FailureThreshold: 1, ResetTimeout: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())

	_, err := Execute(ctx, ex, "k", CategoryInternal, fastPolicy, func(ctx context.Context) (int, error) {
		cancel()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, PhaseClosed, ex.State("k").Phase)
}

func TestExecuteRejectsInvalidPolicy(t *testing.T) {
	ex, _, _ := newTestExecutor(DefaultBreakerSettings)
	_, err := Execute(context.Background(), ex, "k", CategoryInternal, RetryPolicy{}, func(ctx context.Context) (int, error) {
		t.Fatal("operation must not run")
		return 0, nil
	})
	assert.Error(t, err)
}

func TestResetClosesBreaker(t *testing.T) {
	ex, _, _ := newTestExecutor(BreakerSettings{FailureThreshold: 1, ResetTimeout: time.Hour})
	_, _ = Execute(context.Background(), ex, "k", CategoryInternal, RetryPolicy{MaxAttempts: 1, BackoffFactor: 1}, func(ctx context.Context) (int, error) {
		return 0, retryable()
	})
	require.Equal(t, PhaseOpen, ex.State("k").Phase)
	ex.Reset("k")
	assert.Equal(t, PhaseClosed, ex.State("k").Phase)
}
