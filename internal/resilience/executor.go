package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	errx "github.com/Chative-core-poc-v1/orchestrator/internal/core/error"
	"github.com/Chative-core-poc-v1/orchestrator/internal/metrics"
	logx "github.com/Chative-core-poc-v1/orchestrator/pkg/logger"
)

// AttemptTimeoutError is returned when an attempt outlives TimeoutPerAttempt.
// It unwraps to context.DeadlineExceeded so it classifies as a timeout.
type AttemptTimeoutError struct {
	Timeout time.Duration
}

func (e *AttemptTimeoutError) Error() string {
	return fmt.Sprintf("attempt timed out after %s", e.Timeout)
}

func (e *AttemptTimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Executor owns the circuit breakers for every dependency key. It is safe for
// concurrent use; only the breaker map is shared between turns.
type Executor struct {
	breakers *breakerSet
	now      func() time.Time
	sleep    Sleeper
	jitter   JitterFunc
}

type Option func(*Executor)

// WithClock replaces time.Now for breaker bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithSleeper replaces the inter-attempt wait.
func WithSleeper(s Sleeper) Option {
	return func(e *Executor) { e.sleep = s }
}

// WithJitter replaces the jitter sampler.
func WithJitter(j JitterFunc) Option {
	return func(e *Executor) { e.jitter = j }
}

func NewExecutor(settings BreakerSettings, opts ...Option) *Executor {
	e := &Executor{
		breakers: newBreakerSet(settings),
		now:      time.Now,
		sleep:    sleepContext,
		jitter:   UniformJitter,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns a snapshot of the breaker for key.
func (e *Executor) State(key string) BreakerState {
	return e.breakers.get(key).snapshot()
}

// Reset forces the breaker for key back to closed.
func (e *Executor) Reset(key string) {
	e.breakers.get(key).reset()
	metrics.CircuitState.WithLabelValues(key).Set(float64(PhaseClosed))
}

// Execute runs op under policy, retrying classified-retryable failures with
// backoff while the breaker for key admits calls. It returns the last error
// of op once attempts are exhausted or the failure is not retryable, and a
// *errx.CircuitOpenError when the breaker refuses the first attempt.
func Execute[T any](
	ctx context.Context,
	e *Executor,
	key string,
	category Category,
	policy RetryPolicy,
	op func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	if err := policy.Validate(); err != nil {
		return zero, err
	}

	b := e.breakers.get(key)
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if !b.allow(e.now()) {
			metrics.CircuitRejections.WithLabelValues(key).Inc()
			logx.Warn().Str("dependency", key).Int("attempt", attempt).Msg("circuit open; call rejected")
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, &errx.CircuitOpenError{Key: key}
		}

		start := time.Now()
		result, err := runAttempt(ctx, policy.TimeoutPerAttempt, op)
		metrics.DependencyLatency.WithLabelValues(key).Observe(time.Since(start).Seconds())

		if err == nil {
			phase := b.onSuccess()
			metrics.CircuitState.WithLabelValues(key).Set(float64(phase))
			metrics.DependencyAttempts.WithLabelValues(key, "success").Inc()
			if attempt > 1 {
				metrics.DependencyRecovered.WithLabelValues(key).Inc()
				logx.Info().Str("dependency", key).Int("attempt", attempt).Msg("succeeded after retry")
			}
			return result, nil
		}

		// The caller gave up; that says nothing about the dependency.
		if ctx.Err() != nil {
			b.release()
			return zero, err
		}

		lastErr = err
		class := Classify(err, category)
		phase := b.onFailure(e.now())
		metrics.CircuitState.WithLabelValues(key).Set(float64(phase))
		metrics.DependencyAttempts.WithLabelValues(key, "failure").Inc()

		if attempt == policy.MaxAttempts || !class.Retryable {
			logx.WithLevel(class.Severity.LogLevel()).
				Err(err).
				Str("dependency", key).
				Str("category", category.String()).
				Int("attempt", attempt).
				Str("kind", class.Kind.String()).
				Str("severity", class.Severity.String()).
				Bool("retryable", class.Retryable).
				Msg("dependency call failed; giving up")
			return zero, err
		}

		delay := policy.Delay(attempt, class, e.jitter)
		metrics.DependencyRetries.WithLabelValues(key, class.Kind.String()).Inc()
		logx.WithLevel(class.Severity.LogLevel()).
			Err(err).
			Str("dependency", key).
			Str("category", category.String()).
			Int("attempt", attempt).
			Int("max_attempts", policy.MaxAttempts).
			Str("kind", class.Kind.String()).
			Str("severity", class.Severity.String()).
			Dur("delay", delay).
			Msg("dependency call failed; retrying")

		if err := e.sleep(ctx, delay); err != nil {
			return zero, errors.Join(lastErr, err)
		}
	}

	return zero, lastErr
}

// runAttempt races op against the per-attempt timeout. On expiry the attempt
// context is cancelled so a cooperative op can stop, and its result is dropped.
func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return callSafely(ctx, op)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := callSafely(attemptCtx, op)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return out.value, &AttemptTimeoutError{Timeout: timeout}
		}
		return out.value, out.err
	case <-attemptCtx.Done():
		var zero T
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, &AttemptTimeoutError{Timeout: timeout}
	}
}

// PanicError reports a dependency call that panicked. It is not retryable.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("dependency panicked: %v", e.Value)
}

// callSafely runs op and turns a panic into a *PanicError, so a misbehaving
// collaborator cannot take down the process from an attempt goroutine.
func callSafely[T any](ctx context.Context, op func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			v, err = zero, &PanicError{Value: r}
		}
	}()
	return op(ctx)
}
