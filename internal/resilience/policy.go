package resilience

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy controls how many times and how patiently an operation is retried.
type RetryPolicy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
	// TimeoutPerAttempt bounds each attempt; zero disables the bound.
	TimeoutPerAttempt time.Duration
}

// DefaultRetryPolicy provides sensible defaults.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:       3,
	BaseDelay:         500 * time.Millisecond,
	MaxDelay:          10 * time.Second,
	BackoffFactor:     2.0,
	Jitter:            true,
	TimeoutPerAttempt: 60 * time.Second,
}

// Validate checks the policy invariants.
func (p RetryPolicy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return fmt.Errorf("retry policy: max attempts must be >= 1, got %d", p.MaxAttempts)
	case p.BaseDelay < 0:
		return fmt.Errorf("retry policy: base delay must be >= 0, got %s", p.BaseDelay)
	case p.MaxDelay < p.BaseDelay:
		return fmt.Errorf("retry policy: max delay %s is below base delay %s", p.MaxDelay, p.BaseDelay)
	case p.BackoffFactor < 1:
		return fmt.Errorf("retry policy: backoff factor must be >= 1, got %v", p.BackoffFactor)
	case p.TimeoutPerAttempt < 0:
		return fmt.Errorf("retry policy: attempt timeout must be >= 0, got %s", p.TimeoutPerAttempt)
	}
	return nil
}

// Backoff returns min(MaxDelay, BaseDelay * BackoffFactor^(attempt-1)) for a
// 1-based attempt number.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(attempt-1))
	if math.IsNaN(delay) || delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// JitterFunc samples a delay uniformly from [0, max].
type JitterFunc func(max time.Duration) time.Duration

// UniformJitter is the default JitterFunc.
func UniformJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max) + 1))
}

// Delay is the wait before the attempt following the given failed attempt.
// A server-provided Retry-After wins over the computed backoff.
func (p RetryPolicy) Delay(attempt int, c Classification, jitter JitterFunc) time.Duration {
	if c.HasRetryAfter {
		return c.RetryAfter
	}
	exp := p.Backoff(attempt)
	if !p.Jitter {
		return exp
	}
	if jitter == nil {
		jitter = UniformJitter
	}
	d := jitter(exp)
	if d < 0 {
		return 0
	}
	if d > exp {
		return exp
	}
	return d
}
