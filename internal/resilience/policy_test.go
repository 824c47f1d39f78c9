package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffMonotonicAndCapped(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts:   10,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2,
	}
	require.NoError(t, p.Validate())

	prev := time.Duration(0)
	for attempt := 1; attempt <= 40; attempt++ {
		d := p.Backoff(attempt)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		assert.LessOrEqual(t, d, p.MaxDelay, "attempt %d", attempt)
		assert.Equal(t, d, p.Delay(attempt, Classification{}, nil))
		prev = d
	}
	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 2*time.Second, p.Backoff(40))
}

func TestJitterBounds(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts:   5,
		BaseDelay:     50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 3,
		Jitter:        true,
	}
	for attempt := 1; attempt <= 5; attempt++ {
		exp := p.Backoff(attempt)
		for i := 0; i < 200; i++ {
			d := p.Delay(attempt, Classification{}, nil)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.LessOrEqual(t, d, exp)
		}
	}
}

func TestRetryAfterTakesPrecedence(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Minute, BackoffFactor: 2, Jitter: true}
	c := Classification{Retryable: true, Kind: KindRateLimit, RetryAfter: 5 * time.Second, HasRetryAfter: true}
	for attempt := 1; attempt <= 3; attempt++ {
		assert.Equal(t, 5000*time.Millisecond, p.Delay(attempt, c, func(time.Duration) time.Duration { return 0 }))
	}
}

func TestPolicyValidate(t *testing.T) {
	testcases := []struct {
		name   string
		policy RetryPolicy
		ok     bool
	}{
		{"default", DefaultRetryPolicy, true},
		{"zero-attempts", RetryPolicy{MaxAttempts: 0, BackoffFactor: 1}, false},
		{"negative-base", RetryPolicy{MaxAttempts: 1, BaseDelay: -1, BackoffFactor: 1}, false},
		{"max-below-base", RetryPolicy{MaxAttempts: 1, BaseDelay: time.Second, MaxDelay: time.Millisecond, BackoffFactor: 1}, false},
		{"factor-below-one", RetryPolicy{MaxAttempts: 1, BackoffFactor: 0.5}, false},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.policy.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
