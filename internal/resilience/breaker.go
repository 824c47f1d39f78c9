package resilience

import (
	"sync"
	"time"
)

// Phase is the circuit breaker state.
type Phase int

const (
	PhaseClosed Phase = iota
	PhaseOpen
	PhaseHalfOpen
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "open"
	case PhaseHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// BreakerSettings are fixed for the lifetime of an Executor.
type BreakerSettings struct {
	FailureThreshold uint
	ResetTimeout     time.Duration
}

// DefaultBreakerSettings provides sensible defaults.
var DefaultBreakerSettings = BreakerSettings{
	FailureThreshold: 5,
	ResetTimeout:     30 * time.Second,
}

// BreakerState is a snapshot of one breaker.
type BreakerState struct {
	Phase         Phase
	FailureCount  uint
	LastFailureAt time.Time
}

// breaker is shared by every concurrent call using the same dependency key.
type breaker struct {
	mu            sync.Mutex
	settings      BreakerSettings
	failureCount  uint
	lastFailureAt time.Time
	phase         Phase
	probing       bool
}

// allow reports whether a call may proceed. An open breaker whose reset
// timeout has elapsed moves to half-open and admits exactly one probe.
func (b *breaker) allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.phase {
	case PhaseClosed:
		return true
	case PhaseOpen:
		if now.Sub(b.lastFailureAt) >= b.settings.ResetTimeout {
			b.phase = PhaseHalfOpen
			b.probing = true
			return true
		}
		return false
	default:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
}

func (b *breaker) onSuccess() Phase {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	b.phase = PhaseClosed
	b.probing = false
	return b.phase
}

func (b *breaker) onFailure(now time.Time) Phase {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	switch b.phase {
	case PhaseHalfOpen:
		b.phase = PhaseOpen
		b.lastFailureAt = now
		b.probing = false
	case PhaseClosed:
		if b.failureCount >= b.settings.FailureThreshold {
			b.phase = PhaseOpen
			b.lastFailureAt = now
		}
	default:
		b.lastFailureAt = now
	}
	return b.phase
}

// release gives up a half-open probe slot without recording an outcome, used
// when the caller's own context ends before the dependency answered.
func (b *breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

func (b *breaker) snapshot() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerState{Phase: b.phase, FailureCount: b.failureCount, LastFailureAt: b.lastFailureAt}
}

func (b *breaker) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.phase = PhaseClosed
	b.probing = false
	b.lastFailureAt = time.Time{}
}

// breakerSet lazily creates one breaker per dependency key.
type breakerSet struct {
	mu       sync.Mutex
	settings BreakerSettings
	byKey    map[string]*breaker
}

func newBreakerSet(settings BreakerSettings) *breakerSet {
	return &breakerSet{settings: settings, byKey: make(map[string]*breaker)}
}

func (s *breakerSet) get(key string) *breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.byKey[key]
	if !ok {
		b = &breaker{settings: s.settings}
		s.byKey[key] = b
	}
	return b
}
