package resilience

import (
	"sync"
	"time"
)

type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 60 * time.Second
)

type breaker struct {
	failures    int
	lastFailure time.Time
	state       State
}

// BreakerSet holds one circuit breaker per error classification. All
// concurrent callers observe the same breaker for a class; transitions are
// atomic under the set's mutex.
type BreakerSet struct {
	mu sync.Mutex

	breakers  map[Class]*breaker
	threshold int
	cooldown  time.Duration

	now func() time.Time
}

type BreakerOption func(*BreakerSet)

func WithThreshold(n int) BreakerOption {
	return func(b *BreakerSet) {
		if n > 0 {
			b.threshold = n
		}
	}
}

func WithCooldown(d time.Duration) BreakerOption {
	return func(b *BreakerSet) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(b *BreakerSet) { b.now = now }
}

func NewBreakerSet(opts ...BreakerOption) *BreakerSet {
	b := &BreakerSet{
		breakers:  make(map[Class]*breaker),
		threshold: DefaultFailureThreshold,
		cooldown:  DefaultCooldown,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (s *BreakerSet) get(class Class) *breaker {
	b, ok := s.breakers[class]
	if !ok {
		b = &breaker{state: StateClosed}
		s.breakers[class] = b
	}
	return b
}

// IsOpen reports whether calls for this class must fail fast. An OPEN
// breaker whose cooldown has elapsed moves to HALF_OPEN and lets one probe
// through.
func (s *BreakerSet) IsOpen(class Class) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.get(class)
	if b.state != StateOpen {
		return false
	}
	if s.now().Sub(b.lastFailure) >= s.cooldown {
		b.state = StateHalfOpen
		return false
	}
	return true
}

// RecordSuccess closes the breaker and clears the failure count.
// Returns true when the state actually changed (for event emission).
func (s *BreakerSet) RecordSuccess(class Class) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.get(class)
	changed := b.state != StateClosed || b.failures > 0
	b.state = StateClosed
	b.failures = 0
	return changed
}

// RecordFailure counts a failure and trips the breaker after the threshold
// of consecutive failures. A failure in HALF_OPEN trips immediately.
// Returns true when the breaker transitioned to OPEN.
func (s *BreakerSet) RecordFailure(class Class) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.get(class)
	b.failures++
	b.lastFailure = s.now()

	if b.state == StateHalfOpen || b.failures >= s.threshold {
		if b.state != StateOpen {
			b.state = StateOpen
			return true
		}
	}
	return false
}

func (s *BreakerSet) StateOf(class Class) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(class).state
}

// Snapshot reports every tracked breaker for the telemetry endpoint.
func (s *BreakerSet) Snapshot() map[Class]State {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[Class]State, len(s.breakers))
	for class, b := range s.breakers {
		out[class] = b.state
	}
	return out
}
