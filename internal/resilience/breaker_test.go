package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	s := NewBreakerSet(WithThreshold(3))

	assert.False(t, s.RecordFailure(ClassNetwork))
	assert.False(t, s.RecordFailure(ClassNetwork))
	assert.Equal(t, StateClosed, s.StateOf(ClassNetwork))

	assert.True(t, s.RecordFailure(ClassNetwork), "threshold failure transitions to OPEN")
	assert.Equal(t, StateOpen, s.StateOf(ClassNetwork))
	assert.True(t, s.IsOpen(ClassNetwork))

	// Other classes are untouched.
	assert.False(t, s.IsOpen(ClassRateLimit))
	assert.Equal(t, StateClosed, s.StateOf(ClassRateLimit))
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	s := NewBreakerSet(WithThreshold(3))

	s.RecordFailure(ClassAPI)
	s.RecordFailure(ClassAPI)
	assert.True(t, s.RecordSuccess(ClassAPI), "clearing failures counts as a change")
	assert.False(t, s.RecordSuccess(ClassAPI))

	// The count restarts, so two more failures do not trip it.
	s.RecordFailure(ClassAPI)
	s.RecordFailure(ClassAPI)
	assert.Equal(t, StateClosed, s.StateOf(ClassAPI))
}

func TestBreakerHalfOpenAfterCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewBreakerSet(
		WithThreshold(2),
		WithCooldown(time.Minute),
		WithBreakerClock(func() time.Time { return now }),
	)

	s.RecordFailure(ClassRateLimit)
	require.True(t, s.RecordFailure(ClassRateLimit))
	require.True(t, s.IsOpen(ClassRateLimit))

	now = now.Add(30 * time.Second)
	assert.True(t, s.IsOpen(ClassRateLimit), "still open inside the cooldown")

	now = now.Add(31 * time.Second)
	assert.False(t, s.IsOpen(ClassRateLimit), "cooldown elapsed lets a probe through")
	assert.Equal(t, StateHalfOpen, s.StateOf(ClassRateLimit))
}

func TestBreakerHalfOpenProbeOutcomes(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newOpenSet := func() *BreakerSet {
		s := NewBreakerSet(
			WithThreshold(1),
			WithCooldown(time.Minute),
			WithBreakerClock(func() time.Time { return now }),
		)
		s.RecordFailure(ClassTimeout)
		now = now.Add(2 * time.Minute)
		require.False(t, s.IsOpen(ClassTimeout))
		require.Equal(t, StateHalfOpen, s.StateOf(ClassTimeout))
		return s
	}

	t.Run("probe success closes", func(t *testing.T) {
		s := newOpenSet()
		assert.True(t, s.RecordSuccess(ClassTimeout))
		assert.Equal(t, StateClosed, s.StateOf(ClassTimeout))
	})

	t.Run("probe failure reopens immediately", func(t *testing.T) {
		s := newOpenSet()
		assert.True(t, s.RecordFailure(ClassTimeout))
		assert.Equal(t, StateOpen, s.StateOf(ClassTimeout))
		assert.True(t, s.IsOpen(ClassTimeout))
	})
}

func TestBreakerSnapshot(t *testing.T) {
	s := NewBreakerSet(WithThreshold(1))
	s.RecordFailure(ClassNetwork)
	s.RecordSuccess(ClassRateLimit)

	snap := s.Snapshot()
	assert.Equal(t, StateOpen, snap[ClassNetwork])
	assert.Equal(t, StateClosed, snap[ClassRateLimit])
	_, tracked := snap[ClassValidation]
	assert.False(t, tracked, "untouched classes are not reported")
}
