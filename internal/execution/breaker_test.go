package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	now := time.Now()
	b := newCircuitBreaker(3, time.Minute, func() time.Time { return now })

	assert.False(t, b.RecordFailure())
	assert.False(t, b.RecordFailure())
	assert.True(t, b.RecordFailure())

	assert.False(t, b.Admit())

	snap := b.Snapshot()
	assert.Equal(t, "open", snap.Status)
	assert.Equal(t, 3, snap.Failures)
	require.NotNil(t, snap.OpenUntil)
	assert.Equal(t, now.Add(time.Minute), *snap.OpenUntil)
}

func TestBreakerAdmitsWhileClosed(t *testing.T) {
	b := newCircuitBreaker(5, time.Minute, nil)
	assert.True(t, b.Admit())

	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Admit())

	snap := b.Snapshot()
	assert.Equal(t, "closed", snap.Status)
	assert.Equal(t, 2, snap.Failures)
	assert.Nil(t, snap.OpenUntil)
}

func TestBreakerResetsOnFirstAdmissionAfterCooldown(t *testing.T) {
	now := time.Now()
	b := newCircuitBreaker(2, time.Minute, func() time.Time { return now })

	b.RecordFailure()
	b.RecordFailure()
	require.False(t, b.Admit())

	// Cooldown elapses; the next admission resets the breaker.
	now = now.Add(time.Minute + time.Second)
	assert.True(t, b.Admit())

	snap := b.Snapshot()
	assert.Equal(t, "closed", snap.Status)
	assert.Zero(t, snap.Failures)
	assert.Nil(t, snap.OpenUntil)
}

func TestBreakerSuccessClearsFailures(t *testing.T) {
	b := newCircuitBreaker(3, time.Minute, nil)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	// Two more failures stay under the threshold.
	assert.False(t, b.RecordFailure())
	assert.False(t, b.RecordFailure())
	assert.True(t, b.Admit())
}
