package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompute_NoProgressIsUnknown(t *testing.T) {
	t.Parallel()

	snap := Compute(5*time.Second, 2048, 0, 0, false)

	assert.Equal(t, Unknown, snap.Remaining)
	assert.False(t, snap.RemainingKnown())
	assert.InDelta(t, 0.0, snap.Percent, 1e-9)
}

func TestCompute_Estimate(t *testing.T) {
	t.Parallel()

	snap := Compute(10*time.Second, 100, 25, 0, true)

	assert.InDelta(t, 25.0, snap.Percent, 1e-9)
	assert.Equal(t, 30*time.Second, snap.Remaining)
	assert.True(t, snap.Paused)
}

func TestCompute_ResumedRunUsesOwnRate(t *testing.T) {
	t.Parallel()

	// Half was done before the run started; 10 more units in 10s.
	snap := Compute(10*time.Second, 100, 60, 50, false)

	assert.InDelta(t, 60.0, snap.Percent, 1e-9)
	assert.Equal(t, 40*time.Second, snap.Remaining)

	snap = Compute(10*time.Second, 100, 50, 50, false)
	assert.Equal(t, Unknown, snap.Remaining)
}

func TestCompute_Complete(t *testing.T) {
	t.Parallel()

	snap := Compute(time.Minute, 2048, 2048, 0, false)

	assert.InDelta(t, 100.0, snap.Percent, 1e-9)
	assert.Equal(t, time.Duration(0), snap.Remaining)
}

func TestSnapshot_String(t *testing.T) {
	t.Parallel()

	snap := Snapshot{Elapsed: 61 * time.Second, Remaining: time.Hour, Percent: 12.5}
	assert.Equal(t, "12.50%\telapsed: 1 minute, 1 second\tremaining: 1 hour.", snap.String())

	snap = Snapshot{Remaining: Unknown, Paused: true}
	assert.Equal(t, "0.00%\telapsed: 0 seconds\tremaining: unknown. (paused)", snap.String())
}

func TestFinal(t *testing.T) {
	t.Parallel()

	snap := Final(3 * time.Second)

	assert.InDelta(t, 100.0, snap.Percent, 1e-9)
	assert.Equal(t, time.Duration(0), snap.Remaining)
	assert.False(t, snap.Paused)
}
