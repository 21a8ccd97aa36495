// Package progress computes and broadcasts periodic progress snapshots for a
// long-running conversion.
package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/Sumatoshi-tech/plotconv/pkg/units"
)

// Unknown is the Remaining value of a snapshot taken before any progress.
const Unknown = time.Duration(math.MaxInt64)

const percentMultiplier = 100

// Snapshot is one progress observation. Snapshots are emitted, never persisted.
type Snapshot struct {
	Elapsed   time.Duration
	Remaining time.Duration
	Percent   float64
	Paused    bool
}

// RemainingKnown reports whether an estimate is available.
func (s Snapshot) RemainingKnown() bool {
	return s.Remaining != Unknown
}

func (s Snapshot) String() string {
	remaining := "unknown"
	if s.RemainingKnown() {
		remaining = units.FormatDuration(s.Remaining)
	}

	line := fmt.Sprintf("%.2f%%\telapsed: %s\tremaining: %s.",
		s.Percent, units.FormatDuration(s.Elapsed), remaining)

	if s.Paused {
		line += " (paused)"
	}

	return line
}

// Compute builds a snapshot. done counts completed units out of total; base
// is the number already done when the run started (non-zero on resume) and is
// excluded from the rate so the estimate reflects this run's throughput.
// On resume this deliberately differs from elapsed*(total-done)/done.
func Compute(elapsed time.Duration, total, done, base int64, paused bool) Snapshot {
	snap := Snapshot{
		Elapsed:   elapsed,
		Remaining: Unknown,
		Paused:    paused,
	}

	if total > 0 {
		snap.Percent = float64(done) / float64(total) * percentMultiplier
	}

	progressed := done - base
	if progressed > 0 {
		remaining := float64(elapsed) * float64(total-done) / float64(progressed)
		snap.Remaining = time.Duration(remaining)
	}

	return snap
}

// Final is the snapshot emitted on clean completion.
func Final(elapsed time.Duration) Snapshot {
	return Snapshot{Elapsed: elapsed, Percent: percentMultiplier}
}
