package throttle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sumatoshi-tech/plotconv/pkg/units"
)

// DefaultInterval is the sampling cadence used when none is configured.
const DefaultInterval = time.Second

// Pausable is the conversion being throttled.
type Pausable interface {
	Pause() bool
	Resume() bool
}

// Monitor samples Source every Interval and pauses Target while the total
// throughput is at or above Threshold bytes per second.
type Monitor struct {
	Source    Source
	Target    Pausable
	Threshold float64
	Interval  time.Duration
	Logger    *slog.Logger

	// OnTransition, when set, is called after every effective pause or resume.
	OnTransition func(paused bool, sample Sample)
}

// Run samples until ctx is done. A sampling failure resumes the target and
// ends the run with the error.
func (m *Monitor) Run(ctx context.Context) error {
	interval := m.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		sample, err := m.Source.Sample(ctx)
		if err != nil {
			if m.Target.Resume() {
				logger.WarnContext(ctx, "throttle: resuming conversion, sampling stopped")
			}

			return fmt.Errorf("sample watched process: %w", err)
		}

		m.apply(ctx, logger, sample)
	}
}

func (m *Monitor) apply(ctx context.Context, logger *slog.Logger, sample Sample) {
	busy := sample.Total() >= m.Threshold

	var changed bool
	if busy {
		changed = m.Target.Pause()
	} else {
		changed = m.Target.Resume()
	}

	if !changed {
		return
	}

	msg := "throttle: resuming conversion"
	if busy {
		msg = "throttle: pausing conversion"
	}

	logger.InfoContext(ctx, msg,
		"throughput", units.FormatBytes(sample.Total())+"/s",
		"threshold", units.FormatBytes(m.Threshold)+"/s",
	)

	if m.OnTransition != nil {
		m.OnTransition(busy, sample)
	}
}
