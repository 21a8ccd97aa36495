package throttle

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/plotconv/pkg/gate"
	"github.com/Sumatoshi-tech/plotconv/pkg/units"
)

var errSampling = errors.New("process exited")

// scriptedSource replays samples, then fails or repeats the last one.
type scriptedSource struct {
	mu      sync.Mutex
	samples []Sample
	idx     int
	failEnd bool
	drained chan struct{}
}

func newScriptedSource(failEnd bool, totals ...float64) *scriptedSource {
	s := &scriptedSource{failEnd: failEnd, drained: make(chan struct{})}
	for _, total := range totals {
		s.samples = append(s.samples, Sample{ReadBytesPerSec: total / 2, WriteBytesPerSec: total / 2})
	}

	return s
}

func (s *scriptedSource) Sample(context.Context) (Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idx >= len(s.samples) {
		if s.failEnd {
			return Sample{}, errSampling
		}

		return s.samples[len(s.samples)-1], nil
	}

	sample := s.samples[s.idx]
	s.idx++

	if s.idx == len(s.samples) {
		close(s.drained)
	}

	return sample, nil
}

// recordingTarget is a gate that remembers effective transitions.
type recordingTarget struct {
	*gate.Gate

	mu          sync.Mutex
	transitions []bool
}

func (r *recordingTarget) Pause() bool {
	ok := r.Gate.Pause()
	if ok {
		r.mu.Lock()
		r.transitions = append(r.transitions, true)
		r.mu.Unlock()
	}

	return ok
}

func (r *recordingTarget) Resume() bool {
	ok := r.Gate.Resume()
	if ok {
		r.mu.Lock()
		r.transitions = append(r.transitions, false)
		r.mu.Unlock()
	}

	return ok
}

func (r *recordingTarget) recorded() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]bool(nil), r.transitions...)
}

func TestSample_Total(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 30.0, Sample{ReadBytesPerSec: 10, WriteBytesPerSec: 20}.Total(), 0)
}

func TestMonitor_PausesAtThresholdAndResumesBelow(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	src := newScriptedSource(false, 10*units.MiB, 60*units.MiB, 50*units.MiB, 20*units.MiB, 5*units.MiB)
	target := &recordingTarget{Gate: gate.New(false)}

	var callbacks []bool

	m := &Monitor{
		Source:       src,
		Target:       target,
		Threshold:    50 * units.MiB,
		Interval:     time.Millisecond,
		Logger:       slog.New(slog.NewTextHandler(&buf, nil)),
		OnTransition: func(paused bool, _ Sample) { callbacks = append(callbacks, paused) },
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- m.Run(ctx) }()

	select {
	case <-src.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("samples were not consumed")
	}

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []bool{true, false}, target.recorded())
	assert.Equal(t, []bool{true, false}, callbacks)
	assert.False(t, target.Paused())

	logs := buf.String()
	assert.Contains(t, logs, "throttle: pausing conversion")
	assert.Contains(t, logs, "throttle: resuming conversion")
	assert.Contains(t, logs, "60.00 MB/s")
	assert.Contains(t, logs, "50.00 MB/s")
}

func TestMonitor_SamplingFailureResumes(t *testing.T) {
	t.Parallel()

	src := newScriptedSource(true, 100)
	target := &recordingTarget{Gate: gate.New(false)}

	m := &Monitor{
		Source:    src,
		Target:    target,
		Threshold: 10,
		Interval:  time.Millisecond,
		Logger:    slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	}

	err := m.Run(context.Background())
	require.ErrorIs(t, err, errSampling)

	assert.Equal(t, []bool{true, false}, target.recorded())
	assert.False(t, target.Paused())
}

func TestMonitor_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &Monitor{Source: newScriptedSource(false, 1), Target: gate.New(false)}

	require.NoError(t, m.Run(ctx))
}
