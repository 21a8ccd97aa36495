package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricBytesRead         = "plotconv.shuffle.bytes.read"
	metricBytesWritten      = "plotconv.shuffle.bytes.written"
	metricIterationsTotal   = "plotconv.shuffle.iterations"
	metricIterationDuration = "plotconv.shuffle.iteration.duration"
	metricGateTransitions   = "plotconv.shuffle.gate.transitions"
	metricCheckpointsTotal  = "plotconv.shuffle.checkpoints"

	attrState = "state"

	// StatePaused and StateResumed label gate transitions.
	StatePaused  = "paused"
	StateResumed = "resumed"
)

// iterationBucketBoundaries covers 1ms to 10 minutes: small test plots finish
// an iteration in microseconds, multi-terabyte plots on spinning disks in minutes.
var iterationBucketBoundaries = []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// metricBuilder accumulates OTel instrument creation errors,
// enabling batch construction with a single error check.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func newMetricBuilder(mt metric.Meter) *metricBuilder {
	return &metricBuilder{meter: mt}
}

func (b *metricBuilder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return c
}

func (b *metricBuilder) histogram(name, desc, unit string, bounds ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	}

	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}

	h, err := b.meter.Float64Histogram(name, opts...)
	b.setErr(name, err)

	return h
}

// setErr records the first instrument creation error.
func (b *metricBuilder) setErr(name string, err error) {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create %s: %w", name, err)
	}
}

// ShuffleMetrics holds the OTel instruments recorded by the shuffle engine.
// A nil *ShuffleMetrics records nothing.
type ShuffleMetrics struct {
	bytesRead         metric.Int64Counter
	bytesWritten      metric.Int64Counter
	iterations        metric.Int64Counter
	iterationDuration metric.Float64Histogram
	gateTransitions   metric.Int64Counter
	checkpoints       metric.Int64Counter
}

// NewShuffleMetrics creates shuffle instruments from the given meter.
func NewShuffleMetrics(mt metric.Meter) (*ShuffleMetrics, error) {
	b := newMetricBuilder(mt)

	sm := &ShuffleMetrics{
		bytesRead:    b.counter(metricBytesRead, "Bytes read from plot files", "By"),
		bytesWritten: b.counter(metricBytesWritten, "Bytes written to plot files", "By"),
		iterations:   b.counter(metricIterationsTotal, "Completed read/exchange/write iterations", "{iteration}"),
		iterationDuration: b.histogram(metricIterationDuration,
			"Wall time of one iteration including pauses", "s", iterationBucketBoundaries...),
		gateTransitions: b.counter(metricGateTransitions, "Pause and resume transitions", "{transition}"),
		checkpoints:     b.counter(metricCheckpointsTotal, "Checkpoints recorded on abort", "{checkpoint}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return sm, nil
}

// RecordRead counts bytes read.
func (sm *ShuffleMetrics) RecordRead(ctx context.Context, n int) {
	if sm == nil {
		return
	}

	sm.bytesRead.Add(ctx, int64(n))
}

// RecordWrite counts bytes written.
func (sm *ShuffleMetrics) RecordWrite(ctx context.Context, n int) {
	if sm == nil {
		return
	}

	sm.bytesWritten.Add(ctx, int64(n))
}

// RecordIteration counts one committed iteration and its duration.
func (sm *ShuffleMetrics) RecordIteration(ctx context.Context, d time.Duration) {
	if sm == nil {
		return
	}

	sm.iterations.Add(ctx, 1)
	sm.iterationDuration.Record(ctx, d.Seconds())
}

// RecordGate counts a pause (paused=true) or resume transition.
func (sm *ShuffleMetrics) RecordGate(ctx context.Context, paused bool) {
	if sm == nil {
		return
	}

	state := StateResumed
	if paused {
		state = StatePaused
	}

	sm.gateTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String(attrState, state)))
}

// RecordCheckpoint counts a checkpoint taken on abort.
func (sm *ShuffleMetrics) RecordCheckpoint(ctx context.Context) {
	if sm == nil {
		return
	}

	sm.checkpoints.Add(ctx, 1)
}
