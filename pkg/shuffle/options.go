package shuffle

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/plotconv/pkg/observability"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracer sets the tracer for run spans. Defaults to the global tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithMetrics records I/O, iteration and gate metrics.
func WithMetrics(metrics *observability.ShuffleMetrics) Option {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// WithProgressInterval sets the progress cadence. Non-positive values keep
// progress.DefaultInterval.
func WithProgressInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.interval = d
	}
}

// WithWorkers bounds the exchange worker pool. Non-positive values use one
// worker per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}
