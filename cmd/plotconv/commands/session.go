// Package commands implements the plotconv CLI verbs.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Sumatoshi-tech/plotconv/pkg/config"
	"github.com/Sumatoshi-tech/plotconv/pkg/observability"
	"github.com/Sumatoshi-tech/plotconv/pkg/plotfile"
	"github.com/Sumatoshi-tech/plotconv/pkg/shuffle"
	"github.com/Sumatoshi-tech/plotconv/pkg/throttle"
	"github.com/Sumatoshi-tech/plotconv/pkg/version"
)

// Globals holds the persistent root flags shared by every verb.
type Globals struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
	LogJSON    bool
	NoColor    bool
}

// session is the configuration and telemetry of one command invocation.
type session struct {
	cfg       *config.Config
	providers observability.Providers
	metrics   *observability.ShuffleMetrics
	logger    *slog.Logger
}

func (g *Globals) open(command string, logOutput io.Writer) (*session, error) {
	cfg, err := config.LoadConfig(g.ConfigPath)
	if err != nil {
		return nil, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Command = command
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.Prometheus = cfg.Telemetry.MetricsAddr != ""
	obsCfg.DebugTrace = cfg.Telemetry.DebugTrace
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.LogLevel = g.logLevel(cfg.Logging.Level)
	obsCfg.LogJSON = cfg.Logging.JSON || g.LogJSON
	obsCfg.LogOutput = logOutput

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	metrics, err := observability.NewShuffleMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, providers.Shutdown(context.Background()))
	}

	return &session{cfg: cfg, providers: providers, metrics: metrics, logger: providers.Logger}, nil
}

func (g *Globals) logLevel(configured string) slog.Level {
	switch {
	case g.Verbose:
		return slog.LevelDebug
	case g.Quiet:
		return slog.LevelError
	default:
		return observability.ParseLogLevel(configured)
	}
}

func (s *session) close() {
	err := s.providers.Shutdown(context.Background())
	if err != nil {
		s.logger.Warn("observability shutdown failed", "error", err)
	}
}

func (s *session) engineOptions(workers int) []shuffle.Option {
	return []shuffle.Option{
		shuffle.WithLogger(s.logger),
		shuffle.WithTracer(s.providers.Tracer),
		shuffle.WithMetrics(s.metrics),
		shuffle.WithProgressInterval(s.cfg.Progress.Interval),
		shuffle.WithWorkers(workers),
	}
}

// finish logs err and decides the exit status. Domain errors are reported
// and swallowed; anything else is returned so the process exits non-zero.
func (s *session) finish(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	if IsDomainError(err) {
		s.logger.ErrorContext(ctx, "conversion failed", "error", err)

		return nil
	}

	s.logger.ErrorContext(ctx, "fatal error", "error", err)

	return err
}

// IsDomainError reports whether err is an expected failure of the input,
// the checkpoint or the environment rather than a program fault.
func IsDomainError(err error) bool {
	for _, target := range []error{
		plotfile.ErrFormat,
		plotfile.ErrGeometry,
		shuffle.ErrIOConsistency,
		shuffle.ErrResumeMismatch,
		shuffle.ErrSameFile,
		throttle.ErrEnvironment,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}
