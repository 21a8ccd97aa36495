// Package shuffle converts plot files between the unoptimized and optimized
// layouts with bounded memory. A run can be paused, resumed and aborted; an
// aborted run leaves a Checkpoint from which a later run continues.
package shuffle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/plotconv/pkg/budget"
	"github.com/Sumatoshi-tech/plotconv/pkg/gate"
	"github.com/Sumatoshi-tech/plotconv/pkg/observability"
	"github.com/Sumatoshi-tech/plotconv/pkg/plotfile"
	"github.com/Sumatoshi-tech/plotconv/pkg/progress"
	"github.com/Sumatoshi-tech/plotconv/pkg/safeconv"
	"github.com/Sumatoshi-tech/plotconv/pkg/units"
)

// Sentinel errors for conversion runs.
var (
	// ErrIOConsistency indicates a read or write that transferred fewer bytes
	// than one block. The run stops; partial transfers are never retried.
	ErrIOConsistency = errors.New("incomplete block transfer")

	// ErrResumeMismatch indicates a checkpoint that does not fall on an
	// iteration boundary of the current run.
	ErrResumeMismatch = errors.New("checkpoint does not match this conversion")

	// ErrAlreadyRunning is returned when an engine is run a second time.
	ErrAlreadyRunning = errors.New("conversion already started")

	// ErrSameFile is returned when the output path of a two-file run is the input plot.
	ErrSameFile = errors.New("output path is the input plot")
)

const (
	tracerName = "plotconv/shuffle"

	modeInPlace = "inline"
	modeToFile  = "outline"

	outputPerm = 0o644
)

// Info describes the planned conversion of a plot.
type Info struct {
	Path          string `json:"path"           yaml:"path"`
	ID            uint64 `json:"id"             yaml:"id"`
	Offset        int64  `json:"offset"         yaml:"offset"`
	Nonces        int64  `json:"nonces"         yaml:"nonces"`
	Stagger       int64  `json:"stagger"        yaml:"stagger"`
	Partitions    int    `json:"partitions"     yaml:"partitions"`
	Iterations    int    `json:"iterations"     yaml:"iterations"`
	BlockSize     int64  `json:"block_size"     yaml:"block_size"`
	UsedMemory    int64  `json:"used_memory"    yaml:"used_memory"`
	ExpectedSize  int64  `json:"expected_size"  yaml:"expected_size"`
	RealSize      int64  `json:"real_size"      yaml:"real_size"`
	OptimizedName string `json:"optimized_name" yaml:"optimized_name"`
}

// Engine runs one conversion of one plot file. Pause, Resume, Abort and
// Progress may be called from any goroutine; the file handles and buffers
// are only touched by the goroutine inside RunInPlace or RunToFile.
type Engine struct {
	desc     *plotfile.Descriptor
	factor   int
	gate     *gate.Gate
	reporter *progress.Reporter

	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *observability.ShuffleMetrics
	interval time.Duration
	workers  int

	started atomic.Bool
	aborted atomic.Bool
	done    atomic.Int64

	mu         sync.Mutex
	cancel     context.CancelFunc
	checkpoint *Checkpoint
}

// New opens the plot at inputPath and plans a conversion whose per-buffer
// memory stays within budgetBytes. A zero budget processes one scoop-group
// pair per iteration.
func New(inputPath string, budgetBytes int64, opts ...Option) (*Engine, error) {
	desc, err := plotfile.Open(inputPath)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		desc:    desc,
		factor:  budget.PartitionFactor(desc.NonceCount, budgetBytes),
		gate:    gate.New(false),
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
		workers: runtime.NumCPU(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.reporter = progress.NewReporter(e.interval)

	return e, nil
}

// Descriptor returns the plot being converted.
func (e *Engine) Descriptor() *plotfile.Descriptor {
	return e.desc
}

// Factor returns the number of scoop-group pairs batched per iteration.
func (e *Engine) Factor() int {
	return e.factor
}

// UsedMemory returns the bytes held by the head and tail buffers.
func (e *Engine) UsedMemory() int64 {
	return 2 * budget.UsedMemory(e.desc.NonceCount, e.factor)
}

// Info summarizes geometry and partitioning without touching the file contents.
func (e *Engine) Info() Info {
	return Info{
		Path:          e.desc.Path,
		ID:            e.desc.ID,
		Offset:        e.desc.Offset,
		Nonces:        e.desc.NonceCount,
		Stagger:       e.desc.Stagger,
		Partitions:    e.factor,
		Iterations:    plotfile.GroupPairs / e.factor,
		BlockSize:     e.desc.BlockSize(),
		UsedMemory:    e.UsedMemory(),
		ExpectedSize:  e.desc.ExpectedSize(),
		RealSize:      e.desc.RealSize,
		OptimizedName: e.desc.OptimizedName(),
	}
}

// Pause suspends the run at its next I/O boundary. It reports false if the
// engine was already paused.
func (e *Engine) Pause() bool {
	if !e.gate.Pause() {
		return false
	}

	e.metrics.RecordGate(context.Background(), true)
	e.logger.Debug("conversion paused")

	return true
}

// Resume releases a paused run. It reports false if the engine was not paused.
func (e *Engine) Resume() bool {
	if !e.gate.Resume() {
		return false
	}

	e.metrics.RecordGate(context.Background(), false)
	e.logger.Debug("conversion resumed")

	return true
}

// Paused reports whether the engine is currently paused.
func (e *Engine) Paused() bool {
	return e.gate.Paused()
}

// Abort asks the run to stop at the end of the current exchange. Nothing of
// that iteration is written; Checkpoint then reports where to resume.
// A paused run is released so it can stop.
func (e *Engine) Abort() {
	e.aborted.Store(true)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}
}

// Checkpoint returns the resume position of an aborted run, or nil if the
// run has not been aborted mid-flight.
func (e *Engine) Checkpoint() *Checkpoint {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.checkpoint == nil {
		return nil
	}

	cp := *e.checkpoint

	return &cp
}

// Progress subscribes to progress snapshots. The channel is closed when the
// run ends; a completed run delivers a final 100% snapshot first.
func (e *Engine) Progress(buffer int) (<-chan progress.Snapshot, func()) {
	return e.reporter.Subscribe(buffer)
}

// RunInPlace converts the plot using a single read-write handle and, when
// every iteration has been written, renames it to its optimized name. It
// reports whether the conversion completed; false with a nil error means the
// run was aborted and Checkpoint is set. A nil cp starts from the beginning.
func (e *Engine) RunInPlace(ctx context.Context, cp *Checkpoint) (bool, error) {
	start, err := e.prepare(cp)
	if err != nil {
		return false, err
	}

	f, err := os.OpenFile(e.desc.Path, os.O_RDWR, 0)
	if err != nil {
		return false, fmt.Errorf("open plot file: %w", err)
	}

	completed, err := e.run(ctx, modeInPlace, f, f, start)
	err = errors.Join(err, syncAndClose(f))

	if err != nil || !completed {
		return false, err
	}

	err = e.desc.Rename(e.desc.OptimizedName())
	if err != nil {
		return false, err
	}

	e.logger.InfoContext(ctx, "plot renamed", "path", e.desc.Path)

	return true, nil
}

// RunToFile converts the plot into outputPath, leaving the input untouched.
// A fresh run (nil cp) creates outputPath and fails if it exists; a resumed
// run reopens the output written by the aborted run.
func (e *Engine) RunToFile(ctx context.Context, outputPath string, cp *Checkpoint) (bool, error) {
	err := e.checkDistinct(outputPath)
	if err != nil {
		return false, err
	}

	start, err := e.prepare(cp)
	if err != nil {
		return false, err
	}

	in, err := os.Open(e.desc.Path)
	if err != nil {
		return false, fmt.Errorf("open plot file: %w", err)
	}
	defer in.Close()

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if cp != nil {
		flags = os.O_WRONLY
	}

	out, err := os.OpenFile(outputPath, flags, outputPerm)
	if err != nil {
		return false, fmt.Errorf("open output file: %w", err)
	}

	err = out.Truncate(e.desc.ExpectedSize())
	if err != nil {
		return false, errors.Join(fmt.Errorf("size output file: %w", err), out.Close())
	}

	completed, err := e.run(ctx, modeToFile, in, out, start)
	err = errors.Join(err, syncAndClose(out))

	if err != nil {
		return false, err
	}

	return completed, nil
}

func (e *Engine) checkDistinct(outputPath string) error {
	inAbs, err := filepath.Abs(e.desc.Path)
	if err != nil {
		return fmt.Errorf("resolve input path: %w", err)
	}

	outAbs, err := filepath.Abs(outputPath)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	if inAbs == outAbs {
		return fmt.Errorf("%w: %s", ErrSameFile, outputPath)
	}

	return nil
}

// prepare validates the plot and the checkpoint and claims the engine. It
// performs no I/O on the plot contents.
func (e *Engine) prepare(cp *Checkpoint) (int, error) {
	err := e.desc.Validate()
	if err != nil {
		return 0, err
	}

	if cp == nil {
		cp = &Checkpoint{}
	}

	iterationSize := budget.UsedMemory(e.desc.NonceCount, e.factor)
	if iterationSize > int64(safeconv.MaxInt) {
		return 0, fmt.Errorf("%w: iteration buffer of %d bytes is not addressable",
			plotfile.ErrGeometry, iterationSize)
	}

	start, err := startIteration(*cp, iterationSize, plotfile.GroupPairs/e.factor)
	if err != nil {
		return 0, err
	}

	if !e.started.CompareAndSwap(false, true) {
		return 0, ErrAlreadyRunning
	}

	return start, nil
}

// run drives iterations start.. in order. src and dst may be the same file.
func (e *Engine) run(ctx context.Context, mode string, src io.ReaderAt, dst io.WriterAt, start int) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	if e.aborted.Load() {
		cancel()
	}

	defer func() {
		e.mu.Lock()
		e.cancel = nil
		e.mu.Unlock()
	}()

	blockSize := e.desc.BlockSize()
	iterationSize := blockSize * int64(e.factor)
	size := e.desc.ExpectedSize()
	iterations := plotfile.GroupPairs / e.factor
	base := int64(start * e.factor)

	ctx, span := e.tracer.Start(ctx, "shuffle."+mode, trace.WithAttributes(
		attribute.String("plot.id", strconv.FormatUint(e.desc.ID, 10)),
		attribute.Int64("plot.nonces", e.desc.NonceCount),
		attribute.Int("shuffle.factor", e.factor),
		attribute.Int("shuffle.workers", e.workers),
		attribute.Int64("checkpoint.position", int64(start)*iterationSize),
	))
	defer span.End()

	e.logger.InfoContext(ctx, "conversion started",
		"mode", mode,
		"path", e.desc.Path,
		"partitions", e.factor,
		"iterations", iterations,
		"memory", units.FormatBytes(float64(e.UsedMemory())),
		"resume_position", int64(start)*iterationSize,
	)

	e.done.Store(base)
	e.reporter.Start(progress.Source{
		Total:  plotfile.GroupPairs,
		Base:   base,
		Done:   e.done.Load,
		Paused: e.gate.Paused,
	})

	completed := false
	defer func() { e.reporter.Stop(completed) }()

	bufSize := safeconv.MustInt64ToInt(iterationSize)
	head := make([]byte, bufSize)
	tail := make([]byte, bufSize)

	for i := start; i < iterations; i++ {
		began := time.Now()
		pos := int64(i) * iterationSize
		tailPos := size - pos - iterationSize

		e.gate.Wait(ctx)

		err := e.readBlock(ctx, src, head, pos)
		if err != nil {
			return false, recordSpanError(span, err)
		}

		e.gate.Wait(ctx)

		err = e.readBlock(ctx, src, tail, tailPos)
		if err != nil {
			return false, recordSpanError(span, err)
		}

		err = exchange(head, tail, safeconv.MustInt64ToInt(blockSize), e.factor, e.workers, &e.done)
		if err != nil {
			return false, recordSpanError(span, err)
		}

		if e.aborted.Load() || ctx.Err() != nil {
			e.done.Add(-int64(e.factor))
			e.recordCheckpoint(ctx, span, pos)

			return false, nil
		}

		e.gate.Wait(ctx)

		err = e.writeBlock(ctx, dst, tail, tailPos)
		if err != nil {
			return false, recordSpanError(span, err)
		}

		e.gate.Wait(ctx)

		err = e.writeBlock(ctx, dst, head, pos)
		if err != nil {
			return false, recordSpanError(span, err)
		}

		e.metrics.RecordIteration(ctx, time.Since(began))
		e.logger.DebugContext(ctx, "iteration written", "iteration", i, "position", pos)
	}

	completed = true

	e.logger.InfoContext(ctx, "conversion finished",
		"mode", mode,
		"elapsed", units.FormatDuration(e.reporter.Elapsed()),
	)

	return true, nil
}

func (e *Engine) recordCheckpoint(ctx context.Context, span trace.Span, pos int64) {
	e.mu.Lock()
	e.checkpoint = &Checkpoint{Position: pos}
	e.mu.Unlock()

	e.metrics.RecordCheckpoint(ctx)
	span.AddEvent("aborted", trace.WithAttributes(attribute.Int64("checkpoint.position", pos)))
	e.logger.WarnContext(ctx, "conversion aborted", "checkpoint", pos)
}

func (e *Engine) readBlock(ctx context.Context, src io.ReaderAt, buf []byte, off int64) error {
	n, err := src.ReadAt(buf, off)
	e.metrics.RecordRead(ctx, n)

	if n != len(buf) {
		return shortTransfer("read", n, len(buf), off, err)
	}

	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read block at offset %d: %w", off, err)
	}

	return nil
}

func (e *Engine) writeBlock(ctx context.Context, dst io.WriterAt, buf []byte, off int64) error {
	n, err := dst.WriteAt(buf, off)
	e.metrics.RecordWrite(ctx, n)

	if n != len(buf) {
		return shortTransfer("wrote", n, len(buf), off, err)
	}

	if err != nil {
		return fmt.Errorf("write block at offset %d: %w", off, err)
	}

	return nil
}

func shortTransfer(verb string, n, want int, off int64, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s %d of %d bytes at offset %d", ErrIOConsistency, verb, n, want, off)
	}

	return fmt.Errorf("%w: %s %d of %d bytes at offset %d: %w", ErrIOConsistency, verb, n, want, off, cause)
}

func recordSpanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	return err
}

func syncAndClose(f *os.File) error {
	return errors.Join(f.Sync(), f.Close())
}
