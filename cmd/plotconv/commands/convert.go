package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/plotconv/pkg/checkpoint"
	"github.com/Sumatoshi-tech/plotconv/pkg/config"
	"github.com/Sumatoshi-tech/plotconv/pkg/observability"
	"github.com/Sumatoshi-tech/plotconv/pkg/shuffle"
	"github.com/Sumatoshi-tech/plotconv/pkg/throttle"
)

var errConversionPaused = errors.New("conversion paused")

type sourceOpener func(name string) (throttle.Source, error)

// convertCommand is shared by the inline and outline verbs.
type convertCommand struct {
	globals *Globals
	mode    string

	input         string
	output        string
	memory        string
	checkpoint    int64
	resume        bool
	checkpointDir string
	process       string
	threshold     string
	workers       int

	openSource sourceOpener
}

func newConvertCommand(globals *Globals, mode string) *convertCommand {
	return &convertCommand{
		globals:    globals,
		mode:       mode,
		resume:     true,
		openSource: throttle.OpenProcessSource,
	}
}

func (cc *convertCommand) registerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&cc.input, "read", "r", "", "Input plot file to be processed")
	cmd.Flags().StringVarP(&cc.memory, "memory", "m", config.DefaultMemoryBudget,
		"Memory budget per buffer (e.g. '512MB', '2GiB'; a bare number is megabytes)")
	cmd.Flags().Int64Var(&cc.checkpoint, "checkpoint", 0, "Resume offset printed by an aborted run")
	cmd.Flags().BoolVar(&cc.resume, "resume", true, "Resume from a stored checkpoint if available")
	cmd.Flags().StringVar(&cc.checkpointDir, "checkpoint-dir", "",
		"Checkpoint directory (default: ~/.plotconv/checkpoints)")
	cmd.Flags().StringVar(&cc.process, "process", "", "Pause while this process is busy on disk")
	cmd.Flags().StringVar(&cc.threshold, "threshold", config.DefaultThrottleThreshold,
		"Disk throughput of the watched process that pauses the conversion (e.g. '50MB/s')")
	cmd.Flags().IntVar(&cc.workers, "workers", config.DefaultWorkers, "Exchange workers (0 = use CPU count)")

	_ = cmd.MarkFlagRequired("read")
}

func (cc *convertCommand) run(cmd *cobra.Command, _ []string) error {
	sess, err := cc.globals.open(cc.mode, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer sess.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return sess.finish(ctx, cc.convert(ctx, cmd, sess))
}

func (cc *convertCommand) convert(ctx context.Context, cmd *cobra.Command, sess *session) error {
	budgetBytes, err := config.ParseMemoryBudget(stringSetting(cmd, "memory", cc.memory, sess.cfg.Convert.MemoryBudget))
	if err != nil {
		return err
	}

	workers := intSetting(cmd, "workers", cc.workers, sess.cfg.Convert.Workers)

	engine, err := shuffle.New(cc.input, budgetBytes, sess.engineOptions(workers)...)
	if err != nil {
		return err
	}

	out := newPrinter(cmd.OutOrStdout(), cc.globals.NoColor)
	out.memory(engine.UsedMemory())

	store, err := cc.store(cmd, sess.cfg)
	if err != nil {
		return err
	}

	cp, err := cc.resumePoint(ctx, cmd, sess, store, engine.Factor(), out)
	if err != nil {
		return err
	}

	if addr := sess.cfg.Telemetry.MetricsAddr; addr != "" {
		diag, diagErr := observability.NewDiagnosticsServer(addr, sess.providers.Registry, sess.providers.Tracer,
			sess.logger, readyCheck(engine))
		if diagErr != nil {
			return diagErr
		}
		defer diag.Close()

		sess.logger.InfoContext(ctx, "diagnostics server listening", "addr", diag.Addr())
	}

	stopThrottle, err := cc.startThrottle(ctx, cmd, sess, engine, out)
	if err != nil {
		return err
	}

	snapshots, unsubscribe := engine.Progress(progressBuffer)
	printed := out.follow(snapshots)

	var completed bool
	if cc.mode == checkpoint.ModeOutline {
		completed, err = engine.RunToFile(ctx, cc.output, cp)
	} else {
		completed, err = engine.RunInPlace(ctx, cp)
	}

	stopThrottle()
	unsubscribe()
	<-printed

	if err != nil {
		return err
	}

	if completed {
		out.finished(cc.resultPath(engine))
		cc.clear(ctx, sess, store)

		return nil
	}

	var position int64
	if last := engine.Checkpoint(); last != nil {
		position = last.Position
	}

	out.aborted(position)
	cc.save(ctx, sess, store, engine, position)

	return nil
}

func (cc *convertCommand) resultPath(engine *shuffle.Engine) string {
	if cc.mode == checkpoint.ModeOutline {
		return cc.output
	}

	return engine.Descriptor().Path
}

// store returns the checkpoint manager for the input, or nil when
// persistence is disabled.
func (cc *convertCommand) store(cmd *cobra.Command, cfg *config.Config) (*checkpoint.Manager, error) {
	if !cfg.Checkpoint.Enabled {
		return nil, nil
	}

	dir := stringSetting(cmd, "checkpoint-dir", cc.checkpointDir, cfg.Checkpoint.Directory)
	if dir == "" {
		dir = checkpoint.DefaultDir()
	}

	return checkpoint.NewManager(dir, cc.input)
}

// resumePoint picks the checkpoint for this run. An explicit --checkpoint
// wins; otherwise a stored record of an earlier aborted run is used.
func (cc *convertCommand) resumePoint(
	ctx context.Context, cmd *cobra.Command, sess *session, store *checkpoint.Manager, factor int, out *printer,
) (*shuffle.Checkpoint, error) {
	if cmd.Flags().Changed("checkpoint") {
		out.resuming(cc.checkpoint)

		return &shuffle.Checkpoint{Position: cc.checkpoint}, nil
	}

	if !cc.resume || store == nil || !store.Exists() {
		return nil, nil
	}

	rec, err := store.Load()
	if err != nil {
		return cc.unusableRecord(ctx, sess, store, "unreadable", err)
	}

	if store.Expired(rec) {
		return cc.unusableRecord(ctx, sess, store, "expired", fmt.Errorf("created at %s", rec.CreatedAt))
	}

	err = store.Validate(rec, cc.mode, factor)
	if err != nil {
		return nil, err
	}

	if cc.mode == checkpoint.ModeOutline {
		output, absErr := filepath.Abs(cc.output)
		if absErr != nil {
			return nil, fmt.Errorf("resolve output path: %w", absErr)
		}

		if rec.Output != output {
			return nil, fmt.Errorf("%w: checkpoint was written to %q", shuffle.ErrResumeMismatch, rec.Output)
		}
	}

	out.resuming(rec.Position)

	return rec.Checkpoint(), nil
}

// unusableRecord handles a stored record that cannot be trusted. An outline
// run starts over; a fresh outline run never reuses an existing output. An
// inline run refuses, since its plot may already be partly converted.
func (cc *convertCommand) unusableRecord(
	ctx context.Context, sess *session, store *checkpoint.Manager, reason string, cause error,
) (*shuffle.Checkpoint, error) {
	if cc.mode == checkpoint.ModeOutline {
		sess.logger.WarnContext(ctx, "ignoring "+reason+" checkpoint", "path", store.MetadataPath(), "error", cause)

		return nil, nil
	}

	return nil, fmt.Errorf("%w: %s checkpoint %s (%w); pass --checkpoint N to resume or --resume=false to start over",
		shuffle.ErrResumeMismatch, reason, store.MetadataPath(), cause)
}

func (cc *convertCommand) save(
	ctx context.Context, sess *session, store *checkpoint.Manager, engine *shuffle.Engine, position int64,
) {
	if store == nil {
		return
	}

	rec := checkpoint.Record{
		Mode:     cc.mode,
		Factor:   engine.Factor(),
		Nonces:   engine.Descriptor().NonceCount,
		Position: position,
	}

	if cc.mode == checkpoint.ModeOutline {
		output, err := filepath.Abs(cc.output)
		if err == nil {
			rec.Output = output
		}
	}

	err := store.Save(rec)
	if err != nil {
		sess.logger.WarnContext(ctx, "checkpoint not saved", "error", err)

		return
	}

	sess.logger.InfoContext(ctx, "checkpoint saved", "path", store.MetadataPath(), "position", position)
}

func (cc *convertCommand) clear(ctx context.Context, sess *session, store *checkpoint.Manager) {
	if store == nil {
		return
	}

	err := store.Clear()
	if err != nil {
		sess.logger.WarnContext(ctx, "checkpoint not cleared", "error", err)
	}
}

// startThrottle watches the configured process, if any. The returned
// function stops the monitor and waits for it.
func (cc *convertCommand) startThrottle(
	ctx context.Context, cmd *cobra.Command, sess *session, engine *shuffle.Engine, out *printer,
) (func(), error) {
	process := stringSetting(cmd, "process", cc.process, sess.cfg.Throttle.Process)
	if process == "" {
		return func() {}, nil
	}

	threshold, err := config.ParseThreshold(stringSetting(cmd, "threshold", cc.threshold, sess.cfg.Throttle.Threshold))
	if err != nil {
		return nil, err
	}

	src, err := cc.openSource(process)
	if errors.Is(err, throttle.ErrUnsupported) {
		sess.logger.WarnContext(ctx, "throttling disabled", "process", process, "error", err)

		return func() {}, nil
	}

	if err != nil {
		return nil, err
	}

	monitor := &throttle.Monitor{
		Source:       src,
		Target:       engine,
		Threshold:    float64(threshold),
		Interval:     sess.cfg.Throttle.Interval,
		Logger:       sess.logger,
		OnTransition: out.throttled,
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		runErr := monitor.Run(ctx)
		if runErr != nil {
			sess.logger.WarnContext(ctx, "throttle stopped", "process", process, "error", runErr)
		}
	}()

	sess.logger.InfoContext(ctx, "throttle watching process", "process", process, "threshold", threshold)

	return func() {
		cancel()
		<-done
	}, nil
}

func readyCheck(engine *shuffle.Engine) observability.ReadyCheck {
	return func(_ context.Context) error {
		if engine.Paused() {
			return errConversionPaused
		}

		return nil
	}
}

// stringSetting returns the flag value when it was set on the command line,
// else the configured value.
func stringSetting(cmd *cobra.Command, name, flagValue, configured string) string {
	if cmd.Flags().Changed(name) {
		return flagValue
	}

	return configured
}

func intSetting(cmd *cobra.Command, name string, flagValue, configured int) int {
	if cmd.Flags().Changed(name) {
		return flagValue
	}

	return configured
}
