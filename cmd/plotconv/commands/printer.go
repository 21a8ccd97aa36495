package commands

import (
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/plotconv/pkg/progress"
	"github.com/Sumatoshi-tech/plotconv/pkg/throttle"
	"github.com/Sumatoshi-tech/plotconv/pkg/units"
)

const progressBuffer = 16

// printer writes user-facing lines. Progress and throttle transitions arrive
// from different goroutines.
type printer struct {
	mu sync.Mutex
	w  io.Writer

	info  *color.Color
	ok    *color.Color
	warn  *color.Color
	pause *color.Color
}

func newPrinter(w io.Writer, noColor bool) *printer {
	p := &printer{
		w:     w,
		info:  color.New(color.FgCyan),
		ok:    color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		pause: color.New(color.FgMagenta),
	}

	if noColor {
		for _, c := range []*color.Color{p.info, p.ok, p.warn, p.pause} {
			c.DisableColor()
		}
	}

	return p
}

func (p *printer) linef(c *color.Color, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) memory(used int64) {
	p.linef(p.info, "Use %s of memory.", units.FormatBytes(float64(used)))
}

func (p *printer) snapshot(snap progress.Snapshot) {
	c := p.info
	if snap.Paused {
		c = p.pause
	}

	p.linef(c, "%s", snap)
}

// follow prints snapshots until ch is closed; the returned channel is
// closed once the last one is written.
func (p *printer) follow(ch <-chan progress.Snapshot) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)

		for snap := range ch {
			p.snapshot(snap)
		}
	}()

	return done
}

func (p *printer) throttled(paused bool, sample throttle.Sample) {
	rate := units.FormatBytes(sample.Total()) + "/s"
	if paused {
		p.linef(p.pause, "Paused: watched process is at %s.", rate)

		return
	}

	p.linef(p.info, "Resumed: watched process is at %s.", rate)
}

func (p *printer) resuming(position int64) {
	p.linef(p.info, "Resuming from checkpoint %d.", position)
}

func (p *printer) finished(path string) {
	p.linef(p.ok, "Conversion finished: %s", path)
}

func (p *printer) aborted(position int64) {
	p.linef(p.warn, "Conversion aborted. Resume with --checkpoint %d", position)
}
