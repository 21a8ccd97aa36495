//go:build linux

package throttle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/procfs"
)

// ProcessSource samples /proc/<pid>/io of one process. Rates are the change
// of the storage-layer read_bytes and write_bytes counters over wall time;
// the first sample only primes the counters and reports zero.
type ProcessSource struct {
	proc procfs.Proc
	name string
	now  func() time.Time

	mu        sync.Mutex
	primed    bool
	lastRead  uint64
	lastWrite uint64
	lastAt    time.Time
}

// OpenProcessSource watches the process called name using the host /proc.
func OpenProcessSource(name string) (Source, error) {
	fs, err := procfs.NewFS(procfs.DefaultMountPoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnvironment, err)
	}

	src, err := NewProcessSource(fs, name)
	if err != nil {
		return nil, err
	}

	return src, nil
}

// NewProcessSource finds the single process in fs whose command name equals
// name, ignoring case.
func NewProcessSource(fs procfs.FS, name string) (*ProcessSource, error) {
	procs, err := fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("%w: list processes: %w", ErrEnvironment, err)
	}

	var matches []procfs.Proc

	for _, p := range procs {
		comm, commErr := p.Comm()
		if commErr != nil {
			continue
		}

		if strings.EqualFold(comm, name) {
			matches = append(matches, p)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, name)
	case 1:
		return &ProcessSource{proc: matches[0], name: name, now: time.Now}, nil
	default:
		pids := make([]string, 0, len(matches))
		for _, p := range matches {
			pids = append(pids, strconv.Itoa(p.PID))
		}

		return nil, fmt.Errorf("%w: %s (pids %s)", ErrAmbiguousProcess, name, strings.Join(pids, ", "))
	}
}

// PID returns the watched process id.
func (s *ProcessSource) PID() int {
	return s.proc.PID
}

// Sample reads the I/O counters and returns the rate since the previous call.
func (s *ProcessSource) Sample(_ context.Context) (Sample, error) {
	pio, err := s.proc.IO()
	if err != nil {
		return Sample{}, fmt.Errorf("%w: read io of %s (pid %d): %w", ErrEnvironment, s.name, s.proc.PID, err)
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		s.primed = true
		s.lastRead = pio.ReadBytes
		s.lastWrite = pio.WriteBytes
		s.lastAt = now
	}()

	if !s.primed {
		return Sample{}, nil
	}

	elapsed := now.Sub(s.lastAt).Seconds()
	if elapsed <= 0 {
		return Sample{}, nil
	}

	return Sample{
		ReadBytesPerSec:  rate(s.lastRead, pio.ReadBytes, elapsed),
		WriteBytesPerSec: rate(s.lastWrite, pio.WriteBytes, elapsed),
	}, nil
}

func rate(prev, cur uint64, seconds float64) float64 {
	if cur < prev {
		return 0
	}

	return float64(cur-prev) / seconds
}
