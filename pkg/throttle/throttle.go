// Package throttle pauses a conversion while another process is busy with
// disk I/O, and resumes it once that process quiets down.
package throttle

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for throttle sources.
var (
	// ErrEnvironment indicates the watched process cannot be sampled.
	ErrEnvironment = errors.New("throttle environment error")

	// ErrProcessNotFound means no running process has the watched name.
	ErrProcessNotFound = fmt.Errorf("%w: process not found", ErrEnvironment)

	// ErrAmbiguousProcess means more than one running process has the watched name.
	ErrAmbiguousProcess = fmt.Errorf("%w: more than one process matches", ErrEnvironment)

	// ErrUnsupported means per-process I/O sampling is not available on this platform.
	ErrUnsupported = errors.New("process I/O sampling is not supported on this platform")
)

// Sample is the disk throughput of a process, in bytes per second.
type Sample struct {
	ReadBytesPerSec  float64
	WriteBytesPerSec float64
}

// Total is the combined read and write rate.
func (s Sample) Total() float64 {
	return s.ReadBytesPerSec + s.WriteBytesPerSec
}

// Source delivers throughput samples for one process.
type Source interface {
	Sample(ctx context.Context) (Sample, error)
}
