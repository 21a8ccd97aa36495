package shuffle

import "fmt"

// Checkpoint is the byte offset of the first iteration that has not been
// written back. It is always a multiple of the iteration size of the run
// that produced it. The zero value starts a fresh run.
type Checkpoint struct {
	Position int64 `json:"position" yaml:"position"`
}

// startIteration maps a checkpoint to the iteration index it resumes at.
// Offsets that do not fall on an iteration boundary for the current factor
// are rejected.
func startIteration(cp Checkpoint, iterationSize int64, iterations int) (int, error) {
	if cp.Position < 0 || cp.Position%iterationSize != 0 {
		return 0, fmt.Errorf("%w: checkpoint %d is not a multiple of %d bytes",
			ErrResumeMismatch, cp.Position, iterationSize)
	}

	start := cp.Position / iterationSize
	if start > int64(iterations) {
		return 0, fmt.Errorf("%w: checkpoint %d is past the last iteration boundary %d",
			ErrResumeMismatch, cp.Position, int64(iterations)*iterationSize)
	}

	return int(start), nil
}
