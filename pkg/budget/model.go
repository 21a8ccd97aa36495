// Package budget turns a memory budget into the partition factor used by the
// shuffle engine.
package budget

import (
	"math"

	"github.com/Sumatoshi-tech/plotconv/pkg/plotfile"
)

// MaxBufferSize is the largest single read/write buffer the planner will
// project. Each buffer must be one contiguous allocation.
const MaxBufferSize = math.MaxInt32

// UsedMemory is the size of one engine buffer for the given factor: factor
// scoop blocks of nonces scoops each. The engine holds two such buffers.
func UsedMemory(nonces int64, factor int) int64 {
	return nonces * plotfile.ScoopSize * int64(factor)
}
