package budget

import "github.com/Sumatoshi-tech/plotconv/pkg/plotfile"

// PartitionFactor returns how many scoop-group pairs the engine batches per
// read/exchange/write cycle for a plot of nonces nonces.
//
// The search grows the factor while the projected buffer stays under the
// budget, under MaxBufferSize, and the factor stays below GroupPairs. The
// result is the largest factor seen that divides GroupPairs exactly, since the
// engine iterates GroupPairs/factor times. A zero budget means unconstrained
// and yields 1.
func PartitionFactor(nonces, budgetBytes int64) int {
	if budgetBytes <= 0 {
		return 1
	}

	usage := UsedMemory(nonces, 1)
	factor := 1
	valid := 1

	for usage < budgetBytes && factor < plotfile.GroupPairs && usage < MaxBufferSize {
		factor++
		usage = UsedMemory(nonces, factor)

		if usage > budgetBytes || usage > MaxBufferSize {
			break
		}

		if plotfile.GroupPairs%factor == 0 {
			valid = factor
		}
	}

	return valid
}
