package shuffle

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/plotconv/pkg/plotfile"
)

// exchange swaps the second hash of every scoop between the head and tail
// buffers of one iteration. Each buffer holds factor scoop blocks of
// blockSize bytes; head block p pairs with tail block factor-1-p. done is
// incremented once per finished block pair.
func exchange(head, tail []byte, blockSize, factor, workers int, done *atomic.Int64) error {
	if factor == 1 {
		swapSecondHashes(head, tail)
		done.Add(1)

		return nil
	}

	var g errgroup.Group

	g.SetLimit(workers)

	for p := range factor {
		g.Go(func() error {
			q := factor - 1 - p

			swapSecondHashes(head[p*blockSize:(p+1)*blockSize], tail[q*blockSize:(q+1)*blockSize])
			done.Add(1)

			return nil
		})
	}

	return g.Wait()
}

// swapSecondHashes exchanges bytes [32,64) of each scoop in a with the same
// range of the matching scoop in b. Both slices must have the same length.
func swapSecondHashes(a, b []byte) {
	var tmp [plotfile.HashSize]byte

	for off := plotfile.HashSize; off < len(a); off += plotfile.ScoopSize {
		ha := a[off : off+plotfile.HashSize]
		hb := b[off : off+plotfile.HashSize]

		copy(tmp[:], ha)
		copy(ha, hb)
		copy(hb, tmp[:])
	}
}
