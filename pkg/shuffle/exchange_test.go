package shuffle

import (
	"bytes"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/plotconv/pkg/plotfile"
)

// labelledBlock returns one scoop block of nonces scoops whose first hashes
// are first and second hashes are second.
func labelledBlock(nonces int, first, second byte) []byte {
	var block []byte

	for range nonces {
		block = append(block, bytes.Repeat([]byte{first}, plotfile.HashSize)...)
		block = append(block, bytes.Repeat([]byte{second}, plotfile.HashSize)...)
	}

	return block
}

func TestSwapSecondHashes(t *testing.T) {
	t.Parallel()

	a := labelledBlock(3, 0x01, 0x02)
	b := labelledBlock(3, 0x03, 0x04)

	swapSecondHashes(a, b)

	assert.Equal(t, labelledBlock(3, 0x01, 0x04), a)
	assert.Equal(t, labelledBlock(3, 0x03, 0x02), b)
}

func TestExchange_PairsMirrorBlocks(t *testing.T) {
	t.Parallel()

	const (
		nonces = 2
		factor = 4
	)

	blockSize := nonces * plotfile.ScoopSize

	var head, tail []byte
	for p := range factor {
		head = append(head, labelledBlock(nonces, 0xA0, byte(0x10+p))...)
		tail = append(tail, labelledBlock(nonces, 0xB0, byte(0x20+p))...)
	}

	var done atomic.Int64

	require.NoError(t, exchange(head, tail, blockSize, factor, 2, &done))

	for p := range factor {
		q := factor - 1 - p

		assert.Equal(t, labelledBlock(nonces, 0xA0, byte(0x20+q)), head[p*blockSize:(p+1)*blockSize], "head %d", p)
		assert.Equal(t, labelledBlock(nonces, 0xB0, byte(0x10+p)), tail[q*blockSize:(q+1)*blockSize], "tail %d", q)
	}

	assert.Equal(t, int64(factor), done.Load())
}

func TestExchange_SingleGroup(t *testing.T) {
	t.Parallel()

	head := labelledBlock(4, 0x01, 0x02)
	tail := labelledBlock(4, 0x03, 0x04)

	var done atomic.Int64

	require.NoError(t, exchange(head, tail, len(head), 1, 8, &done))

	assert.Equal(t, labelledBlock(4, 0x01, 0x04), head)
	assert.Equal(t, labelledBlock(4, 0x03, 0x02), tail)
	assert.Equal(t, int64(1), done.Load())
}

func TestExchange_IsSelfInverse(t *testing.T) {
	t.Parallel()

	const factor = 8

	blockSize := 3 * plotfile.ScoopSize
	head := make([]byte, factor*blockSize)
	tail := make([]byte, factor*blockSize)

	for i := range head {
		head[i] = byte(i)
		tail[i] = byte(255 - i%251)
	}

	origHead := bytes.Clone(head)
	origTail := bytes.Clone(tail)

	var done atomic.Int64

	require.NoError(t, exchange(head, tail, blockSize, factor, 3, &done))
	assert.NotEqual(t, origHead, head)

	require.NoError(t, exchange(head, tail, blockSize, factor, 3, &done))
	assert.Equal(t, origHead, head)
	assert.Equal(t, origTail, tail)
}

func TestStartIteration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		position int64
		want     int
		wantErr  bool
	}{
		{"fresh", 0, 0, false},
		{"aligned", 3 * 1024, 3, false},
		{"last boundary", 512 * 1024, 512, false},
		{"misaligned", 1000, 0, true},
		{"negative", -1024, 0, true},
		{"past end", 513 * 1024, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := startIteration(Checkpoint{Position: tt.position}, 1024, 512)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrResumeMismatch)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
