// Package plotfile describes plot files: their on-disk geometry and the
// identity encoded in their file names.
package plotfile

// Plot geometry.
const (
	// ScoopsPerNonce is the number of scoops in one nonce.
	ScoopsPerNonce = 4096

	// HashSize is the size of one half-record in bytes.
	HashSize = 32

	// ScoopSize is the size of one scoop: two hashes.
	ScoopSize = 2 * HashSize

	// NonceSize is the size of one nonce on disk.
	NonceSize = ScoopSize * ScoopsPerNonce

	// GroupPairs is the number of head/tail scoop-group pairs exchanged by a conversion.
	GroupPairs = ScoopsPerNonce / 2
)
