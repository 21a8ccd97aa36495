// Package safeconv provides checked integer conversions for buffer sizes
// and file offsets.
package safeconv

import "math"

// MaxInt is the maximum value for int type (platform-dependent).
const MaxInt = int(^uint(0) >> 1)

// MustInt64ToInt converts int64 to int, panics on overflow.
// Use only when the value has already been bounded by the caller.
func MustInt64ToInt(v int64) int {
	if v < math.MinInt || v > int64(MaxInt) {
		panic("safeconv: int64 to int overflow")
	}

	return int(v)
}

// ClampUint64ToInt64 converts uint64 to int64, clamping to math.MaxInt64.
func ClampUint64ToInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(v)
}

// Uint64ToInt64 converts uint64 to int64 and reports whether it fit.
func Uint64ToInt64(v uint64) (int64, bool) {
	if v > math.MaxInt64 {
		return 0, false
	}

	return int64(v), true
}

// ClampInt64ToUint64 converts int64 to uint64, clamping negatives to zero.
func ClampInt64ToUint64(v int64) uint64 {
	if v < 0 {
		return 0
	}

	return uint64(v)
}
