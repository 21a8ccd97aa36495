package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/plotconv/pkg/safeconv"
	"github.com/Sumatoshi-tech/plotconv/pkg/units"
)

// ParseMemoryBudget converts a memory budget to bytes. Sizes with a unit are
// parsed by go-humanize ("512MB", "2 GiB"); a bare integer is mebibytes.
// The empty string and "0" mean no budget.
func ParseMemoryBudget(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	mib, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		if mib < 0 || mib > (1<<63-1)/units.MiB {
			return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
		}

		return mib * units.MiB, nil
	}

	return parseSize(s)
}

// ParseRate converts a throughput such as "50MB" or "50MB/s" to bytes per
// second. A bare number is bytes per second.
func ParseRate(s string) (int64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "/s")
	if s == "" {
		return 0, nil
	}

	return parseSize(s)
}

// ParseThreshold parses a throttle threshold with ParseRate and rejects
// zero, which would keep the conversion paused for good.
func ParseThreshold(s string) (int64, error) {
	rate, err := ParseRate(s)
	if err != nil {
		return 0, err
	}

	if rate <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidThreshold, s)
	}

	return rate, nil
}

func parseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidSize, s, err)
	}

	v, ok := safeconv.Uint64ToInt64(n)
	if !ok {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidSize, s)
	}

	return v, nil
}
