//go:build !linux

package throttle

import "fmt"

// OpenProcessSource reports ErrUnsupported; throttling is disabled on this platform.
func OpenProcessSource(name string) (Source, error) {
	return nil, fmt.Errorf("%w: cannot watch %s", ErrUnsupported, name)
}
