//go:build !amd64

package platform

import "fmt"

// Native is only available on amd64.
func Native() (Platform, error) {
	return nil, fmt.Errorf("%w: no timing primitives for this architecture",
		ErrUnsupportedPlatform)
}

// TSCOverhead is only available on amd64.
func TSCOverhead() uint64 {
	return 0
}
