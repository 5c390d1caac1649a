//go:build !linux

package platform

import "fmt"

// AllocBuffer falls back to a heap allocation. Huge pages are not available.
func AllocBuffer(size int, hugePageSize int) ([]byte, func() error, error) {
	if hugePageSize > 0 {
		return nil, nil, fmt.Errorf("%w: huge pages: %v",
			ErrAllocation, ErrUnsupportedPlatform)
	}

	mem := make([]byte, size)

	return mem, func() error { return nil }, nil
}

// PhysAddr is not available on this operating system.
func PhysAddr(vaddr uintptr) (uint64, error) {
	return 0, fmt.Errorf("%w: 0x%x: %v", ErrPagemap, vaddr, ErrUnsupportedPlatform)
}
