// Package platform isolates the architecture and operating system specific
// primitives: cache-line flush, serialized timestamp reads, plain loads, CPU
// affinity and buffer allocation.
package platform

import (
	"fmt"
	"unsafe"
)

type constError string

func (e constError) Error() string { return string(e) }

// Errors reported by the platform layer.
const (
	ErrUnsupportedPlatform = constError("unsupported platform")
	ErrAffinity            = constError("cannot set cpu affinity")
	ErrAllocation          = constError("cannot allocate buffer")
	ErrPagemap             = constError("cannot read pagemap")
)

// A Platform provides the three primitives that all measurements are built
// on. Callers must be pinned to one logical core while using it.
type Platform interface {
	// Flush evicts the line holding p from every cache level.
	Flush(p unsafe.Pointer)

	// Load reads the 8-byte word at p, bringing its line into the cache.
	Load(p unsafe.Pointer) uint64

	// Time loads p between two serialized timestamp reads and returns the
	// elapsed cycles.
	Time(p unsafe.Pointer) int
}

// A Pinner moves the calling thread to a logical core.
type Pinner interface {
	Pin(core int) error
}

// CoreMapping converts logical core indices into CPU ids as seen by the
// operating system. Core c runs on CPU c*Stride+Offset.
type CoreMapping struct {
	Stride int
	Offset int
}

// CPU returns the CPU id of core.
func (m CoreMapping) CPU(core int) int {
	stride := m.Stride
	if stride == 0 {
		stride = 1
	}

	return core*stride + m.Offset
}

func affinityError(core, cpu int, err error) error {
	return fmt.Errorf("%w: core %d (cpu %d): %v", ErrAffinity, core, cpu, err)
}
