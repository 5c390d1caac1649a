package platform

import (
	"unsafe"

	"github.com/dterei/gotsc"
)

func flush(p unsafe.Pointer)

func load(p unsafe.Pointer) uint64

func timedLoad(p unsafe.Pointer) uint32

type nativePlatform struct{}

// Native returns the hardware platform. It fails if the processor lacks the
// serializing timestamp counter or the cache-line flush instruction.
func Native() (Platform, error) {
	if err := CheckPreconditions(); err != nil {
		return nil, err
	}

	return nativePlatform{}, nil
}

func (nativePlatform) Flush(p unsafe.Pointer) {
	flush(p)
}

func (nativePlatform) Load(p unsafe.Pointer) uint64 {
	return load(p)
}

func (nativePlatform) Time(p unsafe.Pointer) int {
	return int(int32(timedLoad(p)))
}

// TSCOverhead returns the cost in cycles of an empty timestamp-counter
// measurement.
func TSCOverhead() uint64 {
	return gotsc.TSCOverhead()
}
