package platform

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// AffinityPinner pins the calling goroutine's OS thread to one CPU at a
// time. The first Pin locks the goroutine to its thread for the rest of its
// life.
type AffinityPinner struct {
	Mapping CoreMapping

	locked bool
}

// NewAffinityPinner creates a pinner that uses the given core mapping.
func NewAffinityPinner(mapping CoreMapping) *AffinityPinner {
	return &AffinityPinner{Mapping: mapping}
}

// Pin moves the calling thread to core.
func (p *AffinityPinner) Pin(core int) error {
	if !p.locked {
		runtime.LockOSThread()
		p.locked = true
	}

	cpu := p.Mapping.CPU(core)

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return affinityError(core, cpu, err)
	}

	return nil
}
