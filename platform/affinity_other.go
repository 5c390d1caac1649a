//go:build !linux

package platform

import "fmt"

// AffinityPinner is not supported on this operating system.
type AffinityPinner struct {
	Mapping CoreMapping
}

// NewAffinityPinner creates a pinner that always fails.
func NewAffinityPinner(mapping CoreMapping) *AffinityPinner {
	return &AffinityPinner{Mapping: mapping}
}

// Pin always fails.
func (p *AffinityPinner) Pin(core int) error {
	return affinityError(core, p.Mapping.CPU(core),
		fmt.Errorf("%w: sched_setaffinity", ErrUnsupportedPlatform))
}
