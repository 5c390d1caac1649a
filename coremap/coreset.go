package coremap

import (
	"fmt"
	"math/bits"
)

// MaxCores is the largest number of cores a CoreSet can hold.
const MaxCores = 64

// A CoreSet is a set of core ids below MaxCores.
type CoreSet uint64

// Singleton returns the set that holds only core.
func Singleton(core int) CoreSet {
	if core < 0 || core >= MaxCores {
		panic(fmt.Sprintf("core %d out of range", core))
	}

	return CoreSet(1) << core
}

// AllCores returns the set of cores 0..n-1.
func AllCores(n int) CoreSet {
	if n >= MaxCores {
		return ^CoreSet(0)
	}

	return Singleton(n) - 1
}

// Empty tells if the set has no core.
func (s CoreSet) Empty() bool {
	return s == 0
}

// Has tells if core is in the set.
func (s CoreSet) Has(core int) bool {
	return core >= 0 && core < MaxCores && s&(CoreSet(1)<<core) != 0
}

// IsSingleton tells if the set holds exactly one core.
func (s CoreSet) IsSingleton() bool {
	return s != 0 && s&(s-1) == 0
}

// Only returns the core of a singleton set, or -1.
func (s CoreSet) Only() int {
	if !s.IsSingleton() {
		return -1
	}

	return bits.TrailingZeros64(uint64(s))
}

// Intersects tells if the sets share a core.
func (s CoreSet) Intersects(o CoreSet) bool {
	return s&o != 0
}

// RemoveAll returns s without the cores of o.
func (s CoreSet) RemoveAll(o CoreSet) CoreSet {
	return s &^ o
}

// Equal tells if the sets hold the same cores.
func (s CoreSet) Equal(o CoreSet) bool {
	return s == o
}

// Len returns the number of cores.
func (s CoreSet) Len() int {
	return bits.OnesCount64(uint64(s))
}

// Cores returns the cores in ascending order.
func (s CoreSet) Cores() []int {
	cores := make([]int, 0, s.Len())

	for v := uint64(s); v != 0; v &= v - 1 {
		cores = append(cores, bits.TrailingZeros64(v))
	}

	return cores
}

// String formats the set as a hexadecimal mask.
func (s CoreSet) String() string {
	return fmt.Sprintf("0x%02x", uint64(s))
}
