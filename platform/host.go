package platform

import (
	"fmt"

	"github.com/klauspost/cpuid/v2"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
)

// Host describes the processor and memory of the machine.
type Host struct {
	Vendor         string
	Brand          string
	PhysicalCores  int
	ThreadsPerCore int
	LogicalCPUs    int
	OnlineCPUs     int
	CacheLine      int
	L2Size         int
	L3Size         int
	HasRDTSCP      bool
	HasCLFLUSH     bool
	TotalMemory    uint64
	FreeMemory     uint64
}

// DetectHost collects the processor description from CPUID and the
// operating system counts from the kernel.
func DetectHost() (Host, error) {
	c := cpuid.CPU

	h := Host{
		Vendor:         c.VendorString,
		Brand:          c.BrandName,
		PhysicalCores:  c.PhysicalCores,
		ThreadsPerCore: c.ThreadsPerCore,
		LogicalCPUs:    c.LogicalCores,
		CacheLine:      c.CacheLine,
		L2Size:         c.Cache.L2,
		L3Size:         c.Cache.L3,
		HasRDTSCP:      c.Supports(cpuid.RDTSCP),
		HasCLFLUSH:     c.Supports(cpuid.SSE2),
	}

	online, err := cpu.Counts(true)
	if err != nil {
		return h, fmt.Errorf("counting cpus: %w", err)
	}
	h.OnlineCPUs = online

	vm, err := mem.VirtualMemory()
	if err != nil {
		return h, fmt.Errorf("reading memory info: %w", err)
	}
	h.TotalMemory = vm.Total
	h.FreeMemory = vm.Available

	return h, nil
}

// CoreMapping guesses how logical core indices map to CPU ids: one CPU per
// physical core, skipping hyper-thread siblings that the kernel numbers
// adjacently.
func (h Host) CoreMapping() CoreMapping {
	stride := h.ThreadsPerCore
	if stride < 1 {
		stride = 1
	}

	return CoreMapping{Stride: stride}
}

// CheckPreconditions fails if the processor cannot run the measurements.
func CheckPreconditions() error {
	if !cpuid.CPU.Supports(cpuid.RDTSCP) {
		return fmt.Errorf("%w: rdtscp not available", ErrUnsupportedPlatform)
	}

	if !cpuid.CPU.Supports(cpuid.SSE2) {
		return fmt.Errorf("%w: clflush not available", ErrUnsupportedPlatform)
	}

	return nil
}
