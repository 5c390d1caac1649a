package platform

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"os"

	"golang.org/x/sys/unix"
)

const (
	pagemapPath    = "/proc/self/pagemap"
	pagemapPresent = uint64(1) << 63
	pagemapPFNMask = uint64(1)<<55 - 1
	smallPageSize  = 4096
)

// AllocBuffer maps size bytes of zeroed, private, populated memory. When
// hugePageSize is non-zero the mapping is backed by huge pages of that size
// and fails if they are not available. Otherwise the kernel is only advised
// to use transparent huge pages. The returned function unmaps the buffer.
func AllocBuffer(size int, hugePageSize int) ([]byte, func() error, error) {
	flags := unix.MAP_ANONYMOUS | unix.MAP_PRIVATE | unix.MAP_POPULATE
	if hugePageSize > 0 {
		flags |= unix.MAP_HUGETLB |
			bits.TrailingZeros(uint(hugePageSize))<<unix.MAP_HUGE_SHIFT
	}

	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, flags)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %d bytes: %v", ErrAllocation, size, err)
	}

	if hugePageSize == 0 {
		_ = unix.Madvise(mem, unix.MADV_HUGEPAGE)
	}

	release := func() error {
		return unix.Munmap(mem)
	}

	return mem, release, nil
}

// PhysAddr translates a virtual address of this process into a physical
// address. Without CAP_SYS_ADMIN the kernel reports frame 0, so the result
// is 0 plus the page offset.
func PhysAddr(vaddr uintptr) (uint64, error) {
	f, err := os.Open(pagemapPath)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPagemap, err)
	}
	defer f.Close()

	buf := make([]byte, 8)
	offset := int64(vaddr/smallPageSize) * 8

	if _, err := f.ReadAt(buf, offset); err != nil {
		return 0, fmt.Errorf("%w: 0x%x: %v", ErrPagemap, vaddr, err)
	}

	entry := binary.LittleEndian.Uint64(buf)
	if entry&pagemapPresent == 0 {
		return 0, fmt.Errorf("%w: 0x%x not present", ErrPagemap, vaddr)
	}

	pfn := entry & pagemapPFNMask

	return pfn*smallPageSize + uint64(vaddr%smallPageSize), nil
}
