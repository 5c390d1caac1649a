package cmd

import (
	"fmt"
	"math/rand/v2"
	"unsafe"

	"github.com/sarchlab/llcmap/config"
	"github.com/sarchlab/llcmap/platform"
	"github.com/sarchlab/llcmap/probe"
	"github.com/sarchlab/llcmap/simllc"
)

// A session owns the eviction buffer and the platform it is measured
// through, either the hardware or a simulated cache.
type session struct {
	cfg      config.Config
	buf      *probe.Buffer
	platform platform.Platform
	pinner   platform.Pinner
	probe    *probe.Probe

	// scratch is memory outside the buffer, at least one small page.
	scratch        []byte
	releaseScratch func() error

	// llc is the simulated cache, nil on hardware.
	llc *simllc.LLC
}

func openSession(c config.Config, simulate bool) (*session, error) {
	var (
		s   *session
		err error
	)

	if simulate {
		s, err = openSimulated(c)
	} else {
		s, err = openNative(c)
	}

	if err != nil {
		return nil, err
	}

	s.buf.LinkGlobal(rand.New(rand.NewPCG(c.Seed, c.Seed^0x9e3779b9)))
	s.probe = probe.New(s.buf, s.platform, c.Probe())

	return s, nil
}

func openNative(c config.Config) (*session, error) {
	p, err := platform.Native()
	if err != nil {
		return nil, err
	}

	mem, release, err := platform.AllocBuffer(c.BufferSize, c.HugePageSize)
	if err != nil {
		return nil, err
	}

	buf, err := probe.NewBuffer(mem, c.Geometry(), release)
	if err != nil {
		_ = release()
		return nil, err
	}

	scratch, releaseScratch, err := platform.AllocBuffer(
		c.Geometry().PageSize(), 0)
	if err != nil {
		_ = buf.Close()
		return nil, err
	}

	return &session{
		cfg:            c,
		buf:            buf,
		platform:       p,
		pinner:         platform.NewAffinityPinner(c.CoreMapping()),
		scratch:        scratch,
		releaseScratch: releaseScratch,
	}, nil
}

func openSimulated(c config.Config) (*session, error) {
	geom := c.Geometry()
	stride := geom.SetIndexSize()

	mem := probe.AlignedBytes(c.BufferSize+stride, stride)

	buf, err := probe.NewBuffer(mem[:c.BufferSize], geom, nil)
	if err != nil {
		return nil, err
	}

	llc := simllc.New(simulatedCache(c), buf.Base())

	return &session{
		cfg:      c,
		buf:      buf,
		platform: llc,
		pinner:   llc,
		scratch:  mem[c.BufferSize:],
		llc:      llc,
	}, nil
}

// simulatedCache gives every core one slice with as many sets as there are
// set-indices. Slices are owned by cores in a seeded random order.
func simulatedCache(c config.Config) simllc.Config {
	geom := c.Geometry()

	sc := simllc.DefaultConfig()
	sc.Slices = c.Cores
	sc.Ways = c.Ways
	sc.Sets = geom.SetIndexLines()
	sc.LineSize = geom.LineSize()
	sc.PageSize = geom.SetIndexSize()
	sc.Owner = rand.New(rand.NewPCG(c.Seed, 0)).Perm(c.Cores)

	return sc
}

// scratchLine returns the address of a line in the scratch page.
func (s *session) scratchLine(offset int) (unsafe.Pointer, error) {
	page := s.cfg.Geometry().PageSize()
	if offset < 0 || offset >= page {
		return nil, fmt.Errorf("offset 0x%x outside a page of 0x%x bytes",
			offset, page)
	}

	line := offset &^ (s.cfg.Geometry().LineSize() - 1)

	return unsafe.Pointer(&s.scratch[line]), nil
}

// hugePageAddresses returns the virtual and physical address of every huge
// page of the buffer.
func (s *session) hugePageAddresses() ([][2]uint64, error) {
	if s.llc != nil || s.cfg.HugePageSize == 0 {
		return nil, nil
	}

	n := s.cfg.BufferSize / s.cfg.HugePageSize
	addrs := make([][2]uint64, 0, n)

	for i := 0; i < n; i++ {
		virt := uintptr(s.buf.Base()) + uintptr(i*s.cfg.HugePageSize)

		phys, err := platform.PhysAddr(virt)
		if err != nil {
			return addrs, err
		}

		addrs = append(addrs, [2]uint64{uint64(virt), phys})
	}

	return addrs, nil
}

func (s *session) Close() error {
	err := s.buf.Close()

	if s.releaseScratch != nil {
		if rerr := s.releaseScratch(); err == nil {
			err = rerr
		}
	}

	return err
}
