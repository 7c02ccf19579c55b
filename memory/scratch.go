package memory

import (
	"sync"

	guesthttp "github.com/wippyai/wasi-http-guest"
	"github.com/wippyai/wasi-http-guest/errors"
)

type region struct {
	ptr, size, align uint32
}

// Scratch owns the temporary regions backing one host call. Every region
// comes from the same allocator and goes back to it on Close.
type Scratch struct {
	alloc   guesthttp.Allocator
	regions []region
}

var scratchPool = sync.Pool{
	New: func() any {
		return &Scratch{regions: make([]region, 0, 8)}
	},
}

const maxPooledRegions = 128

// NewScratch returns an empty scratch drawing from alloc.
func NewScratch(alloc guesthttp.Allocator) *Scratch {
	s := scratchPool.Get().(*Scratch)
	s.alloc = alloc
	return s
}

// Alloc reserves size bytes and keeps the region until Close.
func (s *Scratch) Alloc(size, align uint32) (uint32, error) {
	if s.alloc == nil {
		return 0, errors.Unsupported(errors.PhaseMemory, "scratch has no allocator")
	}
	ptr, err := s.alloc.Alloc(size, align)
	if err != nil {
		return 0, errors.New(errors.PhaseEncode, errors.KindAllocation).
			Detail("allocate %d bytes", size).
			Cause(err).
			Build()
	}
	if ptr == 0 {
		return 0, errors.AllocationFailed(errors.PhaseEncode, size, align)
	}
	s.regions = append(s.regions, region{ptr: ptr, size: size, align: align})
	return ptr, nil
}

// Close frees every region in reverse allocation order and returns the
// scratch to the pool. The scratch must not be used afterwards.
func (s *Scratch) Close() {
	for i := len(s.regions) - 1; i >= 0; i-- {
		r := s.regions[i]
		s.alloc.Free(r.ptr, r.size, r.align)
	}
	s.regions = s.regions[:0]
	s.alloc = nil
	if cap(s.regions) <= maxPooledRegions {
		scratchPool.Put(s)
	}
}
