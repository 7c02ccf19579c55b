package memory

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	guesthttp "github.com/wippyai/wasi-http-guest"
	"github.com/wippyai/wasi-http-guest/errors"
)

// GrowFunc extends the managed range so at least need more bytes are
// available. It returns the new upper limit.
type GrowFunc func(need uint32) (limit uint32, ok bool)

type span struct {
	start uint32
	end   uint32
}

// Heap is a first-fit allocator over a [base, limit) range of linear memory.
// Adjacent free spans are coalesced on Free. Address 0 is never handed out.
type Heap struct {
	grow  GrowFunc
	used  map[uint32]uint32
	free  []span
	limit uint32
	inUse uint32
	mu    sync.Mutex
}

// NewHeap manages [base, limit). A base of 0 is moved up to 8.
func NewHeap(base, limit uint32) *Heap {
	if base < 8 {
		base = 8
	}
	h := &Heap{
		used:  make(map[uint32]uint32),
		limit: limit,
	}
	if limit > base {
		h.free = []span{{start: base, end: limit}}
	}
	return h
}

// WithGrow sets the callback used when no free span fits.
func (h *Heap) WithGrow(fn GrowFunc) *Heap {
	h.grow = fn
	return h
}

func alignTo(offset, align uint32) uint32 {
	if align <= 1 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

func validAlign(align uint32) bool {
	return align != 0 && align&(align-1) == 0
}

// Alloc returns the first region that fits size bytes at the given alignment.
func (h *Heap) Alloc(size, align uint32) (uint32, error) {
	if size == 0 {
		return 0, errors.InvalidInput(errors.PhaseMemory, "zero-size allocation")
	}
	if !validAlign(align) {
		return 0, errors.New(errors.PhaseMemory, errors.KindInvalidInput).
			Value(align).
			Detail("alignment %d is not a power of two", align).
			Build()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if ptr, ok := h.take(size, align); ok {
		return ptr, nil
	}
	if h.grow != nil && h.extend(uint64(size)+uint64(align)) {
		if ptr, ok := h.take(size, align); ok {
			return ptr, nil
		}
	}
	return 0, errors.AllocationFailed(errors.PhaseMemory, size, align)
}

func (h *Heap) take(size, align uint32) (uint32, bool) {
	for i, s := range h.free {
		start := alignTo(s.start, align)
		if start < s.start || uint64(start)+uint64(size) > uint64(s.end) {
			continue
		}
		end := start + size

		var rest []span
		if start > s.start {
			rest = append(rest, span{start: s.start, end: start})
		}
		if end < s.end {
			rest = append(rest, span{start: end, end: s.end})
		}
		h.free = append(h.free[:i], append(rest, h.free[i+1:]...)...)

		h.used[start] = size
		h.inUse += size
		return start, true
	}
	return 0, false
}

func (h *Heap) extend(need uint64) bool {
	if need > uint64(^uint32(0)) {
		return false
	}
	prev := h.limit
	limit, ok := h.grow(uint32(need))
	if !ok || limit <= prev {
		return false
	}
	h.limit = limit
	h.insert(span{start: prev, end: limit})
	return true
}

// Free returns a region. Unknown pointers and size mismatches are logged and
// ignored.
func (h *Heap) Free(ptr, size, align uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	got, ok := h.used[ptr]
	if !ok {
		Logger().Warn("free of unknown region", zap.Uint32("ptr", ptr), zap.Uint32("size", size))
		return
	}
	if got != size {
		Logger().Warn("free size mismatch",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Uint32("allocated", got))
		return
	}
	delete(h.used, ptr)
	h.inUse -= size
	h.insert(span{start: ptr, end: ptr + size})
}

// insert adds a free span keeping the list sorted and coalesced.
func (h *Heap) insert(s span) {
	i := sort.Search(len(h.free), func(i int) bool { return h.free[i].start >= s.start })
	h.free = append(h.free, span{})
	copy(h.free[i+1:], h.free[i:])
	h.free[i] = s

	if i+1 < len(h.free) && h.free[i].end == h.free[i+1].start {
		h.free[i].end = h.free[i+1].end
		h.free = append(h.free[:i+1], h.free[i+2:]...)
	}
	if i > 0 && h.free[i-1].end == h.free[i].start {
		h.free[i-1].end = h.free[i].end
		h.free = append(h.free[:i], h.free[i+1:]...)
	}
}

// InUse returns the number of allocated bytes.
func (h *Heap) InUse() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inUse
}

// Allocations returns the number of live regions.
func (h *Heap) Allocations() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.used)
}

// FreeSpans returns the number of free spans, for fragmentation checks.
func (h *Heap) FreeSpans() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.free)
}

var _ guesthttp.Allocator = (*Heap)(nil)
