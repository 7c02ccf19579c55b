package memory

import (
	"encoding/binary"

	guesthttp "github.com/wippyai/wasi-http-guest"
	"github.com/wippyai/wasi-http-guest/errors"
)

// PageSize is the WebAssembly page size.
const PageSize = 65536

// Linear is a growable byte-slice memory addressed like wasm linear memory.
// Reads return views into the backing slice; views are invalidated by Grow.
type Linear struct {
	data     []byte
	maxPages uint32
}

// NewLinear creates a memory of the given number of pages.
// maxPages of 0 means the largest size whose byte length fits in 32 bits.
func NewLinear(pages, maxPages uint32) *Linear {
	if maxPages == 0 || maxPages > 65535 {
		maxPages = 65535
	}
	if pages > maxPages {
		pages = maxPages
	}
	return &Linear{
		data:     make([]byte, int(pages)*PageSize),
		maxPages: maxPages,
	}
}

func (m *Linear) Size() uint32 {
	return uint32(len(m.data))
}

// Grow adds delta pages and returns the previous page count.
func (m *Linear) Grow(delta uint32) (uint32, bool) {
	prev := uint32(len(m.data) / PageSize)
	if uint64(prev)+uint64(delta) > uint64(m.maxPages) {
		return prev, false
	}
	if delta == 0 {
		return prev, true
	}
	grown := make([]byte, int(prev+delta)*PageSize)
	copy(grown, m.data)
	m.data = grown
	return prev, true
}

// GrowFunc adapts Grow for a Heap.
func (m *Linear) GrowFunc() GrowFunc {
	return func(need uint32) (uint32, bool) {
		pages := (need + PageSize - 1) / PageSize
		if _, ok := m.Grow(pages); !ok {
			return m.Size(), false
		}
		return m.Size(), true
	}
}

func (m *Linear) check(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(m.data)) {
		return errors.OutOfBounds(errors.PhaseMemory, offset, length)
	}
	return nil
}

func (m *Linear) Read(offset, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	return m.data[offset : offset+length], nil
}

func (m *Linear) Write(offset uint32, data []byte) error {
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *Linear) ReadU8(offset uint32) (uint8, error) {
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return m.data[offset], nil
}

func (m *Linear) ReadU32(offset uint32) (uint32, error) {
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.data[offset:]), nil
}

func (m *Linear) ReadU64(offset uint32) (uint64, error) {
	if err := m.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.data[offset:]), nil
}

func (m *Linear) WriteU8(offset uint32, value uint8) error {
	if err := m.check(offset, 1); err != nil {
		return err
	}
	m.data[offset] = value
	return nil
}

func (m *Linear) WriteU32(offset uint32, value uint32) error {
	if err := m.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[offset:], value)
	return nil
}

func (m *Linear) WriteU64(offset uint32, value uint64) error {
	if err := m.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.data[offset:], value)
	return nil
}

var _ guesthttp.Memory = (*Linear)(nil)
var _ guesthttp.MemorySizer = (*Linear)(nil)
