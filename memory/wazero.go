package memory

import (
	"github.com/tetratelabs/wazero/api"

	guesthttp "github.com/wippyai/wasi-http-guest"
	"github.com/wippyai/wasi-http-guest/errors"
)

// Wazero wraps a wazero memory to implement guesthttp.Memory.
// The reference host uses it to reach a real guest's memory, and tests use
// it to get a linear memory with wasm bounds semantics.
type Wazero struct {
	mem api.Memory
}

func NewWazero(mem api.Memory) *Wazero {
	return &Wazero{mem: mem}
}

func (m *Wazero) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseMemory, offset, length)
	}
	return data, nil
}

func (m *Wazero) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseMemory, offset, uint32(len(data)))
	}
	return nil
}

func (m *Wazero) ReadU8(offset uint32) (uint8, error) {
	val, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMemory, offset, 1)
	}
	return val, nil
}

func (m *Wazero) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMemory, offset, 4)
	}
	return val, nil
}

func (m *Wazero) ReadU64(offset uint32) (uint64, error) {
	val, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMemory, offset, 8)
	}
	return val, nil
}

func (m *Wazero) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return errors.OutOfBounds(errors.PhaseMemory, offset, 1)
	}
	return nil
}

func (m *Wazero) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseMemory, offset, 4)
	}
	return nil
}

func (m *Wazero) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseMemory, offset, 8)
	}
	return nil
}

func (m *Wazero) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// GrowFunc adapts memory.grow for a Heap.
func (m *Wazero) GrowFunc() GrowFunc {
	return func(need uint32) (uint32, bool) {
		pages := (need + PageSize - 1) / PageSize
		if _, ok := m.mem.Grow(pages); !ok {
			return m.mem.Size(), false
		}
		return m.mem.Size(), true
	}
}

// Compile-time check that Wazero implements guesthttp.Memory and MemorySizer
var _ guesthttp.Memory = (*Wazero)(nil)
var _ guesthttp.MemorySizer = (*Wazero)(nil)
