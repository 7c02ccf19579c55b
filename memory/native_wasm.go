//go:build wasip1

package memory

import (
	"encoding/binary"
	"sync"
	"unsafe"

	guesthttp "github.com/wippyai/wasi-http-guest"
	"github.com/wippyai/wasi-http-guest/errors"
)

// Native is the guest's own linear memory. Pointers are real addresses, so
// regions handed to the host are plain Go buffers kept reachable until freed.
type Native struct {
	live map[uint32][]byte
	mu   sync.Mutex
}

func NewNative() *Native {
	return &Native{live: make(map[uint32][]byte)}
}

func region(offset, length uint32) []byte {
	if length == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(offset))), length)
}

func (m *Native) Read(offset, length uint32) ([]byte, error) {
	if offset == 0 && length != 0 {
		return nil, errors.OutOfBounds(errors.PhaseMemory, offset, length)
	}
	return region(offset, length), nil
}

func (m *Native) Write(offset uint32, data []byte) error {
	if offset == 0 && len(data) != 0 {
		return errors.OutOfBounds(errors.PhaseMemory, offset, uint32(len(data)))
	}
	copy(region(offset, uint32(len(data))), data)
	return nil
}

func (m *Native) ReadU8(offset uint32) (uint8, error) {
	b, err := m.Read(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (m *Native) ReadU32(offset uint32) (uint32, error) {
	b, err := m.Read(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m *Native) ReadU64(offset uint32) (uint64, error) {
	b, err := m.Read(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (m *Native) WriteU8(offset uint32, value uint8) error {
	return m.Write(offset, []byte{value})
}

func (m *Native) WriteU32(offset uint32, value uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], value)
	return m.Write(offset, b[:])
}

func (m *Native) WriteU64(offset uint32, value uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], value)
	return m.Write(offset, b[:])
}

// Alloc returns the address of a fresh Go buffer aligned to align.
func (m *Native) Alloc(size, align uint32) (uint32, error) {
	if size == 0 {
		return 0, errors.InvalidInput(errors.PhaseMemory, "zero-size allocation")
	}
	if align == 0 {
		align = 1
	}
	buf := make([]byte, size+align-1)
	base := uint32(uintptr(unsafe.Pointer(&buf[0])))
	ptr := alignTo(base, align)

	m.mu.Lock()
	m.live[ptr] = buf
	m.mu.Unlock()
	return ptr, nil
}

func (m *Native) Free(ptr, size, align uint32) {
	m.mu.Lock()
	delete(m.live, ptr)
	m.mu.Unlock()
}

var _ guesthttp.Memory = (*Native)(nil)
var _ guesthttp.Allocator = (*Native)(nil)
