package memory

import (
	"unicode/utf8"

	guesthttp "github.com/wippyai/wasi-http-guest"
	"github.com/wippyai/wasi-http-guest/errors"
)

// Encoded is a (pointer, length) reference into linear memory.
// Len is a byte count. The empty value {0, 0} stands for an empty sequence.
type Encoded struct {
	Ptr uint32
	Len uint32
}

// Empty reports whether the region has no bytes.
func (e Encoded) Empty() bool {
	return e.Len == 0
}

// Codec encodes Go values into linear memory and decodes them back.
type Codec struct {
	mem   guesthttp.Memory
	alloc guesthttp.Allocator
}

// NewCodec creates a codec over the given memory and allocator.
func NewCodec(mem guesthttp.Memory, alloc guesthttp.Allocator) *Codec {
	return &Codec{mem: mem, alloc: alloc}
}

func (c *Codec) Memory() guesthttp.Memory {
	return c.mem
}

// Encode validates text as UTF-8 and copies it into a region owned by scratch.
func (c *Codec) Encode(text string, scratch *Scratch) (Encoded, error) {
	if !utf8.ValidString(text) {
		return Encoded{}, errors.InvalidUTF8(errors.PhaseEncode, nil, []byte(text))
	}
	return c.encode([]byte(text), scratch)
}

// EncodeBytes copies raw bytes into a region owned by scratch.
func (c *Codec) EncodeBytes(data []byte, scratch *Scratch) (Encoded, error) {
	return c.encode(data, scratch)
}

func (c *Codec) encode(data []byte, scratch *Scratch) (Encoded, error) {
	if len(data) == 0 {
		return Encoded{}, nil
	}
	if uint64(len(data)) > uint64(^uint32(0)) {
		return Encoded{}, errors.InvalidInput(errors.PhaseEncode, "value exceeds 32-bit address space")
	}
	size := uint32(len(data))

	ptr, err := scratch.Alloc(size, 1)
	if err != nil {
		return Encoded{}, err
	}
	if err := c.mem.Write(ptr, data); err != nil {
		return Encoded{}, errors.Wrap(errors.PhaseEncode, errors.KindOutOfBounds, err, "write encoded value")
	}
	return Encoded{Ptr: ptr, Len: size}, nil
}

// Scratch returns an empty scratch drawing from the codec's allocator.
func (c *Codec) Scratch() *Scratch {
	return NewScratch(c.alloc)
}

// Decode copies the region out of linear memory and validates it as UTF-8.
func (c *Codec) Decode(e Encoded) (string, error) {
	data, err := c.DecodeBytes(e)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", errors.InvalidUTF8(errors.PhaseDecode, nil, data)
	}
	return string(data), nil
}

// DecodeBytes copies the region out of linear memory.
// The returned slice never aliases guest memory.
func (c *Codec) DecodeBytes(e Encoded) ([]byte, error) {
	if e.Empty() {
		return []byte{}, nil
	}
	if uint64(e.Ptr)+uint64(e.Len) > uint64(^uint32(0))+1 {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindEncoding,
			errors.OutOfBounds(errors.PhaseDecode, e.Ptr, e.Len), "region wraps address space")
	}
	view, err := c.mem.Read(e.Ptr, e.Len)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindEncoding, err, "read region")
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}
