package wasihttp

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasi-http-guest/abi"
	"github.com/wippyai/wasi-http-guest/errors"
	"github.com/wippyai/wasi-http-guest/memory"
	"github.com/wippyai/wasi-http-guest/resource"
)

// FieldPair is one header entry. Names and values are raw bytes.
type FieldPair struct {
	Name  []byte
	Value []byte
}

// Pairs builds field pairs from alternating names and values.
// A trailing name without a value gets an empty value.
func Pairs(kv ...string) []FieldPair {
	out := make([]FieldPair, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		p := FieldPair{Name: []byte(kv[i]), Value: []byte{}}
		if i+1 < len(kv) {
			p.Value = []byte(kv[i+1])
		}
		out = append(out, p)
	}
	return out
}

// Fields is a host-side header collection. It is immutable once built.
type Fields struct {
	ref
}

// NewFields materializes pairs on the host in order with one new-fields call.
// The host may reject the whole collection, in which case no handle is issued.
func (c *Client) NewFields(pairs []FieldPair) (*Fields, error) {
	scratch := c.codec.Scratch()
	defer scratch.Close()

	arrPtr, err := c.lowerPairs(pairs, scratch)
	if err != nil {
		return nil, errors.FieldsConstruction("lower pairs", err)
	}

	h := c.imports.NewFields(arrPtr, uint32(len(pairs)))
	if h == 0 {
		return nil, errors.FieldsConstruction("host rejected the collection", nil)
	}

	r, err := c.adopt(errors.PhaseFields, resource.KindFields, h)
	if err != nil {
		return nil, err
	}
	return &Fields{ref: r}, nil
}

func (c *Client) lowerPairs(pairs []FieldPair, scratch *memory.Scratch) (uint32, error) {
	if len(pairs) == 0 {
		return 0, nil
	}
	size := uint64(len(pairs)) * uint64(abi.FieldPairLayout.Size)
	if size > uint64(^uint32(0)) {
		return 0, errors.InvalidInput(errors.PhaseEncode, "too many field pairs")
	}

	arr, err := scratch.Alloc(uint32(size), abi.FieldPairLayout.Align)
	if err != nil {
		return 0, err
	}
	mem := c.codec.Memory()
	for i, p := range pairs {
		name, err := c.codec.EncodeBytes(p.Name, scratch)
		if err != nil {
			return 0, err
		}
		value, err := c.codec.EncodeBytes(p.Value, scratch)
		if err != nil {
			return 0, err
		}
		rec := abi.FieldPairRef{
			NamePtr:  name.Ptr,
			NameLen:  name.Len,
			ValuePtr: value.Ptr,
			ValueLen: value.Len,
		}
		if err := abi.LowerFieldPair(mem, arr+uint32(i)*abi.FieldPairLayout.Size, rec); err != nil {
			return 0, err
		}
	}
	return arr, nil
}

// Entries reads the collection back in host order.
func (f *Fields) Entries() ([]FieldPair, error) {
	if err := f.check(errors.PhaseFields); err != nil {
		return nil, err
	}

	bufLen := f.c.entriesBuf
	for attempt := 0; ; attempt++ {
		pairs, needed, err := f.entries(bufLen)
		if err != nil || needed == 0 {
			return pairs, err
		}
		if attempt > 0 || needed <= bufLen {
			return nil, errors.New(errors.PhaseFields, errors.KindInvalidState).
				Call("fields-entries").
				Detail("host asked for %d bytes after offering %d", needed, bufLen).
				Build()
		}
		f.c.logger.Debug("growing fields-entries buffer",
			zap.Uint32("handle", uint32(f.h)),
			zap.Uint32("from", bufLen),
			zap.Uint32("to", needed))
		bufLen = needed
	}
}

// entries makes one fields-entries call. A non-zero needed asks for a retry.
func (f *Fields) entries(bufLen uint32) ([]FieldPair, uint32, error) {
	c := f.c
	scratch := c.codec.Scratch()
	defer scratch.Close()

	buf, err := scratch.Alloc(bufLen, abi.FieldPairLayout.Align)
	if err != nil {
		return nil, 0, err
	}
	res, err := scratch.Alloc(abi.EntriesResultLayout.Size, abi.EntriesResultLayout.Align)
	if err != nil {
		return nil, 0, err
	}

	c.imports.FieldsEntries(uint32(f.h), buf, bufLen, res)

	mem := c.codec.Memory()
	out, err := abi.LiftEntriesResult(mem, res)
	if err != nil {
		return nil, 0, err
	}
	if !out.OK {
		switch out.Code {
		case abi.EntriesBufferTooSmall:
			return nil, out.Needed, nil
		case abi.EntriesInvalidHandle:
			return nil, 0, errors.InvalidHandle(errors.PhaseFields, "fields", uint32(f.h))
		default:
			return nil, 0, errors.New(errors.PhaseFields, errors.KindInvalidState).
				Call("fields-entries").
				Value(out.Code).
				Detail("unknown error code %d", out.Code).
				Build()
		}
	}

	if uint64(out.Count)*uint64(abi.FieldPairLayout.Size) > uint64(bufLen) {
		return nil, 0, errors.New(errors.PhaseDecode, errors.KindEncoding).
			Call("fields-entries").
			Detail("%d entries do not fit in a %d byte buffer", out.Count, bufLen).
			Build()
	}

	pairs := make([]FieldPair, 0, out.Count)
	for i := uint32(0); i < out.Count; i++ {
		rec, err := abi.LiftFieldPair(mem, buf+i*abi.FieldPairLayout.Size)
		if err != nil {
			return nil, 0, err
		}
		name, err := c.codec.DecodeBytes(memory.Encoded{Ptr: rec.NamePtr, Len: rec.NameLen})
		if err != nil {
			return nil, 0, err
		}
		value, err := c.codec.DecodeBytes(memory.Encoded{Ptr: rec.ValuePtr, Len: rec.ValueLen})
		if err != nil {
			return nil, 0, err
		}
		pairs = append(pairs, FieldPair{Name: name, Value: value})
	}
	return pairs, 0, nil
}

// Drop releases the collection. Dropping a consumed or dropped collection
// fails without reaching the host.
func (f *Fields) Drop() error {
	if !f.release() {
		return errors.InvalidHandle(errors.PhaseFields, "fields", uint32(f.h))
	}
	f.c.imports.DropFields(uint32(f.h))
	return nil
}
