package host

import (
	"net/http"
	"sort"

	"go.uber.org/zap"

	guesthttp "github.com/wippyai/wasi-http-guest"
	"github.com/wippyai/wasi-http-guest/abi"
	"github.com/wippyai/wasi-http-guest/resource"
)

type pair struct {
	name  []byte
	value []byte
}

// fieldsResource keeps header entries in insertion order.
type fieldsResource struct {
	pairs []pair
}

func (f *fieldsResource) header() http.Header {
	h := make(http.Header, len(f.pairs))
	for _, p := range f.pairs {
		h.Add(string(p.name), string(p.value))
	}
	return h
}

func fieldsFromHeader(h http.Header) *fieldsResource {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	f := &fieldsResource{}
	for _, name := range names {
		for _, v := range h[name] {
			f.pairs = append(f.pairs, pair{name: []byte(name), value: []byte(v)})
		}
	}
	return f
}

// isToken reports whether b is a non-empty RFC 9110 token.
func isToken(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '!', c == '#', c == '$', c == '%', c == '&', c == '\'', c == '*',
			c == '+', c == '-', c == '.', c == '^', c == '_', c == '`', c == '|', c == '~':
		default:
			return false
		}
	}
	return true
}

func validValue(b []byte) bool {
	for _, c := range b {
		if c == '\r' || c == '\n' || c == 0 {
			return false
		}
	}
	return true
}

// NewFields reads fieldsLen pair records starting at fieldsPtr. Any invalid
// entry rejects the whole collection.
func (h *Host) NewFields(fieldsPtr, fieldsLen uint32) uint32 {
	mem := h.memory()
	f := &fieldsResource{pairs: make([]pair, 0, fieldsLen)}

	for i := uint32(0); i < fieldsLen; i++ {
		rec, err := abi.LiftFieldPair(mem, fieldsPtr+i*abi.FieldPairLayout.Size)
		if err != nil {
			h.logger.Debug("new-fields: bad record", zap.Uint32("index", i), zap.Error(err))
			return 0
		}
		name, err := readBytes(mem, rec.NamePtr, rec.NameLen)
		if err != nil {
			return 0
		}
		value, err := readBytes(mem, rec.ValuePtr, rec.ValueLen)
		if err != nil {
			return 0
		}
		if !isToken(name) || !validValue(value) {
			h.logger.Debug("new-fields: rejected entry", zap.ByteString("name", name))
			return 0
		}
		f.pairs = append(f.pairs, pair{name: name, value: value})
	}

	return h.insert(resource.KindFields, f)
}

// FieldsEntries lays the entries out in the guest buffer: count 16-byte
// records followed by the name and value bytes they point at.
func (h *Host) FieldsEntries(fields, bufPtr, bufLen, resultPtr uint32) {
	mem := h.memory()
	v, ok := h.resources.GetTyped(resource.Handle(fields), resource.KindFields)
	if !ok {
		h.lower(abi.LowerEntriesResult(mem, resultPtr, abi.EntriesResult{Code: abi.EntriesInvalidHandle}))
		return
	}
	f := v.(*fieldsResource)

	count := uint64(len(f.pairs))
	needed := count * uint64(abi.FieldPairLayout.Size)
	for _, p := range f.pairs {
		needed += uint64(len(p.name)) + uint64(len(p.value))
	}
	if needed > uint64(bufLen) {
		if needed > uint64(^uint32(0)) {
			needed = uint64(^uint32(0))
		}
		h.lower(abi.LowerEntriesResult(mem, resultPtr, abi.EntriesResult{
			Code:   abi.EntriesBufferTooSmall,
			Needed: uint32(needed),
		}))
		return
	}

	data := bufPtr + uint32(count)*abi.FieldPairLayout.Size
	place := func(b []byte) (uint32, error) {
		if len(b) == 0 {
			return 0, nil
		}
		at := data
		if err := mem.Write(at, b); err != nil {
			return 0, err
		}
		data += uint32(len(b))
		return at, nil
	}

	for i, p := range f.pairs {
		namePtr, err := place(p.name)
		if err != nil {
			h.lower(err)
			return
		}
		valuePtr, err := place(p.value)
		if err != nil {
			h.lower(err)
			return
		}
		rec := abi.FieldPairRef{
			NamePtr:  namePtr,
			NameLen:  uint32(len(p.name)),
			ValuePtr: valuePtr,
			ValueLen: uint32(len(p.value)),
		}
		if err := abi.LowerFieldPair(mem, bufPtr+uint32(i)*abi.FieldPairLayout.Size, rec); err != nil {
			h.lower(err)
			return
		}
	}
	h.lower(abi.LowerEntriesResult(mem, resultPtr, abi.EntriesResult{OK: true, Count: uint32(count)}))
}

func (h *Host) DropFields(fields uint32) {
	h.drop(resource.KindFields, fields)
}

func readBytes(mem guesthttp.Memory, ptr, length uint32) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}
	view, err := mem.Read(ptr, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

// lower logs a failure to write an out-parameter record. The guest sees
// whatever the record held before the call.
func (h *Host) lower(err error) {
	if err != nil {
		h.logger.Warn("failed to write result record", zap.Error(err))
	}
}
