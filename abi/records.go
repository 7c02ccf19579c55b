package abi

import (
	guesthttp "github.com/wippyai/wasi-http-guest"
	"github.com/wippyai/wasi-http-guest/errors"
)

// HandleResult is a lifted result<u32, u32>.
// Value is the ok payload when OK is set, otherwise the error code.
type HandleResult struct {
	Value uint32
	OK    bool
}

// FutureResult is a lifted option<result<u32, u32>>.
type FutureResult struct {
	Result HandleResult
	Ready  bool
}

// ReadResult is a lifted result<read-info, u32>.
type ReadResult struct {
	Written uint32
	Code    uint32
	EOS     bool
	OK      bool
}

// EntriesResult is a lifted result<u32, entries-error>.
type EntriesResult struct {
	Count  uint32
	Code   uint32
	Needed uint32
	OK     bool
}

func readTag(mem guesthttp.Memory, ptr uint32, what string) (bool, error) {
	tag, err := mem.ReadU8(ptr)
	if err != nil {
		return false, errors.Wrap(errors.PhaseDecode, errors.KindEncoding, err, what)
	}
	switch tag {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, errors.New(errors.PhaseDecode, errors.KindEncoding).
			Path(what).
			Value(tag).
			Detail("invalid discriminant %d", tag).
			Build()
	}
}

func readU32(mem guesthttp.Memory, ptr uint32, what string) (uint32, error) {
	v, err := mem.ReadU32(ptr)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseDecode, errors.KindEncoding, err, what)
	}
	return v, nil
}

func writeTag(mem guesthttp.Memory, ptr uint32, set bool) error {
	var tag uint8
	if set {
		tag = 1
	}
	return mem.WriteU8(ptr, tag)
}

// LiftHandleResult reads a result<u32, u32> record. Tag 0 is ok.
func LiftHandleResult(mem guesthttp.Memory, ptr uint32) (HandleResult, error) {
	isErr, err := readTag(mem, ptr, "handle-result")
	if err != nil {
		return HandleResult{}, err
	}
	v, err := readU32(mem, ptr+HandleResultLayout.Payload, "handle-result")
	if err != nil {
		return HandleResult{}, err
	}
	return HandleResult{OK: !isErr, Value: v}, nil
}

func LowerHandleResult(mem guesthttp.Memory, ptr uint32, r HandleResult) error {
	if err := writeTag(mem, ptr, !r.OK); err != nil {
		return err
	}
	return mem.WriteU32(ptr+HandleResultLayout.Payload, r.Value)
}

// LiftFutureResult reads an option<result<u32, u32>> record. Tag 0 is none.
func LiftFutureResult(mem guesthttp.Memory, ptr uint32) (FutureResult, error) {
	some, err := readTag(mem, ptr, "future-get")
	if err != nil {
		return FutureResult{}, err
	}
	if !some {
		return FutureResult{}, nil
	}
	r, err := LiftHandleResult(mem, ptr+FutureGetLayout.Payload)
	if err != nil {
		return FutureResult{}, err
	}
	return FutureResult{Ready: true, Result: r}, nil
}

func LowerFutureResult(mem guesthttp.Memory, ptr uint32, r FutureResult) error {
	if err := writeTag(mem, ptr, r.Ready); err != nil {
		return err
	}
	if !r.Ready {
		return nil
	}
	return LowerHandleResult(mem, ptr+FutureGetLayout.Payload, r.Result)
}

// LiftReadResult reads a result<read-info, u32> record.
func LiftReadResult(mem guesthttp.Memory, ptr uint32) (ReadResult, error) {
	isErr, err := readTag(mem, ptr, "read-result")
	if err != nil {
		return ReadResult{}, err
	}
	payload := ptr + ReadResultLayout.Payload
	if isErr {
		code, err := readU32(mem, payload, "read-result")
		if err != nil {
			return ReadResult{}, err
		}
		return ReadResult{Code: code}, nil
	}

	written, err := readU32(mem, payload+ReadInfoLayout.FieldOffs["written"], "read-info.written")
	if err != nil {
		return ReadResult{}, err
	}
	eos, err := readTag(mem, payload+ReadInfoLayout.FieldOffs["end-of-stream"], "read-info.end-of-stream")
	if err != nil {
		return ReadResult{}, err
	}
	return ReadResult{OK: true, Written: written, EOS: eos}, nil
}

func LowerReadResult(mem guesthttp.Memory, ptr uint32, r ReadResult) error {
	if err := writeTag(mem, ptr, !r.OK); err != nil {
		return err
	}
	payload := ptr + ReadResultLayout.Payload
	if !r.OK {
		return mem.WriteU32(payload, r.Code)
	}
	if err := mem.WriteU32(payload+ReadInfoLayout.FieldOffs["written"], r.Written); err != nil {
		return err
	}
	return writeTag(mem, payload+ReadInfoLayout.FieldOffs["end-of-stream"], r.EOS)
}

// LiftWriteResult reads a result<u32, u32> record from streams.write.
func LiftWriteResult(mem guesthttp.Memory, ptr uint32) (HandleResult, error) {
	return LiftHandleResult(mem, ptr)
}

func LowerWriteResult(mem guesthttp.Memory, ptr uint32, r HandleResult) error {
	return LowerHandleResult(mem, ptr, r)
}

// LiftEntriesResult reads a result<u32, entries-error> record.
func LiftEntriesResult(mem guesthttp.Memory, ptr uint32) (EntriesResult, error) {
	isErr, err := readTag(mem, ptr, "entries-result")
	if err != nil {
		return EntriesResult{}, err
	}
	payload := ptr + EntriesResultLayout.Payload
	if !isErr {
		count, err := readU32(mem, payload, "entries-result")
		if err != nil {
			return EntriesResult{}, err
		}
		return EntriesResult{OK: true, Count: count}, nil
	}

	code, err := readU32(mem, payload+EntriesErrorLayout.FieldOffs["code"], "entries-error.code")
	if err != nil {
		return EntriesResult{}, err
	}
	needed, err := readU32(mem, payload+EntriesErrorLayout.FieldOffs["needed"], "entries-error.needed")
	if err != nil {
		return EntriesResult{}, err
	}
	return EntriesResult{Code: code, Needed: needed}, nil
}

func LowerEntriesResult(mem guesthttp.Memory, ptr uint32, r EntriesResult) error {
	if err := writeTag(mem, ptr, !r.OK); err != nil {
		return err
	}
	payload := ptr + EntriesResultLayout.Payload
	if r.OK {
		return mem.WriteU32(payload, r.Count)
	}
	if err := mem.WriteU32(payload+EntriesErrorLayout.FieldOffs["code"], r.Code); err != nil {
		return err
	}
	return mem.WriteU32(payload+EntriesErrorLayout.FieldOffs["needed"], r.Needed)
}

// FieldPairRef is one lowered tuple<list<u8>, list<u8>> record.
type FieldPairRef struct {
	NamePtr  uint32
	NameLen  uint32
	ValuePtr uint32
	ValueLen uint32
}

// LowerFieldPair writes one pair record at ptr.
func LowerFieldPair(mem guesthttp.Memory, ptr uint32, p FieldPairRef) error {
	for i, v := range [4]uint32{p.NamePtr, p.NameLen, p.ValuePtr, p.ValueLen} {
		if err := mem.WriteU32(ptr+uint32(i)*4, v); err != nil {
			return err
		}
	}
	return nil
}

// LiftFieldPair reads one pair record at ptr.
func LiftFieldPair(mem guesthttp.Memory, ptr uint32) (FieldPairRef, error) {
	var v [4]uint32
	for i := range v {
		x, err := readU32(mem, ptr+uint32(i)*4, "field-pair")
		if err != nil {
			return FieldPairRef{}, err
		}
		v[i] = x
	}
	return FieldPairRef{NamePtr: v[0], NameLen: v[1], ValuePtr: v[2], ValueLen: v[3]}, nil
}
