package abi

import "go.bytecodealliance.org/wit"

// wit descriptions of the values that cross the boundary by memory.
var (
	// FieldPairType is one header entry: tuple<list<u8>, list<u8>>.
	FieldPairType = &wit.TypeDef{
		Kind: &wit.Tuple{Types: []wit.Type{bytesType, bytesType}},
	}

	// HandleResultType is result<u32, u32>: a handle or an error code.
	HandleResultType = &wit.TypeDef{
		Kind: &wit.Result{OK: wit.U32{}, Err: wit.U32{}},
	}

	// FutureGetType is option<result<u32, u32>>; none means still pending.
	FutureGetType = &wit.TypeDef{
		Kind: &wit.Option{Type: HandleResultType},
	}

	ReadInfoType = &wit.TypeDef{
		Kind: &wit.Record{Fields: []wit.Field{
			{Name: "written", Type: wit.U32{}},
			{Name: "end-of-stream", Type: wit.Bool{}},
		}},
	}

	// ReadResultType is result<read-info, u32>.
	ReadResultType = &wit.TypeDef{
		Kind: &wit.Result{OK: ReadInfoType, Err: wit.U32{}},
	}

	// WriteResultType is result<u32, u32>: bytes accepted or an error code.
	WriteResultType = &wit.TypeDef{
		Kind: &wit.Result{OK: wit.U32{}, Err: wit.U32{}},
	}

	EntriesErrorType = &wit.TypeDef{
		Kind: &wit.Record{Fields: []wit.Field{
			{Name: "code", Type: wit.U32{}},
			{Name: "needed", Type: wit.U32{}},
		}},
	}

	// EntriesResultType is result<u32, entries-error>: entry count or failure.
	EntriesResultType = &wit.TypeDef{
		Kind: &wit.Result{OK: wit.U32{}, Err: EntriesErrorType},
	}

	bytesType = &wit.TypeDef{Kind: &wit.List{Type: wit.U8{}}}
)

// Layouts computed once from the descriptions above.
var (
	FieldPairLayout     Info
	HandleResultLayout  Info
	FutureGetLayout     Info
	ReadInfoLayout      Info
	ReadResultLayout    Info
	WriteResultLayout   Info
	EntriesErrorLayout  Info
	EntriesResultLayout Info
)

func init() {
	calc := NewCalculator()
	FieldPairLayout = calc.Calculate(FieldPairType)
	HandleResultLayout = calc.Calculate(HandleResultType)
	FutureGetLayout = calc.Calculate(FutureGetType)
	ReadInfoLayout = calc.Calculate(ReadInfoType)
	ReadResultLayout = calc.Calculate(ReadResultType)
	WriteResultLayout = calc.Calculate(WriteResultType)
	EntriesErrorLayout = calc.Calculate(EntriesErrorType)
	EntriesResultLayout = calc.Calculate(EntriesResultType)
}
