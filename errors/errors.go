package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in an exchange the error occurred
type Phase string

const (
	PhaseEncode   Phase = "encode"   // Go to guest memory
	PhaseDecode   Phase = "decode"   // guest memory to Go
	PhaseFields   Phase = "fields"   // header collection construction
	PhaseRequest  Phase = "request"  // outgoing request construction
	PhaseSubmit   Phase = "submit"   // transport entry point
	PhaseResponse Phase = "response" // future resolution and response access
	PhaseStream   Phase = "stream"   // body stream I/O
	PhaseMemory   Phase = "memory"   // linear memory access and allocation
	PhaseHost     Phase = "host"     // host binding setup
)

// Kind categorizes the error
type Kind string

const (
	KindEncoding            Kind = "encoding"
	KindInvalidHandle       Kind = "invalid_handle"
	KindRequestConstruction Kind = "request_construction"
	KindFieldsConstruction  Kind = "fields_construction"
	KindTransport           Kind = "transport"
	KindStreamClosed        Kind = "stream_closed"
	KindStreamIO            Kind = "stream_io"
	KindInvalidState        Kind = "invalid_state"
	KindOutOfBounds         Kind = "out_of_bounds"
	KindAllocation          Kind = "allocation"
	KindInvalidInput        Kind = "invalid_input"
	KindUnsupported         Kind = "unsupported"
	KindCanceled            Kind = "canceled"
)

// Sentinels for errors.Is. They match any phase.
var (
	ErrEncoding            = &Error{Kind: KindEncoding}
	ErrDecode              = &Error{Phase: PhaseDecode, Kind: KindEncoding}
	ErrInvalidHandle       = &Error{Kind: KindInvalidHandle}
	ErrRequestConstruction = &Error{Kind: KindRequestConstruction}
	ErrFieldsConstruction  = &Error{Kind: KindFieldsConstruction}
	ErrTransport           = &Error{Kind: KindTransport}
	ErrStreamClosed        = &Error{Kind: KindStreamClosed}
	ErrStreamIO            = &Error{Kind: KindStreamIO}
	ErrInvalidState        = &Error{Kind: KindInvalidState}
	ErrCanceled            = &Error{Kind: KindCanceled}
)

// Error is the structured error type used throughout the binding layer
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Call   string // host call involved, e.g. "new-fields"
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Call != "" {
		b.WriteString(": call ")
		b.WriteString(e.Call)
	}

	if e.Detail != "" {
		if e.Call != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Phase == "" || t.Phase == e.Phase
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Call sets the host call name
func (b *Builder) Call(name string) *Builder {
	b.err.Call = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidUTF8 creates an encoding error for a malformed byte sequence
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindEncoding,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// OutOfBounds creates an out of bounds error for a memory region
func OutOfBounds(phase Phase, ptr, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("region [%d, +%d) out of bounds", ptr, length),
		Value:  ptr,
	}
}

// InvalidHandle creates an error for a handle used outside its live window
func InvalidHandle(phase Phase, what string, handle uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidHandle,
		Detail: fmt.Sprintf("%s handle %d is no longer live", what, handle),
		Value:  handle,
	}
}

// InvalidState creates a protocol sequence violation error
func InvalidState(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidState,
		Detail: detail,
	}
}

// RequestConstruction creates a request build error
func RequestConstruction(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseRequest,
		Kind:   KindRequestConstruction,
		Detail: detail,
		Cause:  cause,
	}
}

// FieldsConstruction creates a header collection build error
func FieldsConstruction(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseFields,
		Kind:   KindFieldsConstruction,
		Call:   "new-fields",
		Detail: detail,
		Cause:  cause,
	}
}

// Transport creates a transport failure error carrying the opaque host code
func Transport(call string, code uint32) *Error {
	return &Error{
		Phase:  PhaseResponse,
		Kind:   KindTransport,
		Call:   call,
		Detail: fmt.Sprintf("host reported failure code %d", code),
		Value:  code,
	}
}

// StreamClosed creates a closed stream error
func StreamClosed(call string, handle uint32) *Error {
	return &Error{
		Phase:  PhaseStream,
		Kind:   KindStreamClosed,
		Call:   call,
		Detail: fmt.Sprintf("stream %d is closed", handle),
		Value:  handle,
	}
}

// StreamIO creates a stream I/O failure error
func StreamIO(call string, handle uint32, detail string) *Error {
	return &Error{
		Phase:  PhaseStream,
		Kind:   KindStreamIO,
		Call:   call,
		Detail: fmt.Sprintf("stream %d: %s", handle, detail),
		Value:  handle,
	}
}

// Canceled creates an error for a wait abandoned because its context ended.
// The context error is kept as the cause.
func Canceled(phase Phase, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCanceled,
		Detail: "wait abandoned",
		Cause:  cause,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
