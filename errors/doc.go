// Package errors provides structured error types for the binding layer.
//
// Errors are categorized by Phase (where in the exchange the error occurred)
// and Kind (what went wrong). Each failure mode of the host boundary has its
// own Kind so callers can match on it:
//
//	if errors.Is(err, guesterrors.ErrTransport) { ... }
//	if errors.Is(err, guesterrors.ErrInvalidState) { ... }
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseStream, errors.KindStreamIO).
//		Call("streams.write").
//		Detail("host accepted 0 bytes %d times", n).
//		Build()
//
// All errors implement the standard error interface and support errors.Is/As.
// The package-level sentinels have no Phase and match an error of the same
// Kind raised in any phase.
package errors
