package abi

import "fmt"

// Method discriminants passed to new-outgoing-request.
const (
	MethodGet uint32 = iota
	MethodHead
	MethodPost
	MethodPut
	MethodDelete
	MethodConnect
	MethodOptions
	MethodTrace
	MethodPatch
	// MethodOther carries the method name as bytes in (methodPtr, methodLen).
	MethodOther
)

var methodNames = [...]string{
	MethodGet:     "GET",
	MethodHead:    "HEAD",
	MethodPost:    "POST",
	MethodPut:     "PUT",
	MethodDelete:  "DELETE",
	MethodConnect: "CONNECT",
	MethodOptions: "OPTIONS",
	MethodTrace:   "TRACE",
	MethodPatch:   "PATCH",
}

// MethodName returns the canonical name of a well-known method discriminant.
func MethodName(d uint32) (string, bool) {
	if d >= MethodOther {
		return "", false
	}
	return methodNames[d], true
}

// MethodDiscriminant maps a canonical method name to its discriminant.
// Unknown names map to MethodOther.
func MethodDiscriminant(name string) uint32 {
	for d, n := range methodNames {
		if n == name {
			return uint32(d)
		}
	}
	return MethodOther
}

// Scheme discriminants passed to new-outgoing-request.
const (
	SchemeHTTP uint32 = iota
	SchemeHTTPS
	// SchemeOther carries the scheme name as bytes in (schemePtr, schemeLen).
	SchemeOther
)

// Stream error codes returned in the error arm of streams.read and streams.write.
const (
	StreamLastOperationFailed uint32 = 0
	StreamClosed              uint32 = 1
)

// Error codes for outgoing-request-write and incoming-response-consume.
const (
	CodeInvalidHandle   uint32 = 0
	CodeAlreadyConsumed uint32 = 1
)

// Error codes for fields-entries.
const (
	EntriesInvalidHandle  uint32 = 0
	EntriesBufferTooSmall uint32 = 1
)

// CodeString names a consume/write error code for logs.
func CodeString(code uint32) string {
	switch code {
	case CodeInvalidHandle:
		return "invalid-handle"
	case CodeAlreadyConsumed:
		return "already-consumed"
	default:
		return fmt.Sprintf("code(%d)", code)
	}
}
