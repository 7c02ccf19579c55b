package abi

// Imports is the host call surface. Pointer arguments are guest addresses;
// handle results of 0 mean the host rejected the call. Calls that write an
// out-parameter record take its address as resultPtr.
type Imports interface {
	NewFields(fieldsPtr, fieldsLen uint32) uint32
	FieldsEntries(fields, bufPtr, bufLen, resultPtr uint32)

	NewOutgoingRequest(
		method, methodPtr, methodLen,
		pathPtr, pathLen,
		queryPtr, queryLen,
		schemeIsSome, scheme, schemePtr, schemeLen,
		authorityPtr, authorityLen,
		headers uint32,
	) uint32
	OutgoingRequestWrite(request, resultPtr uint32)

	Handle(request, a, b, c, d, e, f, g uint32) uint32

	FutureIncomingResponseGet(future, resultPtr uint32)
	IncomingResponseStatus(response uint32) uint32
	IncomingResponseHeaders(response uint32) uint32
	IncomingResponseConsume(response, resultPtr uint32)

	StreamsRead(stream uint32, length uint64, bufPtr, resultPtr uint32)
	StreamsWrite(stream, ptr, length, resultPtr uint32)

	DropFields(fields uint32)
	DropOutgoingRequest(request uint32)
	DropFutureIncomingResponse(future uint32)
	DropIncomingResponse(response uint32)
	DropInputStream(stream uint32)
	DropOutputStream(stream uint32)
}

// Import names by host module, as the guest declares them.
const (
	ModuleTypes   = "types"
	ModuleStreams = "streams"
	ModuleHandler = "default-outgoing-HTTP"
)
