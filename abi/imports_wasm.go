//go:build wasip1

package abi

//go:wasmimport types new-fields
func newFields(fieldsPtr, fieldsLen uint32) uint32

//go:wasmimport types fields-entries
func fieldsEntries(fields, bufPtr, bufLen, resultPtr uint32)

//go:wasmimport types new-outgoing-request
func newOutgoingRequest(method, methodPtr, methodLen, pathPtr, pathLen, queryPtr, queryLen, schemeIsSome, scheme, schemePtr, schemeLen, authorityPtr, authorityLen, headers uint32) uint32

//go:wasmimport types outgoing-request-write
func outgoingRequestWrite(request, resultPtr uint32)

//go:wasmimport default-outgoing-HTTP handle
func handle(request, a, b, c, d, e, f, g uint32) uint32

//go:wasmimport types future-incoming-response-get
func futureIncomingResponseGet(future, resultPtr uint32)

//go:wasmimport types incoming-response-status
func incomingResponseStatus(response uint32) uint32

//go:wasmimport types incoming-response-headers
func incomingResponseHeaders(response uint32) uint32

//go:wasmimport types incoming-response-consume
func incomingResponseConsume(response, resultPtr uint32)

//go:wasmimport streams read
func streamsRead(stream uint32, length uint64, bufPtr, resultPtr uint32)

//go:wasmimport streams write
func streamsWrite(stream, ptr, length, resultPtr uint32)

//go:wasmimport types drop-fields
func dropFields(fields uint32)

//go:wasmimport types drop-outgoing-request
func dropOutgoingRequest(request uint32)

//go:wasmimport types drop-future-incoming-response
func dropFutureIncomingResponse(future uint32)

//go:wasmimport types drop-incoming-response
func dropIncomingResponse(response uint32)

//go:wasmimport streams drop-input-stream
func dropInputStream(stream uint32)

//go:wasmimport streams drop-output-stream
func dropOutputStream(stream uint32)

// Wasm binds Imports to the functions the embedding host provides.
type Wasm struct{}

func (Wasm) NewFields(fieldsPtr, fieldsLen uint32) uint32 {
	return newFields(fieldsPtr, fieldsLen)
}

func (Wasm) FieldsEntries(fields, bufPtr, bufLen, resultPtr uint32) {
	fieldsEntries(fields, bufPtr, bufLen, resultPtr)
}

func (Wasm) NewOutgoingRequest(method, methodPtr, methodLen, pathPtr, pathLen, queryPtr, queryLen, schemeIsSome, scheme, schemePtr, schemeLen, authorityPtr, authorityLen, headers uint32) uint32 {
	return newOutgoingRequest(method, methodPtr, methodLen, pathPtr, pathLen, queryPtr, queryLen, schemeIsSome, scheme, schemePtr, schemeLen, authorityPtr, authorityLen, headers)
}

func (Wasm) OutgoingRequestWrite(request, resultPtr uint32) {
	outgoingRequestWrite(request, resultPtr)
}

func (Wasm) Handle(request, a, b, c, d, e, f, g uint32) uint32 {
	return handle(request, a, b, c, d, e, f, g)
}

func (Wasm) FutureIncomingResponseGet(future, resultPtr uint32) {
	futureIncomingResponseGet(future, resultPtr)
}

func (Wasm) IncomingResponseStatus(response uint32) uint32 {
	return incomingResponseStatus(response)
}

func (Wasm) IncomingResponseHeaders(response uint32) uint32 {
	return incomingResponseHeaders(response)
}

func (Wasm) IncomingResponseConsume(response, resultPtr uint32) {
	incomingResponseConsume(response, resultPtr)
}

func (Wasm) StreamsRead(stream uint32, length uint64, bufPtr, resultPtr uint32) {
	streamsRead(stream, length, bufPtr, resultPtr)
}

func (Wasm) StreamsWrite(stream, ptr, length, resultPtr uint32) {
	streamsWrite(stream, ptr, length, resultPtr)
}

func (Wasm) DropFields(fields uint32)                 { dropFields(fields) }
func (Wasm) DropOutgoingRequest(request uint32)       { dropOutgoingRequest(request) }
func (Wasm) DropFutureIncomingResponse(future uint32) { dropFutureIncomingResponse(future) }
func (Wasm) DropIncomingResponse(response uint32)     { dropIncomingResponse(response) }
func (Wasm) DropInputStream(stream uint32)            { dropInputStream(stream) }
func (Wasm) DropOutputStream(stream uint32)           { dropOutputStream(stream) }

var _ Imports = Wasm{}
