// Package abi describes the raw host call surface for outbound HTTP.
//
// Every host call takes and returns 32-bit integers. Strings and lists travel
// as (pointer, length) pairs into the guest's linear memory; compound results
// are written by the host into an out-parameter record the guest allocates
// before the call. The record layouts follow the component model's canonical
// ABI and are computed from wit type descriptions, so the guest and the
// reference host agree on offsets without hand-maintained constants.
//
// Host modules and calls:
//
//	types                  new-fields, fields-entries, new-outgoing-request,
//	                       outgoing-request-write, future-incoming-response-get,
//	                       incoming-response-status, incoming-response-headers,
//	                       incoming-response-consume, drop-*
//	streams                read, write, drop-input-stream, drop-output-stream
//	default-outgoing-HTTP  handle
//
// streams.read takes (stream, i64 length, buffer pointer, result pointer).
// The guest allocates the buffer and the host copies at most length bytes
// into it, so the host never calls back into the guest allocator. Hosts that
// declare the three-argument form, which returns a host-allocated list<u8>
// through one result pointer, do not link against this surface.
//
// Imports is the Go view of that surface. On wasip1 builds Wasm binds it to
// //go:wasmimport declarations; elsewhere the reference host in package host
// implements it in-process.
package abi
