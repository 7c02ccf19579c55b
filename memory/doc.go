// Package memory moves values between Go and guest linear memory.
//
// Codec encodes strings and byte slices into freshly allocated regions and
// decodes (pointer, length) regions back into Go values. Every decode copies
// the region first, so the returned value never aliases linear memory.
//
// Temporary regions passed to a host call come from a Scratch and are freed
// together right after the call returns:
//
//	scratch := codec.Scratch()
//	defer scratch.Close()
//	path, err := codec.Encode("/status", scratch)
//
// Backends:
//
//	Linear  byte-slice memory, for native builds and tests
//	Wazero  adapter over a wazero api.Memory
//	Native  the guest's own address space (wasip1 builds only)
//	Heap    first-fit allocator over any of the above
package memory
