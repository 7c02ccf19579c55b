// Package host is an in-process implementation of the outbound HTTP host
// calls, backed by net/http.
//
// It serves guests running under wazero through Instantiate, and Go code
// that plays the guest directly over a shared memory, which is how the
// wasihttp tests and cmd/fetch drive it. Requests go out through an
// http.RoundTripper; WithMaxReadChunk and WithMaxWriteChunk shrink the
// stream calls to exercise short reads and partial writes.
package host
