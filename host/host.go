package host

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	guesthttp "github.com/wippyai/wasi-http-guest"
	"github.com/wippyai/wasi-http-guest/abi"
	"github.com/wippyai/wasi-http-guest/resource"
)

// MaxAllocationSize caps a single read so a guest cannot make the host
// allocate without bound.
const MaxAllocationSize = 1 << 30

// DefaultTimeout bounds a round trip when the request carries no options.
const DefaultTimeout = 30 * time.Second

// Failure codes reported in the error arm of future-incoming-response-get.
// Guests treat them as opaque.
const (
	FailureTransport      uint32 = 1
	FailureTimeout        uint32 = 2
	FailureInvalidRequest uint32 = 3
	FailureAlreadyTaken   uint32 = 4
)

// Host is an in-process implementation of the outbound HTTP host calls.
// It serves one guest memory.
type Host struct {
	mem          guesthttp.Memory
	transport    http.RoundTripper
	resources    *resource.Table
	logger       *zap.Logger
	timeout      time.Duration
	maxReadChunk uint32
	maxWrite     uint32
	blocking     bool
	memMu        sync.Mutex
}

// New creates a host over mem. mem may be nil when the host is instantiated
// into wazero; the calling module's memory is bound on first use.
func New(mem guesthttp.Memory) *Host {
	return &Host{
		mem:          mem,
		transport:    http.DefaultTransport,
		resources:    resource.NewTable(),
		logger:       zap.NewNop(),
		timeout:      DefaultTimeout,
		maxReadChunk: MaxAllocationSize,
		maxWrite:     MaxAllocationSize,
	}
}

// WithTransport sets the round tripper that performs requests.
func (h *Host) WithTransport(rt http.RoundTripper) *Host {
	h.transport = rt
	return h
}

// WithMaxReadChunk caps the bytes returned by one streams.read,
// simulating short reads.
func (h *Host) WithMaxReadChunk(n uint32) *Host {
	if n > 0 {
		h.maxReadChunk = n
	}
	return h
}

// WithMaxWriteChunk caps the bytes accepted by one streams.write,
// simulating partial writes. A cap of 0 restores the default.
func (h *Host) WithMaxWriteChunk(n uint32) *Host {
	if n == 0 {
		n = MaxAllocationSize
	}
	h.maxWrite = n
	return h
}

// WithBlockingFutures makes future-incoming-response-get wait for the
// response instead of reporting pending.
func (h *Host) WithBlockingFutures(b bool) *Host {
	h.blocking = b
	return h
}

// WithTimeout sets the default round trip timeout.
func (h *Host) WithTimeout(d time.Duration) *Host {
	h.timeout = d
	return h
}

func (h *Host) WithLogger(l *zap.Logger) *Host {
	if l == nil {
		l = zap.NewNop()
	}
	h.logger = l
	return h
}

// Resources returns the handle table, for leak checks.
func (h *Host) Resources() *resource.Table {
	return h.resources
}

// Close drops every outstanding resource.
func (h *Host) Close() error {
	return h.resources.Close()
}

func (h *Host) memory() guesthttp.Memory {
	h.memMu.Lock()
	defer h.memMu.Unlock()
	return h.mem
}

func (h *Host) bindMemory(mem guesthttp.Memory) {
	h.memMu.Lock()
	defer h.memMu.Unlock()
	if h.mem == nil {
		h.mem = mem
	}
}

func (h *Host) insert(kind resource.Kind, v any) uint32 {
	handle := h.resources.Insert(kind, v)
	h.logger.Debug("resource created",
		zap.Stringer("kind", kind),
		zap.Uint32("handle", uint32(handle)))
	return uint32(handle)
}

func (h *Host) drop(kind resource.Kind, handle uint32) {
	if _, ok := h.resources.RemoveTyped(resource.Handle(handle), kind); !ok {
		h.logger.Warn("drop of unknown handle",
			zap.Stringer("kind", kind),
			zap.Uint32("handle", handle))
	}
}

var _ abi.Imports = (*Host)(nil)
