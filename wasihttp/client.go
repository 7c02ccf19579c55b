package wasihttp

import (
	"time"

	"go.uber.org/zap"

	guesthttp "github.com/wippyai/wasi-http-guest"
	"github.com/wippyai/wasi-http-guest/abi"
	"github.com/wippyai/wasi-http-guest/errors"
	"github.com/wippyai/wasi-http-guest/memory"
	"github.com/wippyai/wasi-http-guest/resource"
)

// FutureMode selects how Resolve waits for a response.
type FutureMode uint8

const (
	// FuturePolling repeats the non-blocking get until the future settles.
	FuturePolling FutureMode = iota
	// FutureBlocking expects the host to block inside the get call.
	FutureBlocking
)

func (m FutureMode) String() string {
	if m == FutureBlocking {
		return "blocking"
	}
	return "polling"
}

const (
	DefaultPollInterval      = time.Millisecond
	DefaultReadChunkSize     = 16 * 1024
	DefaultEntriesBufferSize = 1024
	DefaultMaxStalledWrites  = 64
)

// Client issues outbound requests through a host call surface.
// A Client and the values it returns are not safe for concurrent use.
type Client struct {
	imports      abi.Imports
	codec        *memory.Codec
	ledger       *resource.Ledger
	logger       *zap.Logger
	options      *abi.RequestOptions
	pollInterval time.Duration
	readChunk    uint32
	entriesBuf   uint32
	maxStalled   int
	futureMode   FutureMode
}

// New creates a client over the given host calls and guest memory.
func New(imports abi.Imports, mem guesthttp.Memory, alloc guesthttp.Allocator) *Client {
	c := &Client{
		imports:      imports,
		codec:        memory.NewCodec(mem, alloc),
		ledger:       resource.NewLedger(),
		logger:       Logger(),
		pollInterval: DefaultPollInterval,
		readChunk:    DefaultReadChunkSize,
		entriesBuf:   DefaultEntriesBufferSize,
		maxStalled:   DefaultMaxStalledWrites,
		futureMode:   FuturePolling,
	}
	c.ledger.Subscribe(resource.ObserverFunc(func(e resource.Event) {
		c.logger.Debug("handle",
			zap.Stringer("event", e.Type),
			zap.Stringer("kind", e.Kind),
			zap.Uint32("handle", uint32(e.Handle)))
	}))
	return c
}

func (c *Client) WithLogger(l *zap.Logger) *Client {
	if l == nil {
		l = zap.NewNop()
	}
	c.logger = l
	return c
}

func (c *Client) WithFutureMode(m FutureMode) *Client {
	c.futureMode = m
	return c
}

// WithPollInterval sets the pace of repeated polls and zero-byte stream retries.
func (c *Client) WithPollInterval(d time.Duration) *Client {
	if d > 0 {
		c.pollInterval = d
	}
	return c
}

func (c *Client) WithReadChunkSize(n uint32) *Client {
	if n > 0 {
		c.readChunk = n
	}
	return c
}

// WithEntriesBufferSize sets the first buffer size tried by Fields.Entries.
func (c *Client) WithEntriesBufferSize(n uint32) *Client {
	if n > 0 {
		c.entriesBuf = n
	}
	return c
}

// WithMaxStalledWrites bounds consecutive zero-byte acceptances in WriteAll.
func (c *Client) WithMaxStalledWrites(n int) *Client {
	if n > 0 {
		c.maxStalled = n
	}
	return c
}

// WithRequestOptions sets the transport timeouts passed on every Submit.
func (c *Client) WithRequestOptions(o *abi.RequestOptions) *Client {
	c.options = o
	return c
}

// Live reports the handles the guest still owns.
func (c *Client) Live() []resource.Entry {
	return c.ledger.Outstanding()
}

// Ledger exposes the handle ledger for observers.
func (c *Client) Ledger() *resource.Ledger {
	return c.ledger
}

// adopt records a handle just returned by the host.
func (c *Client) adopt(phase errors.Phase, kind resource.Kind, h uint32) (ref, error) {
	if !c.ledger.Track(kind, resource.Handle(h)) {
		return ref{}, errors.New(phase, errors.KindInvalidHandle).
			Value(h).
			Detail("host issued %s handle %d which is already live", kind, h).
			Build()
	}
	return ref{c: c, h: resource.Handle(h), kind: kind}, nil
}

// ref is the guest-side state shared by every handle wrapper.
type ref struct {
	c    *Client
	h    resource.Handle
	kind resource.Kind
	done bool
}

// Handle returns the raw handle number.
func (r *ref) Handle() resource.Handle {
	return r.h
}

// Live reports whether the wrapper still owns its handle.
func (r *ref) Live() bool {
	return r.c != nil && !r.done && r.c.ledger.Live(r.kind, r.h)
}

func (r *ref) check(phase errors.Phase) error {
	if !r.Live() {
		return errors.InvalidHandle(phase, r.kind.String(), uint32(r.h))
	}
	return nil
}

// consumed marks ownership as moved to the host.
func (r *ref) consumed() {
	r.done = true
	r.c.ledger.Consume(r.kind, r.h)
}

// release marks the handle dropped. It reports false if it was not live.
func (r *ref) release() bool {
	if !r.Live() {
		return false
	}
	r.done = true
	r.c.ledger.Drop(r.kind, r.h)
	return true
}
