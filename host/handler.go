package host

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/wasi-http-guest/abi"
	"github.com/wippyai/wasi-http-guest/resource"
)

type futureIncomingResponseResource struct {
	done     chan struct{}
	cancel   context.CancelFunc
	response *incomingResponseResource
	failure  uint32
	mu       sync.Mutex
	taken    bool
	dropped  bool
}

func (f *futureIncomingResponseResource) ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *futureIncomingResponseResource) complete(resp *incomingResponseResource, failure uint32) {
	f.mu.Lock()
	f.response = resp
	f.failure = failure
	dropped := f.dropped
	f.mu.Unlock()
	close(f.done)
	if dropped && resp != nil {
		resp.Drop()
	}
}

func (f *futureIncomingResponseResource) Drop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = true
	if !f.ready() {
		f.cancel()
		return
	}
	if !f.taken && f.response != nil {
		f.response.Drop()
	}
}

// Handle consumes the request and starts the round trip. The reserved slots
// carry optional timeouts; see abi.RequestOptions.
func (h *Host) Handle(request, a, b, c, d, e, f, g uint32) uint32 {
	v, ok := h.resources.RemoveTyped(resource.Handle(request), resource.KindOutgoingRequest)
	if !ok {
		h.logger.Debug("handle: request handle is not live", zap.Uint32("request", request))
		return 0
	}
	req := v.(*outgoingRequestResource)
	opts := abi.OptionsFromSlots(a, b, c, d)

	timeout := h.timeout
	var idle time.Duration
	if opts != nil {
		if t := opts.ConnectTimeout + opts.FirstByteTimeout; t > 0 {
			timeout = t
		}
		idle = opts.BetweenBytesTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	future := &futureIncomingResponseResource{done: make(chan struct{}), cancel: cancel}
	handle := h.insert(resource.KindFutureIncomingResponse, future)

	httpReq, err := h.buildRequest(ctx, req)
	if err != nil {
		h.logger.Debug("handle: invalid request", zap.Error(err))
		cancel()
		future.complete(nil, FailureInvalidRequest)
		return handle
	}

	roundTrip := func() {
		timer := time.AfterFunc(timeout, cancel)
		resp, err := h.transport.RoundTrip(httpReq)
		stopped := timer.Stop()
		if err != nil {
			cancel()
			failure := FailureTransport
			if !stopped || errors.Is(err, context.DeadlineExceeded) {
				failure = FailureTimeout
			}
			h.logger.Debug("round trip failed", zap.String("url", httpReq.URL.String()), zap.Error(err))
			future.complete(nil, failure)
			return
		}

		body := resp.Body
		if body == nil {
			body = http.NoBody
		}
		if idle > 0 {
			body = &idleReader{r: body, idle: idle, cancel: cancel}
		}
		future.complete(&incomingResponseResource{
			status:  uint32(resp.StatusCode),
			headers: fieldsFromHeader(resp.Header),
			body:    body,
			cancel:  cancel,
		}, 0)
	}

	if h.blocking {
		roundTrip()
	} else {
		go roundTrip()
	}
	return handle
}

func (h *Host) buildRequest(ctx context.Context, req *outgoingRequestResource) (*http.Request, error) {
	scheme := req.scheme
	if !req.hasScheme {
		scheme = "https"
	}
	u := &url.URL{
		Scheme:   scheme,
		Host:     req.authority,
		RawQuery: req.query,
	}
	path := req.path
	if path == "" {
		path = "/"
	}
	if err := setPath(u, path); err != nil {
		return nil, err
	}

	var body io.Reader = http.NoBody
	if req.body.Len() > 0 {
		body = bytes.NewReader(bytes.Clone(req.body.Bytes()))
	}
	if req.stream != nil {
		req.stream.closed = true
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return nil, err
	}
	httpReq.Header = req.headers.header()
	if host := httpReq.Header.Get("Host"); host != "" {
		httpReq.Host = host
		httpReq.Header.Del("Host")
	}
	return httpReq, nil
}

// setPath accepts an already escaped path.
func setPath(u *url.URL, escaped string) error {
	p, err := url.PathUnescape(escaped)
	if err != nil {
		return err
	}
	u.Path = p
	u.RawPath = escaped
	return nil
}

// FutureIncomingResponseGet reports the response once it is available.
// The first successful get hands the response over; later gets fail.
func (h *Host) FutureIncomingResponseGet(future, resultPtr uint32) {
	mem := h.memory()
	v, ok := h.resources.GetTyped(resource.Handle(future), resource.KindFutureIncomingResponse)
	if !ok {
		h.lower(abi.LowerFutureResult(mem, resultPtr, abi.FutureResult{
			Ready:  true,
			Result: abi.HandleResult{Value: FailureInvalidRequest},
		}))
		return
	}
	f := v.(*futureIncomingResponseResource)

	if h.blocking {
		<-f.done
	} else if !f.ready() {
		h.lower(abi.LowerFutureResult(mem, resultPtr, abi.FutureResult{}))
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var out abi.HandleResult
	switch {
	case f.taken:
		out.Value = FailureAlreadyTaken
	case f.response == nil:
		out.Value = f.failure
	default:
		f.taken = true
		out = abi.HandleResult{OK: true, Value: h.insert(resource.KindIncomingResponse, f.response)}
	}
	h.lower(abi.LowerFutureResult(mem, resultPtr, abi.FutureResult{Ready: true, Result: out}))
}

func (h *Host) DropFutureIncomingResponse(future uint32) {
	h.drop(resource.KindFutureIncomingResponse, future)
}

// idleReader cancels the exchange when a single read waits longer than idle.
type idleReader struct {
	r      io.ReadCloser
	cancel context.CancelFunc
	idle   time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	t := time.AfterFunc(r.idle, r.cancel)
	n, err := r.r.Read(p)
	t.Stop()
	return n, err
}

func (r *idleReader) Close() error {
	return r.r.Close()
}
