package host

import (
	"context"
	"io"

	"github.com/wippyai/wasi-http-guest/abi"
	"github.com/wippyai/wasi-http-guest/resource"
)

type incomingResponseResource struct {
	headers  *fieldsResource
	body     io.ReadCloser
	cancel   context.CancelFunc
	status   uint32
	consumed bool
}

// Drop closes the body unless a stream took it over.
func (r *incomingResponseResource) Drop() {
	if r.consumed {
		return
	}
	_ = r.body.Close()
	r.cancel()
}

func (h *Host) IncomingResponseStatus(response uint32) uint32 {
	v, ok := h.resources.GetTyped(resource.Handle(response), resource.KindIncomingResponse)
	if !ok {
		return 0
	}
	return v.(*incomingResponseResource).status
}

// IncomingResponseHeaders returns a fresh fields handle owned by the caller.
func (h *Host) IncomingResponseHeaders(response uint32) uint32 {
	v, ok := h.resources.GetTyped(resource.Handle(response), resource.KindIncomingResponse)
	if !ok {
		return 0
	}
	src := v.(*incomingResponseResource).headers
	cp := &fieldsResource{pairs: append([]pair(nil), src.pairs...)}
	return h.insert(resource.KindFields, cp)
}

func (h *Host) IncomingResponseConsume(response, resultPtr uint32) {
	mem := h.memory()
	v, ok := h.resources.GetTyped(resource.Handle(response), resource.KindIncomingResponse)
	if !ok {
		h.lower(abi.LowerHandleResult(mem, resultPtr, abi.HandleResult{Value: abi.CodeInvalidHandle}))
		return
	}
	resp := v.(*incomingResponseResource)
	if resp.consumed {
		h.lower(abi.LowerHandleResult(mem, resultPtr, abi.HandleResult{Value: abi.CodeAlreadyConsumed}))
		return
	}

	resp.consumed = true
	stream := &inputStreamResource{r: resp.body, cancel: resp.cancel}
	handle := h.insert(resource.KindInputStream, stream)
	h.lower(abi.LowerHandleResult(mem, resultPtr, abi.HandleResult{OK: true, Value: handle}))
}

func (h *Host) DropIncomingResponse(response uint32) {
	h.drop(resource.KindIncomingResponse, response)
}
