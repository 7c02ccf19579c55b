package wasihttp

import (
	"github.com/wippyai/wasi-http-guest/abi"
	"github.com/wippyai/wasi-http-guest/errors"
	"github.com/wippyai/wasi-http-guest/resource"
)

// IncomingResponse is a received response.
type IncomingResponse struct {
	ref
	consumed bool
}

// Status returns the status code. Values outside 16 bits are a decode error.
func (r *IncomingResponse) Status() (uint16, error) {
	if err := r.check(errors.PhaseResponse); err != nil {
		return 0, err
	}
	v := r.c.imports.IncomingResponseStatus(uint32(r.h))
	if v > 0xFFFF {
		return 0, errors.New(errors.PhaseDecode, errors.KindEncoding).
			Call("incoming-response-status").
			Value(v).
			Detail("status %d does not fit in 16 bits", v).
			Build()
	}
	return uint16(v), nil
}

// Headers returns a new handle to the response headers. The caller owns it.
func (r *IncomingResponse) Headers() (*Fields, error) {
	if err := r.check(errors.PhaseResponse); err != nil {
		return nil, err
	}
	h := r.c.imports.IncomingResponseHeaders(uint32(r.h))
	if h == 0 {
		return nil, errors.New(errors.PhaseResponse, errors.KindInvalidHandle).
			Call("incoming-response-headers").
			Detail("host returned no headers").
			Build()
	}
	fr, err := r.c.adopt(errors.PhaseResponse, resource.KindFields, h)
	if err != nil {
		return nil, err
	}
	return &Fields{ref: fr}, nil
}

// Consume returns the body stream. It can be called once.
func (r *IncomingResponse) Consume() (*InputStream, error) {
	if r.consumed {
		return nil, errors.InvalidState(errors.PhaseResponse, "response body already consumed")
	}
	if err := r.check(errors.PhaseResponse); err != nil {
		return nil, err
	}

	c := r.c
	scratch := c.codec.Scratch()
	defer scratch.Close()

	res, err := scratch.Alloc(abi.HandleResultLayout.Size, abi.HandleResultLayout.Align)
	if err != nil {
		return nil, err
	}
	c.imports.IncomingResponseConsume(uint32(r.h), res)

	out, err := abi.LiftHandleResult(c.codec.Memory(), res)
	if err != nil {
		return nil, err
	}
	if !out.OK {
		if out.Value == abi.CodeAlreadyConsumed {
			r.consumed = true
			return nil, errors.New(errors.PhaseResponse, errors.KindInvalidState).
				Call("incoming-response-consume").
				Detail("host reports the body was already consumed").
				Build()
		}
		return nil, errors.New(errors.PhaseResponse, errors.KindInvalidHandle).
			Call("incoming-response-consume").
			Value(out.Value).
			Detail("host error %s", abi.CodeString(out.Value)).
			Build()
	}

	sr, err := c.adopt(errors.PhaseResponse, resource.KindInputStream, out.Value)
	if err != nil {
		return nil, err
	}
	r.consumed = true
	return &InputStream{ref: sr}, nil
}

// Drop releases the response. A body stream obtained from it stays valid.
func (r *IncomingResponse) Drop() error {
	if !r.release() {
		return errors.InvalidHandle(errors.PhaseResponse, "incoming-response", uint32(r.h))
	}
	r.c.imports.DropIncomingResponse(uint32(r.h))
	return nil
}
