package host

import (
	"bytes"

	"go.uber.org/zap"

	"github.com/wippyai/wasi-http-guest/abi"
	"github.com/wippyai/wasi-http-guest/resource"
)

type outgoingRequestResource struct {
	headers   *fieldsResource
	body      *bytes.Buffer
	stream    *outputStreamResource
	method    string
	scheme    string
	path      string
	query     string
	authority string
	hasScheme bool
}

func (r *outgoingRequestResource) Drop() {
	if r.stream != nil {
		r.stream.closed = true
	}
}

func (h *Host) NewOutgoingRequest(
	method, methodPtr, methodLen,
	pathPtr, pathLen,
	queryPtr, queryLen,
	schemeIsSome, scheme, schemePtr, schemeLen,
	authorityPtr, authorityLen,
	headers uint32,
) uint32 {
	mem := h.memory()
	reject := func(reason string) uint32 {
		h.logger.Debug("new-outgoing-request rejected", zap.String("reason", reason))
		return 0
	}

	req := &outgoingRequestResource{body: &bytes.Buffer{}}

	switch {
	case method < abi.MethodOther:
		req.method, _ = abi.MethodName(method)
	case method == abi.MethodOther:
		name, err := readBytes(mem, methodPtr, methodLen)
		if err != nil || !isToken(name) {
			return reject("invalid method name")
		}
		req.method = string(name)
	default:
		return reject("method discriminant out of range")
	}

	if schemeIsSome != 0 {
		req.hasScheme = true
		switch scheme {
		case abi.SchemeHTTP:
			req.scheme = "http"
		case abi.SchemeHTTPS:
			req.scheme = "https"
		case abi.SchemeOther:
			name, err := readBytes(mem, schemePtr, schemeLen)
			if err != nil || len(name) == 0 {
				return reject("invalid scheme name")
			}
			req.scheme = string(name)
		default:
			return reject("scheme discriminant out of range")
		}
	}

	for _, s := range []struct {
		dst      *string
		ptr, n uint32
	}{
		{&req.path, pathPtr, pathLen},
		{&req.query, queryPtr, queryLen},
		{&req.authority, authorityPtr, authorityLen},
	} {
		b, err := readBytes(mem, s.ptr, s.n)
		if err != nil {
			return reject("unreadable string")
		}
		*s.dst = string(b)
	}

	v, ok := h.resources.RemoveTyped(resource.Handle(headers), resource.KindFields)
	if !ok {
		return reject("headers handle is not live")
	}
	req.headers = v.(*fieldsResource)

	return h.insert(resource.KindOutgoingRequest, req)
}

func (h *Host) OutgoingRequestWrite(request, resultPtr uint32) {
	mem := h.memory()
	v, ok := h.resources.GetTyped(resource.Handle(request), resource.KindOutgoingRequest)
	if !ok {
		h.lower(abi.LowerHandleResult(mem, resultPtr, abi.HandleResult{Value: abi.CodeInvalidHandle}))
		return
	}
	req := v.(*outgoingRequestResource)
	if req.stream != nil {
		h.lower(abi.LowerHandleResult(mem, resultPtr, abi.HandleResult{Value: abi.CodeAlreadyConsumed}))
		return
	}

	req.stream = &outputStreamResource{buf: req.body}
	handle := h.insert(resource.KindOutputStream, req.stream)
	h.lower(abi.LowerHandleResult(mem, resultPtr, abi.HandleResult{OK: true, Value: handle}))
}

func (h *Host) DropOutgoingRequest(request uint32) {
	h.drop(resource.KindOutgoingRequest, request)
}
