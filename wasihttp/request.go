package wasihttp

import (
	"context"
	"strings"

	"go.bytecodealliance.org/cm"
	"go.uber.org/zap"

	"github.com/wippyai/wasi-http-guest/abi"
	"github.com/wippyai/wasi-http-guest/errors"
	"github.com/wippyai/wasi-http-guest/memory"
	"github.com/wippyai/wasi-http-guest/resource"
)

// Method is a request method: one of the well-known discriminants or an
// arbitrary name carried as bytes.
type Method struct {
	other []byte
	disc  uint32
}

var (
	MethodGet     = Method{disc: abi.MethodGet}
	MethodHead    = Method{disc: abi.MethodHead}
	MethodPost    = Method{disc: abi.MethodPost}
	MethodPut     = Method{disc: abi.MethodPut}
	MethodDelete  = Method{disc: abi.MethodDelete}
	MethodConnect = Method{disc: abi.MethodConnect}
	MethodOptions = Method{disc: abi.MethodOptions}
	MethodTrace   = Method{disc: abi.MethodTrace}
	MethodPatch   = Method{disc: abi.MethodPatch}
)

// MethodOther returns a method outside the well-known set.
func MethodOther(name string) Method {
	return Method{disc: abi.MethodOther, other: []byte(name)}
}

// ParseMethod maps a method name to its discriminant. Matching is exact,
// so "get" becomes an other method.
func ParseMethod(name string) Method {
	if name == "" {
		return MethodGet
	}
	d := abi.MethodDiscriminant(name)
	if d == abi.MethodOther {
		return MethodOther(name)
	}
	return Method{disc: d}
}

// Discriminant returns the value passed to the host.
func (m Method) Discriminant() uint32 {
	return m.disc
}

func (m Method) String() string {
	if name, ok := abi.MethodName(m.disc); ok {
		return name
	}
	return string(m.other)
}

// Scheme is a request scheme: http, https or an arbitrary name.
type Scheme struct {
	other []byte
	disc  uint32
}

var (
	SchemeHTTP  = Scheme{disc: abi.SchemeHTTP}
	SchemeHTTPS = Scheme{disc: abi.SchemeHTTPS}
)

func SchemeOther(name string) Scheme {
	return Scheme{disc: abi.SchemeOther, other: []byte(name)}
}

// ParseScheme maps a URL scheme to an optional Scheme. Empty means absent.
func ParseScheme(name string) cm.Option[Scheme] {
	switch strings.ToLower(name) {
	case "":
		return cm.None[Scheme]()
	case "http":
		return cm.Some(SchemeHTTP)
	case "https":
		return cm.Some(SchemeHTTPS)
	default:
		return cm.Some(SchemeOther(name))
	}
}

func (s Scheme) String() string {
	switch s.disc {
	case abi.SchemeHTTP:
		return "http"
	case abi.SchemeHTTPS:
		return "https"
	default:
		return string(s.other)
	}
}

// RequestSpec describes an outgoing request.
// Headers is consumed by a successful NewOutgoingRequest; nil means no headers.
type RequestSpec struct {
	Headers   *Fields
	Scheme    cm.Option[Scheme]
	Method    Method
	Path      string
	Query     string
	Authority string
}

// OutgoingRequest is a request handle awaiting submission.
type OutgoingRequest struct {
	body *OutputStream
	ref
	wrote     bool
	submitted bool
}

// NewOutgoingRequest builds the request on the host. Validation failures
// leave Headers untouched; a host rejection drops Headers, since no other
// handle can own it afterwards.
func (c *Client) NewOutgoingRequest(spec RequestSpec) (*OutgoingRequest, error) {
	if spec.Method.disc > abi.MethodOther {
		return nil, errors.RequestConstruction("method discriminant out of range", nil)
	}
	if spec.Method.disc == abi.MethodOther && len(spec.Method.other) == 0 {
		return nil, errors.RequestConstruction("other method requires a name", nil)
	}

	var scheme *Scheme
	if !spec.Scheme.None() {
		scheme = spec.Scheme.Some()
		if scheme.disc > abi.SchemeOther {
			return nil, errors.RequestConstruction("scheme discriminant out of range", nil)
		}
		if scheme.disc == abi.SchemeOther && len(scheme.other) == 0 {
			return nil, errors.RequestConstruction("other scheme requires a name", nil)
		}
	}

	headers := spec.Headers
	if headers == nil {
		empty, err := c.NewFields(nil)
		if err != nil {
			return nil, errors.RequestConstruction("build empty headers", err)
		}
		headers = empty
	} else if !headers.Live() {
		return nil, errors.RequestConstruction("headers are no longer live",
			errors.InvalidHandle(errors.PhaseRequest, "fields", uint32(headers.h)))
	}

	h, err := c.newOutgoingRequest(spec, scheme, headers)
	if err != nil {
		if spec.Headers == nil {
			_ = headers.Drop()
		}
		return nil, err
	}
	if h == 0 {
		if err := headers.Drop(); err != nil {
			c.logger.Warn("drop headers after rejected request", zap.Error(err))
		}
		return nil, errors.New(errors.PhaseRequest, errors.KindRequestConstruction).
			Call("new-outgoing-request").
			Detail("host rejected the request").
			Build()
	}
	headers.consumed()

	r, err := c.adopt(errors.PhaseRequest, resource.KindOutgoingRequest, h)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("outgoing request",
		zap.Stringer("method", spec.Method),
		zap.String("path", spec.Path),
		zap.String("authority", spec.Authority),
		zap.Uint32("handle", h))
	return &OutgoingRequest{ref: r}, nil
}

func (c *Client) newOutgoingRequest(spec RequestSpec, scheme *Scheme, headers *Fields) (uint32, error) {
	scratch := c.codec.Scratch()
	defer scratch.Close()

	method, err := c.codec.EncodeBytes(spec.Method.other, scratch)
	if err != nil {
		return 0, err
	}
	path, err := c.codec.Encode(spec.Path, scratch)
	if err != nil {
		return 0, err
	}
	query, err := c.codec.Encode(spec.Query, scratch)
	if err != nil {
		return 0, err
	}
	authority, err := c.codec.Encode(spec.Authority, scratch)
	if err != nil {
		return 0, err
	}

	var schemeIsSome, schemeDisc uint32
	var schemeName memory.Encoded
	if scheme != nil {
		schemeIsSome = 1
		schemeDisc = scheme.disc
		if schemeName, err = c.codec.EncodeBytes(scheme.other, scratch); err != nil {
			return 0, err
		}
	}

	return c.imports.NewOutgoingRequest(
		spec.Method.disc, method.Ptr, method.Len,
		path.Ptr, path.Len,
		query.Ptr, query.Len,
		schemeIsSome, schemeDisc, schemeName.Ptr, schemeName.Len,
		authority.Ptr, authority.Len,
		uint32(headers.h),
	), nil
}

// Write obtains the request body stream. It can be called once, before Submit.
func (r *OutgoingRequest) Write() (*OutputStream, error) {
	switch {
	case r.submitted:
		return nil, errors.InvalidState(errors.PhaseRequest, "request already submitted")
	case r.wrote:
		return nil, errors.InvalidState(errors.PhaseRequest, "body stream already obtained")
	}
	if err := r.check(errors.PhaseRequest); err != nil {
		return nil, err
	}

	c := r.c
	scratch := c.codec.Scratch()
	defer scratch.Close()

	res, err := scratch.Alloc(abi.HandleResultLayout.Size, abi.HandleResultLayout.Align)
	if err != nil {
		return nil, err
	}
	c.imports.OutgoingRequestWrite(uint32(r.h), res)

	out, err := abi.LiftHandleResult(c.codec.Memory(), res)
	if err != nil {
		return nil, err
	}
	if !out.OK {
		if out.Value == abi.CodeAlreadyConsumed {
			r.wrote = true
			return nil, errors.New(errors.PhaseRequest, errors.KindInvalidState).
				Call("outgoing-request-write").
				Detail("host reports the body stream was already taken").
				Build()
		}
		return nil, errors.New(errors.PhaseRequest, errors.KindInvalidHandle).
			Call("outgoing-request-write").
			Value(out.Value).
			Detail("host error %s", abi.CodeString(out.Value)).
			Build()
	}

	sr, err := c.adopt(errors.PhaseRequest, resource.KindOutputStream, out.Value)
	if err != nil {
		return nil, err
	}
	r.wrote = true
	r.body = &OutputStream{ref: sr}
	return r.body, nil
}

// Drop releases a request that will not be submitted.
func (r *OutgoingRequest) Drop() error {
	if r.body != nil && r.body.Live() {
		_ = r.body.Close()
	}
	if !r.release() {
		return errors.InvalidHandle(errors.PhaseRequest, "outgoing-request", uint32(r.h))
	}
	r.c.imports.DropOutgoingRequest(uint32(r.h))
	return nil
}

// Submit hands the request to the transport and returns the response future.
// An open body stream is closed first, which finishes the body. The request
// is consumed whether or not the host accepts it.
func (c *Client) Submit(ctx context.Context, req *OutgoingRequest) (*FutureResponse, error) {
	if req.submitted {
		return nil, errors.InvalidState(errors.PhaseSubmit, "request already submitted")
	}
	if err := req.check(errors.PhaseSubmit); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Canceled(errors.PhaseSubmit, err)
	}

	if req.body != nil && req.body.Live() {
		if err := req.body.Close(); err != nil {
			return nil, err
		}
	}

	s := c.options.Slots()
	h := c.imports.Handle(uint32(req.h), s[0], s[1], s[2], s[3], s[4], s[5], s[6])
	req.submitted = true
	req.consumed()

	if h == 0 {
		return nil, errors.New(errors.PhaseSubmit, errors.KindTransport).
			Call("handle").
			Value(uint32(0)).
			Detail("host refused the request").
			Build()
	}

	r, err := c.adopt(errors.PhaseSubmit, resource.KindFutureIncomingResponse, h)
	if err != nil {
		return nil, err
	}
	return &FutureResponse{ref: r}, nil
}
