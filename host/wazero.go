package host

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasi-http-guest/abi"
	"github.com/wippyai/wasi-http-guest/memory"
)

// Instantiate registers the host modules in rt so guests compiled against
// the outbound HTTP imports can be instantiated. Without a memory from New,
// the first calling module's exported memory is used.
func (h *Host) Instantiate(ctx context.Context, rt wazero.Runtime) error {
	types := rt.NewHostModuleBuilder(abi.ModuleTypes)
	export(types, "new-fields", func(ctx context.Context, m api.Module, ptr, n uint32) uint32 {
		h.bind(m)
		return h.NewFields(ptr, n)
	})
	export(types, "fields-entries", func(ctx context.Context, m api.Module, fields, buf, n, res uint32) {
		h.bind(m)
		h.FieldsEntries(fields, buf, n, res)
	})
	export(types, "new-outgoing-request", func(ctx context.Context, m api.Module,
		method, methodPtr, methodLen, pathPtr, pathLen, queryPtr, queryLen,
		schemeIsSome, scheme, schemePtr, schemeLen, authorityPtr, authorityLen, headers uint32,
	) uint32 {
		h.bind(m)
		return h.NewOutgoingRequest(method, methodPtr, methodLen, pathPtr, pathLen, queryPtr, queryLen,
			schemeIsSome, scheme, schemePtr, schemeLen, authorityPtr, authorityLen, headers)
	})
	export(types, "outgoing-request-write", func(ctx context.Context, m api.Module, req, res uint32) {
		h.bind(m)
		h.OutgoingRequestWrite(req, res)
	})
	export(types, "future-incoming-response-get", func(ctx context.Context, m api.Module, future, res uint32) {
		h.bind(m)
		h.FutureIncomingResponseGet(future, res)
	})
	export(types, "incoming-response-status", func(ctx context.Context, m api.Module, resp uint32) uint32 {
		return h.IncomingResponseStatus(resp)
	})
	export(types, "incoming-response-headers", func(ctx context.Context, m api.Module, resp uint32) uint32 {
		return h.IncomingResponseHeaders(resp)
	})
	export(types, "incoming-response-consume", func(ctx context.Context, m api.Module, resp, res uint32) {
		h.bind(m)
		h.IncomingResponseConsume(resp, res)
	})
	export(types, "drop-fields", func(ctx context.Context, fields uint32) { h.DropFields(fields) })
	export(types, "drop-outgoing-request", func(ctx context.Context, req uint32) { h.DropOutgoingRequest(req) })
	export(types, "drop-future-incoming-response", func(ctx context.Context, f uint32) { h.DropFutureIncomingResponse(f) })
	export(types, "drop-incoming-response", func(ctx context.Context, resp uint32) { h.DropIncomingResponse(resp) })
	if _, err := types.Instantiate(ctx); err != nil {
		return fmt.Errorf("instantiate %s: %w", abi.ModuleTypes, err)
	}

	streams := rt.NewHostModuleBuilder(abi.ModuleStreams)
	export(streams, "read", func(ctx context.Context, m api.Module, stream uint32, length uint64, buf, res uint32) {
		h.bind(m)
		h.StreamsRead(stream, length, buf, res)
	})
	export(streams, "write", func(ctx context.Context, m api.Module, stream, ptr, n, res uint32) {
		h.bind(m)
		h.StreamsWrite(stream, ptr, n, res)
	})
	export(streams, "drop-input-stream", func(ctx context.Context, s uint32) { h.DropInputStream(s) })
	export(streams, "drop-output-stream", func(ctx context.Context, s uint32) { h.DropOutputStream(s) })
	if _, err := streams.Instantiate(ctx); err != nil {
		return fmt.Errorf("instantiate %s: %w", abi.ModuleStreams, err)
	}

	handler := rt.NewHostModuleBuilder(abi.ModuleHandler)
	export(handler, "handle", func(ctx context.Context, req, a, b, c, d, e, f, g uint32) uint32 {
		return h.Handle(req, a, b, c, d, e, f, g)
	})
	if _, err := handler.Instantiate(ctx); err != nil {
		return fmt.Errorf("instantiate %s: %w", abi.ModuleHandler, err)
	}
	return nil
}

func export(b wazero.HostModuleBuilder, name string, fn any) {
	b.NewFunctionBuilder().WithFunc(fn).Export(name)
}

// bind adopts the caller's memory when the host was built without one.
func (h *Host) bind(m api.Module) {
	if h.memory() != nil || m == nil {
		return
	}
	if mem := m.Memory(); mem != nil {
		h.bindMemory(memory.NewWazero(mem))
	}
}
