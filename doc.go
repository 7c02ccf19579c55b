// Package guesthttp is a guest-side binding layer for outbound HTTP over the
// wasi-http host call surface.
//
// A sandboxed module cannot open sockets. It asks the host to do so by calling
// imported functions that take only numbers: pointers and lengths into the
// guest's linear memory, and opaque handles naming host-side resources. This
// module turns Go values into that flat form and back, and keeps track of which
// handles the guest still owns.
//
// # Architecture Overview
//
//	guesthttp/           Root package with the Memory and Allocator interfaces
//	├── memory/          String/byte codec, scratch allocations, memory backends
//	├── resource/        Handle type, guest ledger of live handles, host table
//	├── abi/             Raw host call surface, out-parameter layouts, wasm imports
//	├── wasihttp/        Typed client: fields, requests, futures, responses, streams
//	├── host/            In-process reference host backed by net/http
//	├── errors/          Structured error types
//	└── cmd/fetch/       Command line driver for the reference host
//
// # Quick Start
//
// Inside a wasip1 guest:
//
//	client, err := wasihttp.NewDefault()
//	if err != nil {
//	    return err
//	}
//	hc := &http.Client{Transport: wasihttp.NewTransport(client)}
//	resp, err := hc.Get("http://example.test/status")
//
// Or drive the handles directly:
//
//	fields, err := client.NewFields(wasihttp.Pairs("accept", "text/plain"))
//	req, err := client.NewOutgoingRequest(wasihttp.RequestSpec{
//	    Method:    wasihttp.MethodGet,
//	    Path:      "/status",
//	    Authority: "example.test",
//	    Headers:   fields,
//	})
//	future, err := client.Submit(ctx, req)
//	resp, err := future.Resolve(ctx)
//	body, err := resp.Consume()
//	data, err := body.ReadAll(ctx)
//
// # Handle Ownership
//
// Every handle returned by the host is owned by exactly one wrapper value.
// Calls that transfer ownership (passing fields to a request, submitting a
// request, consuming a response body) invalidate the wrapper; using it again
// fails with an invalid-handle or invalid-state error before anything reaches
// the host.
//
// # Thread Safety
//
// A Client and the values it returns belong to a single logical thread of
// guest execution. Callers that share them must serialize access.
package guesthttp
