// Package wasihttp issues outbound HTTP requests from a guest module through
// host calls.
//
// A request is assembled from host-side resources, each named by an opaque
// handle: a Fields collection for headers, an OutgoingRequest, its body
// OutputStream, the FutureResponse returned by Submit, the IncomingResponse it
// resolves to, and the response body InputStream. Every wrapper tracks whether
// it still owns its handle; owning calls on a consumed or dropped wrapper fail
// before any host call is made. Client.Live lists the handles still held.
//
//	fields, _ := client.NewFields(wasihttp.Pairs("accept", "text/plain"))
//	req, _ := client.NewOutgoingRequest(wasihttp.RequestSpec{
//		Method:    wasihttp.MethodGet,
//		Path:      "/status",
//		Scheme:    cm.Some(wasihttp.SchemeHTTPS),
//		Authority: "example.test",
//		Headers:   fields,
//	})
//	future, _ := client.Submit(ctx, req)
//	resp, _ := future.Resolve(ctx)
//	status, _ := resp.Status()
//	body, _ := resp.Consume()
//	data, _ := body.ReadAll(ctx)
//
// Transport wraps the same sequence as an http.RoundTripper.
package wasihttp
