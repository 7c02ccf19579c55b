package wasihttp_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.bytecodealliance.org/cm"

	"github.com/wippyai/wasi-http-guest/abi"
	werrors "github.com/wippyai/wasi-http-guest/errors"
	"github.com/wippyai/wasi-http-guest/host"
	"github.com/wippyai/wasi-http-guest/internal/testmem"
	"github.com/wippyai/wasi-http-guest/wasihttp"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func reply(status int, body string) roundTripperFunc {
	return func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Header:     http.Header{"Content-Type": {"text/plain"}},
			Body:       io.NopCloser(strings.NewReader(body)),
		}, nil
	}
}

type fixture struct {
	client *wasihttp.Client
	host   *host.Host
	env    *testmem.Env
}

func setup(t *testing.T, rt http.RoundTripper, configure func(*host.Host) *host.Host) *fixture {
	t.Helper()
	env := testmem.New(t)
	h := host.New(env.Mem)
	if rt != nil {
		h = h.WithTransport(rt)
	}
	if configure != nil {
		h = configure(h)
	}
	t.Cleanup(func() { _ = h.Close() })
	return &fixture{
		client: wasihttp.New(h, env.Mem, env.Heap),
		host:   h,
		env:    env,
	}
}

// assertNoLeaks checks both sides agree nothing is outstanding and every
// scratch allocation came back.
func (f *fixture) assertNoLeaks(t *testing.T) {
	t.Helper()
	if live := f.client.Live(); len(live) != 0 {
		t.Errorf("guest still owns %v", live)
	}
	if n := f.host.Resources().Len(); n != 0 {
		t.Errorf("host still holds %d resources", n)
	}
	if n := f.env.Heap.InUse(); n != 0 {
		t.Errorf("%d bytes of guest memory still allocated", n)
	}
}

func (f *fixture) get(t *testing.T, path string) *wasihttp.FutureResponse {
	t.Helper()
	req, err := f.client.NewOutgoingRequest(wasihttp.RequestSpec{
		Method:    wasihttp.MethodGet,
		Path:      path,
		Scheme:    cm.Some(wasihttp.SchemeHTTPS),
		Authority: "example.test",
	})
	if err != nil {
		t.Fatalf("NewOutgoingRequest: %v", err)
	}
	future, err := f.client.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return future
}

func TestClient_GetStatus(t *testing.T) {
	var seen *http.Request
	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		seen = r
		return reply(200, "ok")(r)
	})
	f := setup(t, rt, nil)
	ctx := context.Background()

	headers, err := f.client.NewFields(wasihttp.Pairs("accept", "text/plain"))
	if err != nil {
		t.Fatalf("NewFields: %v", err)
	}
	req, err := f.client.NewOutgoingRequest(wasihttp.RequestSpec{
		Method:    wasihttp.MethodGet,
		Path:      "/status",
		Scheme:    cm.Some(wasihttp.SchemeHTTPS),
		Authority: "example.test",
		Headers:   headers,
	})
	if err != nil {
		t.Fatalf("NewOutgoingRequest: %v", err)
	}
	if headers.Live() {
		t.Error("headers should be consumed by the request")
	}

	future, err := f.client.Submit(ctx, req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	resp, err := future.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if future.Live() {
		t.Error("settled future should have released its handle")
	}

	status, err := resp.Status()
	if err != nil || status != 200 {
		t.Fatalf("Status = %d, %v", status, err)
	}
	body, err := resp.Consume()
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	// The body stream outlives the response.
	if err := resp.Drop(); err != nil {
		t.Fatalf("response Drop: %v", err)
	}

	data, err := body.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "ok" || !body.EOS() {
		t.Errorf("body = %q eos=%v", data, body.EOS())
	}
	if err := body.Drop(); err != nil {
		t.Fatalf("stream Drop: %v", err)
	}

	if seen == nil {
		t.Fatal("transport never called")
	}
	if seen.Method != "GET" || seen.URL.String() != "https://example.test/status" || seen.Header.Get("Accept") != "text/plain" {
		t.Errorf("transport saw %s %s %v", seen.Method, seen.URL, seen.Header)
	}
	f.assertNoLeaks(t)
}

func TestClient_DefaultSchemeNoHeaders(t *testing.T) {
	var seen *http.Request
	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		seen = r
		return reply(200, "ok")(r)
	})
	f := setup(t, rt, nil)
	ctx := context.Background()

	req, err := f.client.NewOutgoingRequest(wasihttp.RequestSpec{
		Method:    wasihttp.MethodGet,
		Path:      "/status",
		Scheme:    cm.None[wasihttp.Scheme](),
		Authority: "example.test",
		Headers:   nil,
	})
	if err != nil {
		t.Fatalf("NewOutgoingRequest: %v", err)
	}
	future, err := f.client.Submit(ctx, req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	resp, err := future.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	status, err := resp.Status()
	if err != nil || status != 200 {
		t.Fatalf("Status = %d, %v", status, err)
	}
	body, err := resp.Consume()
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	data, err := body.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "ok" {
		t.Errorf("body = %q", data)
	}
	if err := body.Drop(); err != nil {
		t.Fatalf("stream Drop: %v", err)
	}
	if err := resp.Drop(); err != nil {
		t.Fatalf("response Drop: %v", err)
	}

	if seen == nil {
		t.Fatal("transport never called")
	}
	if seen.URL.Host != "example.test" || seen.URL.Path != "/status" || len(seen.Header) != 0 {
		t.Errorf("transport saw %s %v", seen.URL, seen.Header)
	}
	f.assertNoLeaks(t)
}

func TestClient_SingleUse(t *testing.T) {
	f := setup(t, reply(200, "ok"), nil)
	ctx := context.Background()

	headers, err := f.client.NewFields(nil)
	if err != nil {
		t.Fatal(err)
	}
	req, err := f.client.NewOutgoingRequest(wasihttp.RequestSpec{Method: wasihttp.MethodPost, Headers: headers})
	if err != nil {
		t.Fatal(err)
	}

	t.Run("consumed fields", func(t *testing.T) {
		if err := headers.Drop(); !errors.Is(err, werrors.ErrInvalidHandle) {
			t.Errorf("Drop of consumed fields = %v", err)
		}
		_, err := f.client.NewOutgoingRequest(wasihttp.RequestSpec{Headers: headers})
		if !errors.Is(err, werrors.ErrRequestConstruction) {
			t.Errorf("reusing consumed fields = %v", err)
		}
		if _, err := headers.Entries(); !errors.Is(err, werrors.ErrInvalidHandle) {
			t.Errorf("Entries on consumed fields = %v", err)
		}
	})

	body, err := req.Write()
	if err != nil {
		t.Fatal(err)
	}
	t.Run("second write", func(t *testing.T) {
		if _, err := req.Write(); !errors.Is(err, werrors.ErrInvalidState) {
			t.Errorf("second Write = %v", err)
		}
	})

	future, err := f.client.Submit(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	t.Run("after submit", func(t *testing.T) {
		if body.Live() {
			t.Error("Submit should close the body stream")
		}
		if _, err := f.client.Submit(ctx, req); !errors.Is(err, werrors.ErrInvalidState) {
			t.Errorf("second Submit = %v", err)
		}
		if _, err := req.Write(); !errors.Is(err, werrors.ErrInvalidState) {
			t.Errorf("Write after Submit = %v", err)
		}
		if err := req.Drop(); !errors.Is(err, werrors.ErrInvalidHandle) {
			t.Errorf("Drop after Submit = %v", err)
		}
		if _, err := body.WriteChunk([]byte("late")); !errors.Is(err, werrors.ErrStreamClosed) {
			t.Errorf("write on closed body = %v", err)
		}
	})

	resp, err := future.Resolve(ctx)
	if err != nil {
		t.Fatal(err)
	}
	t.Run("settled future", func(t *testing.T) {
		again, err := future.Resolve(ctx)
		if err != nil || again != resp {
			t.Errorf("Resolve should return the cached response, got %v, %v", again, err)
		}
		if err := future.Drop(); !errors.Is(err, werrors.ErrInvalidHandle) {
			t.Errorf("Drop of settled future = %v", err)
		}
	})

	stream, err := resp.Consume()
	if err != nil {
		t.Fatal(err)
	}
	t.Run("second consume", func(t *testing.T) {
		if _, err := resp.Consume(); !errors.Is(err, werrors.ErrInvalidState) {
			t.Errorf("second Consume = %v", err)
		}
	})

	if err := stream.Drop(); err != nil {
		t.Fatal(err)
	}
	if err := resp.Drop(); err != nil {
		t.Fatal(err)
	}
	t.Run("double drops", func(t *testing.T) {
		if err := stream.Drop(); !errors.Is(err, werrors.ErrInvalidHandle) {
			t.Errorf("second stream Drop = %v", err)
		}
		if err := resp.Drop(); !errors.Is(err, werrors.ErrInvalidHandle) {
			t.Errorf("second response Drop = %v", err)
		}
		if _, err := resp.Status(); !errors.Is(err, werrors.ErrInvalidHandle) {
			t.Errorf("Status after Drop = %v", err)
		}
		if _, _, err := stream.Read(8); !errors.Is(err, werrors.ErrStreamClosed) {
			t.Errorf("Read after Drop = %v", err)
		}
	})

	f.assertNoLeaks(t)
}

func TestFields_Entries(t *testing.T) {
	tests := []struct {
		name   string
		buffer uint32
		pairs  []wasihttp.FieldPair
	}{
		{"empty", 0, nil},
		{"order and duplicates", 0, wasihttp.Pairs("x-b", "2", "x-a", "1", "x-b", "3")},
		{"empty value", 0, wasihttp.Pairs("x-flag")},
		{"buffer grows", 8, wasihttp.Pairs("x-long", strings.Repeat("v", 300), "x-other", "1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, nil, nil)
			f.client.WithEntriesBufferSize(tt.buffer)

			fields, err := f.client.NewFields(tt.pairs)
			if err != nil {
				t.Fatalf("NewFields: %v", err)
			}
			got, err := fields.Entries()
			if err != nil {
				t.Fatalf("Entries: %v", err)
			}
			want := tt.pairs
			if want == nil {
				want = []wasihttp.FieldPair{}
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("entries mismatch (-want +got):\n%s", diff)
			}
			if err := fields.Drop(); err != nil {
				t.Fatal(err)
			}
			f.assertNoLeaks(t)
		})
	}
}

func TestNewFields_Rejected(t *testing.T) {
	f := setup(t, nil, nil)
	_, err := f.client.NewFields(wasihttp.Pairs("ok", "1", "bad name", "2"))
	if !errors.Is(err, werrors.ErrFieldsConstruction) {
		t.Fatalf("NewFields = %v, want fields construction error", err)
	}
	f.assertNoLeaks(t)
}

func TestNewOutgoingRequest_Rejections(t *testing.T) {
	t.Run("invalid locally keeps headers", func(t *testing.T) {
		f := setup(t, nil, nil)
		headers, err := f.client.NewFields(nil)
		if err != nil {
			t.Fatal(err)
		}
		specs := []wasihttp.RequestSpec{
			{Method: wasihttp.MethodOther(""), Headers: headers},
			{Scheme: cm.Some(wasihttp.SchemeOther("")), Headers: headers},
			{Path: "\xff", Headers: headers},
		}
		for _, spec := range specs {
			if _, err := f.client.NewOutgoingRequest(spec); err == nil {
				t.Errorf("spec %+v accepted", spec)
			}
		}
		if !headers.Live() {
			t.Fatal("headers should survive local validation failures")
		}
		if err := headers.Drop(); err != nil {
			t.Fatal(err)
		}
		f.assertNoLeaks(t)
	})

	t.Run("host rejection drops headers", func(t *testing.T) {
		f := setup(t, nil, nil)
		headers, err := f.client.NewFields(wasihttp.Pairs("x", "1"))
		if err != nil {
			t.Fatal(err)
		}
		_, err = f.client.NewOutgoingRequest(wasihttp.RequestSpec{
			Method:  wasihttp.MethodOther("NOT VALID"),
			Headers: headers,
		})
		if !errors.Is(err, werrors.ErrRequestConstruction) {
			t.Fatalf("err = %v", err)
		}
		if headers.Live() {
			t.Error("headers should be released after the host rejected the request")
		}
		f.assertNoLeaks(t)
	})
}

func TestClient_TransportFailure(t *testing.T) {
	rt := roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})
	f := setup(t, rt, nil)

	future := f.get(t, "/")
	resp, err := future.Resolve(context.Background())
	if resp != nil {
		t.Error("failed exchange returned a response")
	}
	if !errors.Is(err, werrors.ErrTransport) {
		t.Fatalf("Resolve = %v, want transport error", err)
	}
	var we *werrors.Error
	if !errors.As(err, &we) || we.Value != host.FailureTransport {
		t.Errorf("error value = %v, want host code %d", err, host.FailureTransport)
	}
	f.assertNoLeaks(t)
}

func TestFuture_BlockingMode(t *testing.T) {
	f := setup(t, reply(204, ""), func(h *host.Host) *host.Host { return h.WithBlockingFutures(true) })
	f.client.WithFutureMode(wasihttp.FutureBlocking)

	future := f.get(t, "/")
	resp, err := future.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s, _ := resp.Status(); s != 204 {
		t.Errorf("status = %d", s)
	}
	_ = resp.Drop()
	f.assertNoLeaks(t)
}

func TestFuture_BlockingModeOnPendingHost(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		<-release
		return reply(200, "")(r)
	})
	f := setup(t, rt, nil)
	f.client.WithFutureMode(wasihttp.FutureBlocking)

	future := f.get(t, "/")
	if _, err := future.Resolve(context.Background()); !errors.Is(err, werrors.ErrInvalidState) {
		t.Fatalf("Resolve = %v, want invalid state", err)
	}
	if !future.Live() {
		t.Fatal("pending future should stay live")
	}
	if err := future.Drop(); err != nil {
		t.Fatal(err)
	}
}

func TestFuture_PollAndCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		<-release
		return reply(200, "")(r)
	})
	f := setup(t, rt, nil)

	future := f.get(t, "/")
	state, err := future.Poll()
	if err != nil || state.Status != wasihttp.Pending {
		t.Fatalf("Poll = %+v, %v", state, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = future.Resolve(ctx)
	if !errors.Is(err, werrors.ErrCanceled) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Resolve = %v, want canceled with deadline", err)
	}
	if !future.Live() {
		t.Fatal("abandoned future should stay live")
	}
	if err := future.Drop(); err != nil {
		t.Fatal(err)
	}
	if live := f.client.Live(); len(live) != 0 {
		t.Errorf("guest still owns %v", live)
	}
}

func TestSubmit_RequestOptions(t *testing.T) {
	rt := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		<-r.Context().Done()
		return nil, r.Context().Err()
	})
	f := setup(t, rt, nil)
	f.client.WithRequestOptions(&abi.RequestOptions{ConnectTimeout: 10 * time.Millisecond})

	_, err := f.get(t, "/").Resolve(context.Background())
	var we *werrors.Error
	if !errors.As(err, &we) || we.Kind != werrors.KindTransport || we.Value != host.FailureTimeout {
		t.Fatalf("Resolve = %v, want timeout failure", err)
	}
	f.assertNoLeaks(t)
}

func TestSubmit_CanceledContext(t *testing.T) {
	f := setup(t, reply(200, ""), nil)
	req, err := f.client.NewOutgoingRequest(wasihttp.RequestSpec{Authority: "example.test"})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.client.Submit(ctx, req); !errors.Is(err, werrors.ErrCanceled) {
		t.Fatalf("Submit = %v", err)
	}
	if !req.Live() {
		t.Fatal("request should stay live when Submit never reached the host")
	}
	if err := req.Drop(); err != nil {
		t.Fatal(err)
	}
	f.assertNoLeaks(t)
}

func TestOutgoingRequest_DropClosesBody(t *testing.T) {
	f := setup(t, nil, nil)
	req, err := f.client.NewOutgoingRequest(wasihttp.RequestSpec{Method: wasihttp.MethodPut})
	if err != nil {
		t.Fatal(err)
	}
	body, err := req.Write()
	if err != nil {
		t.Fatal(err)
	}
	if err := body.WriteAll(context.Background(), []byte("abandoned")); err != nil {
		t.Fatal(err)
	}
	if err := req.Drop(); err != nil {
		t.Fatal(err)
	}
	if body.Live() {
		t.Error("Drop should close the body stream")
	}
	f.assertNoLeaks(t)
}
