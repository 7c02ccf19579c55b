package wasihttp_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	werrors "github.com/wippyai/wasi-http-guest/errors"
	"github.com/wippyai/wasi-http-guest/host"
	"github.com/wippyai/wasi-http-guest/wasihttp"
)

func echo() roundTripperFunc {
	return func(r *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{},
			Body:       io.NopCloser(bytes.NewReader(body)),
		}, nil
	}
}

func TestStreams_PartialWritesAndReads(t *testing.T) {
	const payload = "the quick brown fox jumps over the lazy dog"
	f := setup(t, echo(), func(h *host.Host) *host.Host {
		return h.WithMaxWriteChunk(3).WithMaxReadChunk(4)
	})
	f.client.WithReadChunkSize(5)
	ctx := context.Background()

	req, err := f.client.NewOutgoingRequest(wasihttp.RequestSpec{Method: wasihttp.MethodPost, Authority: "example.test"})
	if err != nil {
		t.Fatal(err)
	}
	body, err := req.Write()
	if err != nil {
		t.Fatal(err)
	}

	n, err := body.WriteChunk([]byte(payload))
	if err != nil || n != 3 {
		t.Fatalf("WriteChunk = %d, %v; want 3 accepted", n, err)
	}
	if err := body.WriteAll(ctx, []byte(payload[n:])); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if err := body.Close(); err != nil {
		t.Fatal(err)
	}
	if err := body.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}

	future, err := f.client.Submit(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := future.Resolve(ctx)
	if err != nil {
		t.Fatal(err)
	}
	stream, err := resp.Consume()
	if err != nil {
		t.Fatal(err)
	}

	chunk, eos, err := stream.Read(100)
	if err != nil || len(chunk) != 4 || eos {
		t.Fatalf("Read = %q eos=%v err=%v; want 4 bytes", chunk, eos, err)
	}
	rest, err := stream.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(chunk) + string(rest); got != payload {
		t.Errorf("echo = %q", got)
	}

	chunk, eos, err = stream.Read(10)
	if err != nil || len(chunk) != 0 || !eos {
		t.Errorf("Read after end = %q eos=%v err=%v", chunk, eos, err)
	}

	_ = stream.Drop()
	_ = resp.Drop()
	f.assertNoLeaks(t)
}

func TestInputStream_Reader(t *testing.T) {
	payload := strings.Repeat("0123456789", 50)
	f := setup(t, reply(200, payload), func(h *host.Host) *host.Host { return h.WithMaxReadChunk(7) })
	ctx := context.Background()

	resp, err := f.get(t, "/").Resolve(ctx)
	if err != nil {
		t.Fatal(err)
	}
	stream, err := resp.Consume()
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(stream.Reader(ctx))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != payload {
		t.Errorf("read %d bytes, want %d", len(data), len(payload))
	}
	_ = stream.Drop()
	_ = resp.Drop()
	f.assertNoLeaks(t)
}

func TestInputStream_ZeroLengthRead(t *testing.T) {
	f := setup(t, reply(200, "x"), nil)
	resp, err := f.get(t, "/").Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	stream, err := resp.Consume()
	if err != nil {
		t.Fatal(err)
	}
	chunk, eos, err := stream.Read(0)
	if err != nil || len(chunk) != 0 || eos {
		t.Errorf("Read(0) = %q eos=%v err=%v", chunk, eos, err)
	}
	_ = stream.Drop()
	_ = resp.Drop()
}

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
func (failingBody) Close() error             { return nil }

func TestInputStream_HostFailure(t *testing.T) {
	rt := roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Header: http.Header{}, Body: failingBody{}}, nil
	})
	f := setup(t, rt, nil)
	ctx := context.Background()

	resp, err := f.get(t, "/").Resolve(ctx)
	if err != nil {
		t.Fatal(err)
	}
	stream, err := resp.Consume()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := stream.ReadAll(ctx); !errors.Is(err, werrors.ErrStreamIO) {
		t.Fatalf("ReadAll = %v, want stream I/O error", err)
	}
	if _, _, err := stream.Read(1); !errors.Is(err, werrors.ErrStreamClosed) {
		t.Errorf("Read after failure = %v", err)
	}
	if err := stream.Drop(); err != nil {
		t.Errorf("Drop after failure = %v", err)
	}
	_ = resp.Drop()
	f.assertNoLeaks(t)
}

// stallingHost accepts no bytes on every write.
type stallingHost struct {
	*host.Host
	writes int
}

func (s *stallingHost) StreamsWrite(stream, ptr, length, resultPtr uint32) {
	s.writes++
	s.Host.StreamsWrite(stream, ptr, 0, resultPtr)
}

func TestOutputStream_Stalled(t *testing.T) {
	f := setup(t, nil, nil)
	stall := &stallingHost{Host: f.host}
	client := wasihttp.New(stall, f.env.Mem, f.env.Heap).
		WithMaxStalledWrites(3).
		WithPollInterval(time.Microsecond)

	req, err := client.NewOutgoingRequest(wasihttp.RequestSpec{Method: wasihttp.MethodPost})
	if err != nil {
		t.Fatal(err)
	}
	body, err := req.Write()
	if err != nil {
		t.Fatal(err)
	}
	if err := body.WriteAll(context.Background(), []byte("stuck")); !errors.Is(err, werrors.ErrStreamIO) {
		t.Fatalf("WriteAll = %v, want stream I/O error", err)
	}
	if stall.writes != 3 {
		t.Errorf("writes = %d, want 3", stall.writes)
	}
	if err := req.Drop(); err != nil {
		t.Fatal(err)
	}
	if live := client.Live(); len(live) != 0 {
		t.Errorf("guest still owns %v", live)
	}
}

// statusHost reports a status no 16-bit code can hold.
type statusHost struct {
	*host.Host
}

func (statusHost) IncomingResponseStatus(uint32) uint32 { return 70000 }

func TestIncomingResponse_StatusOutOfRange(t *testing.T) {
	f := setup(t, reply(200, ""), nil)
	client := wasihttp.New(statusHost{f.host}, f.env.Mem, f.env.Heap)

	req, err := client.NewOutgoingRequest(wasihttp.RequestSpec{Authority: "example.test"})
	if err != nil {
		t.Fatal(err)
	}
	future, err := client.Submit(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := future.Resolve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := resp.Status(); !errors.Is(err, werrors.ErrDecode) {
		t.Errorf("Status = %v, want decode error", err)
	}
	_ = resp.Drop()
}

func TestOutputStream_Writer(t *testing.T) {
	payload := strings.Repeat("abc", 100)
	f := setup(t, echo(), func(h *host.Host) *host.Host { return h.WithMaxWriteChunk(7) })
	ctx := context.Background()

	req, err := f.client.NewOutgoingRequest(wasihttp.RequestSpec{Method: wasihttp.MethodPut, Authority: "example.test"})
	if err != nil {
		t.Fatal(err)
	}
	body, err := req.Write()
	if err != nil {
		t.Fatal(err)
	}
	n, err := io.Copy(body.Writer(ctx), strings.NewReader(payload))
	if err != nil || n != int64(len(payload)) {
		t.Fatalf("Copy = %d, %v", n, err)
	}

	future, err := f.client.Submit(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := future.Resolve(ctx)
	if err != nil {
		t.Fatal(err)
	}
	stream, err := resp.Consume()
	if err != nil {
		t.Fatal(err)
	}
	got, err := stream.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != payload {
		t.Errorf("echo mismatch: %d bytes, want %d", len(got), len(payload))
	}
	_ = stream.Drop()
	_ = resp.Drop()
	f.assertNoLeaks(t)
}
