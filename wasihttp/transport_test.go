package wasihttp_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	werrors "github.com/wippyai/wasi-http-guest/errors"
	"github.com/wippyai/wasi-http-guest/wasihttp"
)

func TestTransport_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Query", r.URL.RawQuery)
		w.Header().Set("X-Test", r.Header.Get("X-Test"))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(r.URL.Path + ":" + string(body)))
	}))
	defer srv.Close()

	f := setup(t, nil, nil)
	client := &http.Client{Transport: wasihttp.NewTransport(f.client)}

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/echo?x=1", strings.NewReader("payload"))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-Test", "yes")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatal(err)
	}

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if string(body) != "/echo:payload" {
		t.Errorf("body = %q", body)
	}
	got := map[string]string{
		"X-Method": resp.Header.Get("X-Method"),
		"X-Query":  resp.Header.Get("X-Query"),
		"X-Test":   resp.Header.Get("X-Test"),
	}
	want := map[string]string{"X-Method": "POST", "X-Query": "x=1", "X-Test": "yes"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("headers (-want +got):\n%s", diff)
	}
	if resp.ContentLength != int64(len(body)) {
		t.Errorf("ContentLength = %d, want %d", resp.ContentLength, len(body))
	}
	f.assertNoLeaks(t)
}

func TestTransport_CloseWithoutReading(t *testing.T) {
	f := setup(t, reply(200, strings.Repeat("x", 4096)), nil)
	client := &http.Client{Transport: wasihttp.NewTransport(f.client)}

	resp, err := client.Get("http://example.test/large")
	if err != nil {
		t.Fatal(err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := resp.Body.Read(make([]byte, 1)); err == nil {
		t.Error("read after Close succeeded")
	}
	f.assertNoLeaks(t)
}

func TestTransport_InvalidHeader(t *testing.T) {
	f := setup(t, reply(200, ""), nil)
	req, err := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header["Bad Name"] = []string{"v"}

	_, err = wasihttp.NewTransport(f.client).RoundTrip(req)
	if !errors.Is(err, werrors.ErrFieldsConstruction) {
		t.Fatalf("RoundTrip = %v, want fields construction error", err)
	}
	f.assertNoLeaks(t)
}

func TestTransport_Failure(t *testing.T) {
	rt := roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("no route to host")
	})
	f := setup(t, rt, nil)

	_, err := (&http.Client{Transport: wasihttp.NewTransport(f.client)}).Get("http://example.test/")
	if !errors.Is(err, werrors.ErrTransport) {
		t.Fatalf("Get = %v, want transport error", err)
	}
	f.assertNoLeaks(t)
}

func TestTransport_CanceledContext(t *testing.T) {
	f := setup(t, reply(200, "ok"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.test/", nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = wasihttp.NewTransport(f.client).RoundTrip(req)
	if !errors.Is(err, werrors.ErrCanceled) {
		t.Fatalf("RoundTrip = %v, want canceled error", err)
	}
	f.assertNoLeaks(t)
}
