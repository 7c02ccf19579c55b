package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/wasi-http-guest/abi"
	"github.com/wippyai/wasi-http-guest/wasihttp"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fetch.yaml")
	yaml := `
url: https://example.test/status
method: POST
body: hello
headers:
  x-b: "2"
  accept: text/plain
poll_interval: 5ms
read_chunk: 4096
blocking: true
timeouts:
  connect: 2s
  between_bytes: 500ms
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	want := &config{
		URL:          "https://example.test/status",
		Method:       "POST",
		Body:         "hello",
		Headers:      map[string]string{"x-b": "2", "accept": "text/plain"},
		PollInterval: 5 * time.Millisecond,
		ReadChunk:    4096,
		Blocking:     true,
		Timeouts:     timeouts{Connect: 2 * time.Second, BetweenBytes: 500 * time.Millisecond},
	}
	if diff := cmp.Diff(want, cfg, cmp.AllowUnexported(config{}, timeouts{})); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	opts := cfg.requestOptions()
	if diff := cmp.Diff(&abi.RequestOptions{ConnectTimeout: 2 * time.Second, BetweenBytesTimeout: 500 * time.Millisecond}, opts); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}

	pairs := cfg.headerPairs()
	if diff := cmp.Diff(wasihttp.Pairs("accept", "text/plain", "x-b", "2"), pairs); diff != "" {
		t.Errorf("header pairs not sorted (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("url: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Error("malformed yaml accepted")
	}

	cfg, err := loadConfig("")
	if err != nil || cfg.requestOptions() != nil {
		t.Errorf("empty config = %+v, %v", cfg, err)
	}
}

func TestHeaderFlag(t *testing.T) {
	var h headerFlag
	for _, v := range []string{"Accept: text/html", "X-Empty:", "X-Spaced :  v  "} {
		if err := h.Set(v); err != nil {
			t.Fatalf("Set(%q): %v", v, err)
		}
	}
	if err := h.Set("no-colon"); err == nil {
		t.Error("header without colon accepted")
	}
	if err := h.Set(": value"); err == nil {
		t.Error("header without name accepted")
	}

	cfg := &config{Headers: map[string]string{"Accept": "*/*", "X-Keep": "1"}}
	h.apply(cfg)
	want := map[string]string{"Accept": "text/html", "X-Empty": "", "X-Spaced": "v", "X-Keep": "1"}
	if diff := cmp.Diff(want, cfg.Headers); diff != "" {
		t.Errorf("headers (-want +got):\n%s", diff)
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		raw     string
		want    target
		wantErr bool
	}{
		{raw: "https://example.test/status", want: target{scheme: "https", authority: "example.test", path: "/status"}},
		{raw: "http://example.test:8080", want: target{scheme: "http", authority: "example.test:8080", path: "/"}},
		{raw: "http://example.test/a%20b?x=1&y=2", want: target{scheme: "http", authority: "example.test", path: "/a%20b", query: "x=1&y=2"}},
		{raw: "/relative", wantErr: true},
		{raw: "http://[::1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseTarget(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseTarget accepted %q", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(target{})); diff != "" {
				t.Errorf("target (-want +got):\n%s", diff)
			}
		})
	}
}
