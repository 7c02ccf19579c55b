package main

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasi-http-guest/abi"
	"github.com/wippyai/wasi-http-guest/wasihttp"
)

// config is the YAML file accepted by -config. Flags override its values.
type config struct {
	Headers      map[string]string `yaml:"headers"`
	URL          string            `yaml:"url"`
	Method       string            `yaml:"method"`
	Body         string            `yaml:"body"`
	Timeouts     timeouts          `yaml:"timeouts"`
	PollInterval time.Duration     `yaml:"poll_interval"`
	ReadChunk    uint32            `yaml:"read_chunk"`
	Blocking     bool              `yaml:"blocking"`
}

type timeouts struct {
	Connect      time.Duration `yaml:"connect"`
	FirstByte    time.Duration `yaml:"first_byte"`
	BetweenBytes time.Duration `yaml:"between_bytes"`
}

func loadConfig(path string) (*config, error) {
	cfg := &config{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// requestOptions returns nil when no timeout is configured, so the host
// applies its own default.
func (c *config) requestOptions() *abi.RequestOptions {
	t := c.Timeouts
	if t.Connect == 0 && t.FirstByte == 0 && t.BetweenBytes == 0 {
		return nil
	}
	return &abi.RequestOptions{
		ConnectTimeout:      t.Connect,
		FirstByteTimeout:    t.FirstByte,
		BetweenBytesTimeout: t.BetweenBytes,
	}
}

// headerPairs returns the configured headers sorted by name.
func (c *config) headerPairs() []wasihttp.FieldPair {
	names := make([]string, 0, len(c.Headers))
	for name := range c.Headers {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]wasihttp.FieldPair, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, wasihttp.FieldPair{Name: []byte(name), Value: []byte(c.Headers[name])})
	}
	return pairs
}

// headerFlag collects repeated -H "Name: value" flags.
type headerFlag []string

func (h *headerFlag) String() string {
	return strings.Join(*h, ", ")
}

func (h *headerFlag) Set(v string) error {
	name, _, ok := strings.Cut(v, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("header %q: want \"Name: value\"", v)
	}
	*h = append(*h, v)
	return nil
}

// apply merges flag headers into the config; flags win over the file.
func (h headerFlag) apply(cfg *config) {
	if len(h) > 0 && cfg.Headers == nil {
		cfg.Headers = make(map[string]string, len(h))
	}
	for _, v := range h {
		name, value, _ := strings.Cut(v, ":")
		cfg.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
}

// target is a parsed request URL split into the pieces the host takes.
type target struct {
	scheme    string
	authority string
	path      string
	query     string
}

func parseTarget(raw string) (target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return target{}, fmt.Errorf("parse url: %w", err)
	}
	if u.Host == "" {
		return target{}, fmt.Errorf("url %q has no host", raw)
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return target{scheme: u.Scheme, authority: u.Host, path: path, query: u.RawQuery}, nil
}
