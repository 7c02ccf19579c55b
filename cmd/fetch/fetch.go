package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/wasi-http-guest/host"
	"github.com/wippyai/wasi-http-guest/memory"
	"github.com/wippyai/wasi-http-guest/wasihttp"
)

// heapBase keeps the first kilobyte of guest memory unallocated.
const heapBase = 1024

// session runs the client and the reference host in one process, sharing a
// wazero memory the way a guest and its embedder would.
type session struct {
	rt     wazero.Runtime
	host   *host.Host
	heap   *memory.Heap
	client *wasihttp.Client
	log    *zap.Logger
}

func newSession(ctx context.Context, cfg *config, log *zap.Logger) (*session, error) {
	rt := wazero.NewRuntime(ctx)
	mem, err := memory.Instantiate(ctx, rt)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	heap := memory.NewHeap(heapBase, mem.Size()).WithGrow(mem.GrowFunc())

	h := host.New(mem).WithLogger(log).WithBlockingFutures(cfg.Blocking)
	client := wasihttp.New(h, mem, heap).
		WithLogger(log).
		WithPollInterval(cfg.PollInterval).
		WithReadChunkSize(cfg.ReadChunk).
		WithRequestOptions(cfg.requestOptions())
	if cfg.Blocking {
		client.WithFutureMode(wasihttp.FutureBlocking)
	}
	return &session{rt: rt, host: h, heap: heap, client: client, log: log}, nil
}

func (s *session) Close(ctx context.Context) error {
	if live := s.client.Live(); len(live) > 0 {
		s.log.Warn("closing with live handles", zap.Int("count", len(live)))
	}
	_ = s.host.Close()
	return s.rt.Close(ctx)
}

type result struct {
	headers []wasihttp.FieldPair
	body    []byte
	elapsed time.Duration
	status  uint16
}

// fetch performs one exchange through the handle API and releases every
// handle it obtained.
func (s *session) fetch(ctx context.Context, cfg *config) (*result, error) {
	start := time.Now()
	t, err := parseTarget(cfg.URL)
	if err != nil {
		return nil, err
	}
	c := s.client

	fields, err := c.NewFields(cfg.headerPairs())
	if err != nil {
		return nil, fmt.Errorf("headers: %w", err)
	}
	req, err := c.NewOutgoingRequest(wasihttp.RequestSpec{
		Method:    wasihttp.ParseMethod(cfg.Method),
		Scheme:    wasihttp.ParseScheme(t.scheme),
		Path:      t.path,
		Query:     t.query,
		Authority: t.authority,
		Headers:   fields,
	})
	if err != nil {
		if fields.Live() {
			_ = fields.Drop()
		}
		return nil, fmt.Errorf("request: %w", err)
	}

	if cfg.Body != "" {
		body, err := req.Write()
		if err != nil {
			_ = req.Drop()
			return nil, fmt.Errorf("request body: %w", err)
		}
		if err := body.WriteAll(ctx, []byte(cfg.Body)); err != nil {
			_ = req.Drop()
			return nil, fmt.Errorf("request body: %w", err)
		}
	}

	future, err := c.Submit(ctx, req)
	if err != nil {
		if req.Live() {
			_ = req.Drop()
		}
		return nil, fmt.Errorf("submit: %w", err)
	}
	resp, err := future.Resolve(ctx)
	if err != nil {
		if future.Live() {
			_ = future.Drop()
		}
		return nil, err
	}
	defer resp.Drop()

	status, err := resp.Status()
	if err != nil {
		return nil, err
	}
	headers, err := resp.Headers()
	if err != nil {
		return nil, err
	}
	entries, err := headers.Entries()
	_ = headers.Drop()
	if err != nil {
		return nil, err
	}

	stream, err := resp.Consume()
	if err != nil {
		return nil, err
	}
	defer stream.Drop()
	data, err := stream.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("response body: %w", err)
	}

	s.log.Debug("fetched",
		zap.String("url", cfg.URL),
		zap.Uint16("status", status),
		zap.Int("bytes", len(data)),
		zap.Uint32("heap_in_use", s.heap.InUse()))
	return &result{
		status:  status,
		headers: entries,
		body:    data,
		elapsed: time.Since(start),
	}, nil
}
