// Package testmem provides wazero-backed linear memory for tests.
package testmem

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/wasi-http-guest/memory"
)

// HeapBase leaves the low kilobyte unused so stray zero pointers fault loudly.
const HeapBase = 1024

// Env is a guest memory plus the heap that manages it.
type Env struct {
	Mem     *memory.Wazero
	Heap    *memory.Heap
	Runtime wazero.Runtime
}

// New instantiates a fresh memory-only module and closes it when the test ends.
func New(tb testing.TB) *Env {
	tb.Helper()
	ctx := context.Background()

	rt := wazero.NewRuntime(ctx)
	tb.Cleanup(func() { _ = rt.Close(ctx) })

	mem, err := memory.Instantiate(ctx, rt)
	if err != nil {
		tb.Fatalf("%v", err)
	}

	heap := memory.NewHeap(HeapBase, mem.Size()).WithGrow(mem.GrowFunc())
	return &Env{Mem: mem, Heap: heap, Runtime: rt}
}

// Codec returns a codec over the environment's memory and heap.
func (e *Env) Codec() *memory.Codec {
	return memory.NewCodec(e.Mem, e.Heap)
}
