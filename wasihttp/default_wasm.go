//go:build wasip1

package wasihttp

import (
	"github.com/wippyai/wasi-http-guest/abi"
	"github.com/wippyai/wasi-http-guest/memory"
)

// NewDefault returns a client bound to the embedding host's imports and the
// guest's own memory.
func NewDefault() (*Client, error) {
	mem := memory.NewNative()
	return New(abi.Wasm{}, mem, mem), nil
}
