package memory

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
)

// ModuleName is the name the memory-only module is instantiated under.
const ModuleName = "guest-memory"

// memoryModule exports a single one-page growable memory named "memory".
var memoryModule = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: min 1, no max
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00, // export "memory"
}

// Instantiate creates a memory-only module in rt and returns its memory.
// It stands in for a guest when the guest side runs as ordinary Go code.
func Instantiate(ctx context.Context, rt wazero.Runtime) (*Wazero, error) {
	mod, err := rt.InstantiateWithConfig(ctx, memoryModule, wazero.NewModuleConfig().WithName(ModuleName))
	if err != nil {
		return nil, fmt.Errorf("instantiate memory module: %w", err)
	}
	return NewWazero(mod.Memory()), nil
}
