package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/wasi-http-guest/host"
)

// runGuest runs a wasip1 command module whose outbound requests are served
// by the reference host.
func runGuest(ctx context.Context, path string, args []string, cfg *config, log *zap.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}

	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return fmt.Errorf("instantiate WASI: %w", err)
	}

	h := host.New(nil).WithLogger(log).WithBlockingFutures(cfg.Blocking)
	defer h.Close()
	if err := h.Instantiate(ctx, rt); err != nil {
		return err
	}

	modCfg := wazero.NewModuleConfig().
		WithStdout(os.Stdout).
		WithStderr(os.Stderr).
		WithArgs(append([]string{path}, args...)...)

	_, err = rt.InstantiateWithConfig(ctx, data, modCfg)
	var exit *sys.ExitError
	if errors.As(err, &exit) && exit.ExitCode() == 0 {
		err = nil
	}
	if n := h.Resources().Len(); n > 0 {
		log.Warn("guest exited with live host resources", zap.Int("count", n))
	}
	return err
}
