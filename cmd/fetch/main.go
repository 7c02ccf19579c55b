package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasi-http-guest/memory"
	"github.com/wippyai/wasi-http-guest/wasihttp"
)

func main() {
	var headers headerFlag
	var (
		rawURL      = flag.String("url", "", "Request URL")
		method      = flag.String("method", "", "Request method (default GET)")
		data        = flag.String("data", "", "Request body")
		configFile  = flag.String("config", "", "YAML file with request defaults")
		wasmFile    = flag.String("wasm", "", "Run a wasip1 guest module against the host instead")
		poll        = flag.Duration("poll", 0, "Interval between future polls")
		blocking    = flag.Bool("blocking", false, "Let the host block inside future gets")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Log handle traffic to stderr")
	)
	flag.Var(&headers, "H", "Request header \"Name: value\" (repeatable)")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fail(err)
	}
	if *rawURL != "" {
		cfg.URL = *rawURL
	}
	if *method != "" {
		cfg.Method = *method
	}
	if *data != "" {
		cfg.Body = *data
	}
	if *poll > 0 {
		cfg.PollInterval = *poll
	}
	if *blocking {
		cfg.Blocking = true
	}
	headers.apply(cfg)

	log := zap.NewNop()
	if *verbose {
		if log, err = zap.NewDevelopment(); err != nil {
			fail(err)
		}
		defer log.Sync()
	}
	memory.SetLogger(log)
	wasihttp.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *wasmFile != "" {
		if err := runGuest(ctx, *wasmFile, flag.Args(), cfg, log); err != nil {
			fail(err)
		}
		return
	}

	if cfg.URL == "" && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: fetch -url <url> [-method M] [-H 'Name: value'] [-data body] [-config file.yaml]")
		fmt.Fprintln(os.Stderr, "       fetch -i  (interactive mode)")
		fmt.Fprintln(os.Stderr, "       fetch -wasm <guest.wasm> [args...]")
		os.Exit(1)
	}

	if *interactive && term.IsTerminal(int(os.Stdout.Fd())) {
		if err := runInteractive(ctx, cfg, log); err != nil {
			fail(err)
		}
		return
	}

	if err := run(ctx, cfg, log); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func run(ctx context.Context, cfg *config, log *zap.Logger) error {
	s, err := newSession(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	res, err := s.fetch(ctx, cfg)
	if err != nil {
		return err
	}

	fmt.Printf("HTTP %d (%s)\n", res.status, res.elapsed.Round(time.Millisecond))
	for _, h := range res.headers {
		fmt.Printf("%s: %s\n", h.Name, h.Value)
	}
	fmt.Println()
	_, err = os.Stdout.Write(res.body)
	return err
}
