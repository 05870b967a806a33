package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/mdpwire/internal/logging"
)

func main() {
	opts := options{}
	flag.StringVar(&opts.configPath, "config", "cmd/mdpctl/ex.config.toml", "path to the mdpctl TOML config")
	flag.StringVar(&opts.capturePath, "capture", "", "decode a capture file to stdout ('-' reads stdin)")
	flag.StringVar(&opts.format, "format", "json", "capture output format: json|msgpack")
	flag.BoolVar(&opts.serve, "serve", false, "run the HTTP decode API")
	flag.Parse()

	logging.ConfigureRuntime()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, opts, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "mdpctl: %v\n", err)
		os.Exit(1)
	}
}
