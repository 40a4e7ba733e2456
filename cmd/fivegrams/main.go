package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/satindergrewal/beatclick/internal/acquire"
	"github.com/satindergrewal/beatclick/internal/config"
	"github.com/satindergrewal/beatclick/internal/logging"
	"github.com/satindergrewal/beatclick/internal/ngram"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	cfg := config.LoadText()

	fs := flag.NewFlagSet("fivegrams", flag.ContinueOnError)
	fs.StringVar(&cfg.SourceURL, "url", cfg.SourceURL, "plain-text corpus URL")
	fs.StringVar(&cfg.CachePath, "cache", cfg.CachePath, "downloaded text file (reused if present)")
	fs.IntVar(&cfg.N, "n", cfg.N, "words per gram")
	fs.IntVar(&cfg.Top, "top", cfg.Top, "number of grams to report")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fivegrams: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fetched, err := acquire.EnsureLocal(ctx, acquire.NewHTTP(nil), cfg.SourceURL, cfg.CachePath)
	if err != nil {
		logger.Errorw("corpus download failed", "url", cfg.SourceURL, "error", err)
		return 1
	}
	logger.Debugw("corpus ready", "path", cfg.CachePath, "downloaded", fetched)

	text, err := os.ReadFile(cfg.CachePath)
	if err != nil {
		logger.Errorw("read corpus", "path", cfg.CachePath, "error", err)
		return 1
	}

	for i, g := range ngram.Analyze(string(text), cfg.N, cfg.Top) {
		fmt.Fprintf(stdout, "#%d: %s (%d times)\n", i+1, g.Text, g.Count)
	}
	return 0
}
