package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/satindergrewal/beatclick/internal/acquire"
	"github.com/satindergrewal/beatclick/internal/audio"
	"github.com/satindergrewal/beatclick/internal/beat"
	"github.com/satindergrewal/beatclick/internal/config"
	"github.com/satindergrewal/beatclick/internal/logging"
	"github.com/satindergrewal/beatclick/internal/pipeline"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := config.Load()

	fs := flag.NewFlagSet("beatclick", flag.ContinueOnError)
	fs.StringVar(&cfg.SourceLocator, "url", cfg.SourceLocator, "YouTube URL of the track")
	fs.StringVar(&cfg.CachePath, "cache", cfg.CachePath, "downloaded audio file (reused if present)")
	fs.StringVar(&cfg.OutputPath, "out", cfg.OutputPath, "output file")
	fs.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "output format: mp3, flac, wav, opus (default: from -out extension)")
	fs.StringVar(&cfg.Estimator, "estimator", cfg.Estimator, "beat estimator: auto, aubio, tracker")
	noPlay := fs.Bool("no-play", !cfg.Play, "do not open the result with the default player")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	cfg.Play = !*noPlay

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "beatclick: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	var format audio.Format
	if cfg.OutputFormat != "" {
		format, err = audio.ParseFormat(cfg.OutputFormat)
		if err != nil {
			logger.Errorw("invalid output format", "error", err)
			return 1
		}
	}

	estimator, err := beat.New(cfg.Estimator, cfg.AubioBin, logger)
	if err != nil {
		logger.Errorw("invalid beat estimator", "error", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	p := pipeline.NewPipeline(pipeline.Stages{
		Fetcher:   acquire.NewYouTube(http.DefaultClient, logger),
		Decoder:   audio.NewDecoder(cfg.FFmpegBin, cfg.SampleRate),
		Estimator: estimator,
		Encoder:   audio.NewEncoder(cfg.FFmpegBin),
		Player:    audio.Play,
		Logger:    logger,
	})

	res, err := p.Run(ctx, pipeline.Options{
		SourceLocator: cfg.SourceLocator,
		CachePath:     cfg.CachePath,
		OutputPath:    cfg.OutputPath,
		OutputFormat:  format,
		Play:          cfg.Play,
	})
	if err != nil {
		logger.Errorw("beatclick failed", "kind", pipeline.KindOf(err).String(), "error", err)
		return 1
	}

	logger.Infow("beatclick done",
		"output", res.OutputPath,
		"format", string(res.Format),
		"tempo", fmt.Sprintf("%.2f", res.Tempo),
		"beats", res.Beats,
		"duration", res.Duration.String(),
	)
	return 0
}
