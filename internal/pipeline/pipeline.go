// Package pipeline runs the beat-click job: acquire a track, decode it,
// estimate beats, overlay a click track and encode the result.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/satindergrewal/beatclick/internal/acquire"
	"github.com/satindergrewal/beatclick/internal/audio"
	"github.com/satindergrewal/beatclick/internal/beat"
	"go.uber.org/zap"
)

// Options are the inputs of a single run.
type Options struct {
	SourceLocator string
	CachePath     string
	OutputPath    string
	OutputFormat  audio.Format // empty: derived from OutputPath
	Play          bool
}

// Decoder loads an audio file.
type Decoder interface {
	Load(ctx context.Context, path string) (audio.Waveform, error)
}

// Encoder writes a waveform to a file.
type Encoder interface {
	Write(ctx context.Context, path string, w audio.Waveform, f audio.Format) error
}

// Stages are the collaborators a run sequences.
type Stages struct {
	Fetcher   acquire.Fetcher
	Decoder   Decoder
	Estimator beat.Estimator
	Encoder   Encoder
	Player    func(path string) error // nil disables playback
	Logger    *zap.SugaredLogger
}

// Result summarises a successful run.
type Result struct {
	Fetched    bool
	Duration   time.Duration
	SampleRate int
	Tempo      float64
	Beats      int
	OutputPath string
	Format     audio.Format
}

// Pipeline runs stages strictly in order; the first failure ends the run.
type Pipeline struct {
	stages Stages
	logger *zap.SugaredLogger
}

// NewPipeline creates a pipeline over the given stages.
func NewPipeline(s Stages) *Pipeline {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Pipeline{stages: s, logger: logger}
}

// Run executes one job.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Result, error) {
	format := opts.OutputFormat
	if format == "" {
		f, err := audio.FormatFromPath(opts.OutputPath)
		if err != nil {
			return Result{}, wrap(EncodeFailed, err)
		}
		format = f
	}

	fetched, err := acquire.EnsureLocal(ctx, p.stages.Fetcher, opts.SourceLocator, opts.CachePath)
	if err != nil {
		return Result{}, wrap(AcquisitionFailed, err)
	}
	if fetched {
		p.logger.Infow("source downloaded", "locator", opts.SourceLocator, "path", opts.CachePath)
	} else {
		p.logger.Infow("source cached, skipping download", "path", opts.CachePath)
	}

	src, err := p.stages.Decoder.Load(ctx, opts.CachePath)
	if err != nil {
		return Result{}, wrap(DecodeFailed, err)
	}
	p.logger.Infow("source decoded",
		"samples", src.Len(),
		"sample_rate", src.SampleRate,
		"duration", src.Duration().String(),
	)

	beats, err := p.stages.Estimator.Estimate(ctx, src)
	if err != nil {
		return Result{}, wrap(EstimationFailed, err)
	}
	if err := beats.Validate(); err != nil {
		return Result{}, wrap(EstimationFailed, err)
	}
	p.logger.Infow("beats estimated", "tempo", fmt.Sprintf("%.2f", beats.Tempo), "beats", len(beats.Frames))

	mixed, err := overlay(src, beats)
	if err != nil {
		return Result{}, wrap(MixFailed, err)
	}

	if err := p.stages.Encoder.Write(ctx, opts.OutputPath, mixed, format); err != nil {
		return Result{}, wrap(EncodeFailed, err)
	}
	p.logger.Infow("output written", "path", opts.OutputPath, "format", string(format))

	if opts.Play && p.stages.Player != nil {
		if err := p.stages.Player(opts.OutputPath); err != nil {
			p.logger.Warnw("playback not started", "path", opts.OutputPath, "error", err)
		}
	}

	return Result{
		Fetched:    fetched,
		Duration:   src.Duration(),
		SampleRate: src.SampleRate,
		Tempo:      beats.Tempo,
		Beats:      len(beats.Frames),
		OutputPath: opts.OutputPath,
		Format:     format,
	}, nil
}

// overlay renders a click track against the source length and mixes it in.
func overlay(src audio.Waveform, beats beat.BeatSet) (audio.Waveform, error) {
	clicks := audio.RenderClicks(beats.Frames, src.SampleRate, src.Len())
	return audio.Mix(src, clicks)
}
