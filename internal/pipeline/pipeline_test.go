package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/satindergrewal/beatclick/internal/audio"
	"github.com/satindergrewal/beatclick/internal/beat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeFetcher struct {
	calls int
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, w io.Writer) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(w, "fake audio")
	return err
}

type fakeDecoder struct {
	w   audio.Waveform
	err error
}

func (d *fakeDecoder) Load(_ context.Context, path string) (audio.Waveform, error) {
	if _, err := os.Stat(path); err != nil {
		return audio.Waveform{}, err
	}
	return d.w, d.err
}

type fakeEstimator struct {
	bs  beat.BeatSet
	err error
}

func (e *fakeEstimator) Estimate(context.Context, audio.Waveform) (beat.BeatSet, error) {
	return e.bs, e.err
}

type fakeEncoder struct {
	path   string
	w      audio.Waveform
	format audio.Format
	err    error
}

func (e *fakeEncoder) Write(_ context.Context, path string, w audio.Waveform, f audio.Format) error {
	e.path, e.w, e.format = path, w, f
	return e.err
}

type harness struct {
	fetcher   *fakeFetcher
	decoder   *fakeDecoder
	estimator *fakeEstimator
	encoder   *fakeEncoder
	played    []string
	playErr   error
	opts      Options
}

func newHarness(t *testing.T) *harness {
	dir := t.TempDir()
	return &harness{
		fetcher: &fakeFetcher{},
		decoder: &fakeDecoder{w: audio.Waveform{
			Samples:    make([]float64, 10*audio.DefaultSampleRate),
			SampleRate: audio.DefaultSampleRate,
		}},
		estimator: &fakeEstimator{bs: beat.BeatSet{Tempo: 120, Frames: []int{0, 43, 86}}},
		encoder:   &fakeEncoder{},
		opts: Options{
			SourceLocator: "https://www.youtube.com/watch?v=EAAnlSEVk94",
			CachePath:     filepath.Join(dir, "music.mp3"),
			OutputPath:    filepath.Join(dir, "music_with_clicks.mp3"),
			Play:          true,
		},
	}
}

func (h *harness) pipeline(t *testing.T) *Pipeline {
	return NewPipeline(Stages{
		Fetcher:   h.fetcher,
		Decoder:   h.decoder,
		Estimator: h.estimator,
		Encoder:   h.encoder,
		Player: func(path string) error {
			h.played = append(h.played, path)
			return h.playErr
		},
		Logger: zaptest.NewLogger(t).Sugar(),
	})
}

func TestRunEndToEnd(t *testing.T) {
	h := newHarness(t)

	res, err := h.pipeline(t).Run(context.Background(), h.opts)
	require.NoError(t, err)

	assert.True(t, res.Fetched)
	assert.Equal(t, 120.0, res.Tempo)
	assert.Equal(t, 3, res.Beats)
	assert.Equal(t, audio.FormatMP3, res.Format)
	assert.Equal(t, audio.DefaultSampleRate, res.SampleRate)

	assert.Equal(t, h.opts.OutputPath, h.encoder.path)
	assert.Equal(t, audio.FormatMP3, h.encoder.format)
	require.Equal(t, h.decoder.w.Len(), h.encoder.w.Len())
	assert.Equal(t, h.decoder.w.SampleRate, h.encoder.w.SampleRate)

	clicks := audio.RenderClicks(h.estimator.bs.Frames, audio.DefaultSampleRate, h.decoder.w.Len())
	assert.Equal(t, clicks.Samples, h.encoder.w.Samples, "silence plus clicks is the click track")

	assert.Equal(t, []string{h.opts.OutputPath}, h.played)
}

func TestRunSilenceWithoutBeatsIsUnchanged(t *testing.T) {
	h := newHarness(t)
	h.estimator.bs = beat.BeatSet{}

	_, err := h.pipeline(t).Run(context.Background(), h.opts)
	require.NoError(t, err)
	assert.Equal(t, h.decoder.w.Samples, h.encoder.w.Samples)
}

func TestRunFetchesOnlyOnce(t *testing.T) {
	h := newHarness(t)
	p := h.pipeline(t)

	first, err := p.Run(context.Background(), h.opts)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), h.opts)
	require.NoError(t, err)

	assert.True(t, first.Fetched)
	assert.False(t, second.Fetched)
	assert.Equal(t, 1, h.fetcher.calls)
}

func TestRunExplicitFormatWins(t *testing.T) {
	h := newHarness(t)
	h.opts.OutputFormat = audio.FormatWAV

	res, err := h.pipeline(t).Run(context.Background(), h.opts)
	require.NoError(t, err)
	assert.Equal(t, audio.FormatWAV, res.Format)
	assert.Equal(t, audio.FormatWAV, h.encoder.format)
}

func TestRunStageFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		setup func(h *harness)
		kind  Kind
		is    error
	}{
		{
			name:  "acquisition",
			setup: func(h *harness) { h.fetcher.err = boom },
			kind:  AcquisitionFailed,
			is:    ErrAcquisition,
		},
		{
			name:  "decode",
			setup: func(h *harness) { h.decoder.err = boom },
			kind:  DecodeFailed,
			is:    ErrDecode,
		},
		{
			name:  "estimation",
			setup: func(h *harness) { h.estimator.err = boom },
			kind:  EstimationFailed,
			is:    ErrEstimation,
		},
		{
			name:  "encode",
			setup: func(h *harness) { h.encoder.err = boom },
			kind:  EncodeFailed,
			is:    ErrEncode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h)

			_, err := h.pipeline(t).Run(context.Background(), h.opts)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.ErrorIs(t, err, tt.is)
			assert.ErrorIs(t, err, boom)
			assert.Empty(t, h.played, "nothing is played after a failure")
		})
	}
}

func TestRunRejectsUnorderedBeats(t *testing.T) {
	h := newHarness(t)
	h.estimator.bs = beat.BeatSet{Tempo: 100, Frames: []int{50, 10}}

	_, err := h.pipeline(t).Run(context.Background(), h.opts)
	assert.Equal(t, EstimationFailed, KindOf(err))
	assert.ErrorIs(t, err, beat.ErrUnordered)
	assert.Empty(t, h.encoder.path)
}

func TestRunUnknownOutputExtension(t *testing.T) {
	h := newHarness(t)
	h.opts.OutputPath = filepath.Join(t.TempDir(), "out.aiff")

	_, err := h.pipeline(t).Run(context.Background(), h.opts)
	assert.ErrorIs(t, err, ErrEncode)
	assert.ErrorIs(t, err, audio.ErrUnsupportedFormat)
	assert.Zero(t, h.fetcher.calls, "format is resolved before any download")
}

func TestRunPlaybackIsBestEffort(t *testing.T) {
	h := newHarness(t)
	h.playErr = errors.New("xdg-open: not found")

	_, err := h.pipeline(t).Run(context.Background(), h.opts)
	require.NoError(t, err)
	assert.Len(t, h.played, 1)
}

func TestRunPlayDisabled(t *testing.T) {
	h := newHarness(t)
	h.opts.Play = false

	_, err := h.pipeline(t).Run(context.Background(), h.opts)
	require.NoError(t, err)
	assert.Empty(t, h.played)
}

func TestRunWithRealCodecAndTracker(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.wav")
	var frames []int
	for f := 5; f < 8*audio.DefaultSampleRate/audio.HopLength; f += 22 {
		frames = append(frames, f)
	}
	src := audio.RenderClicks(frames, audio.DefaultSampleRate, 8*audio.DefaultSampleRate)
	enc := audio.NewEncoder("")
	require.NoError(t, enc.Write(context.Background(), source, src, audio.FormatWAV))

	p := NewPipeline(Stages{
		Fetcher:   copyFetcher(source),
		Decoder:   audio.NewDecoder("", audio.DefaultSampleRate),
		Estimator: beat.NewTracker(),
		Encoder:   enc,
		Logger:    zaptest.NewLogger(t).Sugar(),
	})
	out := filepath.Join(dir, "out.wav")

	res, err := p.Run(context.Background(), Options{
		SourceLocator: "file://" + source,
		CachePath:     filepath.Join(dir, "cache.wav"),
		OutputPath:    out,
	})
	require.NoError(t, err)
	assert.Positive(t, res.Beats)

	got, err := audio.NewDecoder("", audio.DefaultSampleRate).Load(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, src.Len(), got.Len())
}

type copyFetcher string

func (c copyFetcher) Fetch(_ context.Context, _ string, w io.Writer) error {
	f, err := os.Open(string(c))
	if err != nil {
		return fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
