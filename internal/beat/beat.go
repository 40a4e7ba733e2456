// Package beat estimates tempo and beat positions from a waveform.
//
// Two backends are available: Aubio shells out to the aubio command-line
// tool, Tracker runs an in-process spectral-flux beat tracker. Both report
// beats as analysis frames of audio.HopLength samples.
package beat

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"

	"github.com/satindergrewal/beatclick/internal/audio"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrUnordered        = errors.New("beat frames not strictly increasing")
	ErrUnknownEstimator = errors.New("unknown beat estimator")
)

// BeatSet is an estimated tempo plus the frames at which beats fall.
type BeatSet struct {
	Tempo  float64 // beats per minute, 0 when no beat was found
	Frames []int   // strictly increasing
}

// Validate checks the ordering invariant.
func (b BeatSet) Validate() error {
	for i, f := range b.Frames {
		if f < 0 {
			return fmt.Errorf("frame %d is negative (%d): %w", i, f, ErrUnordered)
		}
		if i > 0 && f <= b.Frames[i-1] {
			return fmt.Errorf("frame %d (%d) follows %d: %w", i, f, b.Frames[i-1], ErrUnordered)
		}
	}
	return nil
}

// Times returns beat positions in seconds.
func (b BeatSet) Times(sampleRate int) []float64 {
	out := make([]float64, len(b.Frames))
	for i, f := range b.Frames {
		out[i] = audio.FrameToSeconds(f, sampleRate)
	}
	return out
}

// Estimator produces a BeatSet from a waveform.
type Estimator interface {
	Estimate(ctx context.Context, w audio.Waveform) (BeatSet, error)
}

// New returns the estimator named by backend: "aubio", "tracker", or "auto"
// (aubio when its binary is on PATH, the tracker otherwise).
func New(backend, aubioBin string, logger *zap.SugaredLogger) (Estimator, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	switch backend {
	case "aubio":
		return NewAubio(aubioBin), nil
	case "tracker":
		return NewTracker(), nil
	case "auto", "":
		if mustHave(aubioBin) == nil {
			logger.Infow("beat estimator selected", "backend", "aubio", "bin", aubioBin)
			return NewAubio(aubioBin), nil
		}
		logger.Infow("beat estimator selected", "backend", "tracker", "reason", "aubio not on PATH")
		return NewTracker(), nil
	default:
		return nil, fmt.Errorf("%q: %w", backend, ErrUnknownEstimator)
	}
}

// fromTimes converts beat timestamps to a BeatSet. Frames are sorted and
// de-duplicated; tempo comes from the median inter-beat interval.
func fromTimes(times []float64, sampleRate int) BeatSet {
	frames := make([]int, 0, len(times))
	for _, t := range times {
		if t < 0 {
			continue
		}
		frames = append(frames, audio.SecondsToFrame(t, sampleRate))
	}
	sort.Ints(frames)
	frames = dedupe(frames)

	var tempo float64
	if len(frames) >= 2 {
		intervals := make([]float64, len(frames)-1)
		for i := 1; i < len(frames); i++ {
			intervals[i-1] = audio.FrameToSeconds(frames[i]-frames[i-1], sampleRate)
		}
		sort.Float64s(intervals)
		if med := stat.Quantile(0.5, stat.Empirical, intervals, nil); med > 0 {
			tempo = 60 / med
		}
	}
	return BeatSet{Tempo: tempo, Frames: frames}
}

func dedupe(sorted []int) []int {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, f := range sorted[1:] {
		if f != out[len(out)-1] {
			out = append(out, f)
		}
	}
	return out
}

func mustHave(bin string) error {
	_, err := exec.LookPath(bin)
	return err
}
