package audio

import (
	"errors"
	"time"
)

const (
	DefaultSampleRate = 22050 // analysis rate used when none is configured
	HopLength         = 512   // samples per analysis frame

	ClickFrequency = 1000.0                 // Hz
	ClickDuration  = 100 * time.Millisecond // audible length of one click
)

var (
	ErrLengthMismatch     = errors.New("waveform lengths differ")
	ErrSampleRateMismatch = errors.New("waveform sample rates differ")
)

// Waveform is a mono sequence of amplitude samples at a fixed rate.
// Samples nominally lie in [-1, 1].
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Len returns the number of samples.
func (w Waveform) Len() int {
	return len(w.Samples)
}

// Duration returns the playback length of the waveform.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

// FramesToSamples converts analysis frame indices to sample offsets.
func FramesToSamples(frames []int) []int {
	out := make([]int, len(frames))
	for i, f := range frames {
		out[i] = f * HopLength
	}
	return out
}

// SecondsToFrame converts a timestamp to the nearest analysis frame.
func SecondsToFrame(sec float64, sampleRate int) int {
	return int(sec*float64(sampleRate)/HopLength + 0.5)
}

// FrameToSeconds converts an analysis frame index to a timestamp.
func FrameToSeconds(frame, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(frame*HopLength) / float64(sampleRate)
}
