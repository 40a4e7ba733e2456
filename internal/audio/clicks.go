package audio

import (
	"fmt"
	"math"
)

// ClickSamples returns a single click: a sine at ClickFrequency whose
// amplitude decays exponentially from 1 to 2^-10 over ClickDuration.
func ClickSamples(sampleRate int) []float64 {
	n := int(math.Round(float64(sampleRate) * ClickDuration.Seconds()))
	if n <= 0 {
		return nil
	}
	click := make([]float64, n)
	w := 2 * math.Pi * ClickFrequency / float64(sampleRate)
	for i := range click {
		exp := 0.0
		if n > 1 {
			exp = -10 * float64(i) / float64(n-1)
		}
		click[i] = math.Pow(2, exp) * math.Sin(w*float64(i))
	}
	return click
}

// RenderClicks synthesizes a click track of exactly length samples with a
// click starting at each beat frame. Clicks that run past the end are cut,
// and frames beyond the end are ignored.
func RenderClicks(frames []int, sampleRate, length int) Waveform {
	if length < 0 {
		length = 0
	}
	out := Waveform{Samples: make([]float64, length), SampleRate: sampleRate}
	click := ClickSamples(sampleRate)

	for _, start := range FramesToSamples(frames) {
		if start < 0 || start >= length {
			continue
		}
		end := min(start+len(click), length)
		for i := start; i < end; i++ {
			out.Samples[i] += click[i-start]
		}
	}
	return out
}

// Mix sums two waveforms sample by sample. Both must share length and rate.
func Mix(a, b Waveform) (Waveform, error) {
	if a.Len() != b.Len() {
		return Waveform{}, fmt.Errorf("mix %d and %d samples: %w", a.Len(), b.Len(), ErrLengthMismatch)
	}
	if a.SampleRate != b.SampleRate {
		return Waveform{}, fmt.Errorf("mix %d Hz and %d Hz: %w", a.SampleRate, b.SampleRate, ErrSampleRateMismatch)
	}

	out := Waveform{Samples: make([]float64, a.Len()), SampleRate: a.SampleRate}
	for i := range a.Samples {
		out.Samples[i] = a.Samples[i] + b.Samples[i]
	}
	return out, nil
}

// clip16 quantises a sample to int16, clamping to the representable range.
func clip16(v float64) int16 {
	s := v * 32767
	if s > 32767 {
		s = 32767
	} else if s < -32768 {
		s = -32768
	}
	return int16(s)
}

// clampUnit limits a sample to [-1, 1].
func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
