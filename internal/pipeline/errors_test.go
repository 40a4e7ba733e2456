package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/satindergrewal/beatclick/internal/audio"
	"github.com/stretchr/testify/assert"
)

func TestErrorKindMatching(t *testing.T) {
	_, mixErr := audio.Mix(
		audio.Waveform{Samples: make([]float64, 3), SampleRate: 8000},
		audio.Waveform{Samples: make([]float64, 4), SampleRate: 8000},
	)
	err := fmt.Errorf("run: %w", wrap(MixFailed, mixErr))

	assert.ErrorIs(t, err, ErrMix)
	assert.ErrorIs(t, err, audio.ErrLengthMismatch)
	assert.NotErrorIs(t, err, ErrEncode)
	assert.Equal(t, MixFailed, KindOf(err))
	assert.Contains(t, err.Error(), "mix failed: ")
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, wrap(DecodeFailed, nil))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "acquisition failed", AcquisitionFailed.String())
	assert.Equal(t, "estimation failed", ErrEstimation.Error())
	assert.Equal(t, "unknown failure", Kind(99).String())
}
