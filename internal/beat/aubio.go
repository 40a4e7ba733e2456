package beat

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/satindergrewal/beatclick/internal/audio"
)

// Aubio runs `aubio beat` on a temporary WAV rendering of the waveform.
type Aubio struct {
	Bin string
}

func NewAubio(bin string) *Aubio {
	if bin == "" {
		bin = "aubio"
	}
	return &Aubio{Bin: bin}
}

func (a *Aubio) Estimate(ctx context.Context, w audio.Waveform) (BeatSet, error) {
	if err := mustHave(a.Bin); err != nil {
		return BeatSet{}, fmt.Errorf("aubio not found: %w", err)
	}

	tmp, err := os.CreateTemp("", "beatclick-*.wav")
	if err != nil {
		return BeatSet{}, fmt.Errorf("create temp wav: %w", err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	if err := audio.NewEncoder("").Write(ctx, tmp.Name(), w, audio.FormatWAV); err != nil {
		return BeatSet{}, err
	}

	cmd := exec.CommandContext(ctx, a.Bin, "beat", "-i", tmp.Name())
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	out, err := cmd.Output()
	if err != nil {
		return BeatSet{}, fmt.Errorf("aubio beat: %w", audio.WithStderr(err))
	}

	times, err := parseBeatTimes(out)
	if err != nil {
		return BeatSet{}, err
	}
	return fromTimes(times, w.SampleRate), nil
}

// parseBeatTimes reads one timestamp (seconds) per line, skipping lines
// that do not start with a number.
func parseBeatTimes(out []byte) ([]float64, error) {
	var times []float64
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if v, err := strconv.ParseFloat(fields[0], 64); err == nil {
			times = append(times, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read aubio output: %w", err)
	}
	return times, nil
}
