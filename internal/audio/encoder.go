package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"gopkg.in/hraban/opus.v2"
)

// Format names an output encoding.
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatFLAC Format = "flac"
	FormatWAV  Format = "wav"
	FormatOpus Format = "opus"
)

const (
	opusSampleRate = 48000
	opusFrameSize  = 960 // samples per 20ms frame at 48kHz
	opusBitrate    = 128000
	opusPayload    = 111
)

var ErrUnsupportedFormat = errors.New("unsupported output format")

// ParseFormat validates a format name (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatMP3, FormatFLAC, FormatWAV, FormatOpus:
		return f, nil
	case "ogg":
		return FormatOpus, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrUnsupportedFormat)
	}
}

// FormatFromPath derives the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("%s has no extension: %w", path, ErrUnsupportedFormat)
	}
	return ParseFormat(ext)
}

// Encoder writes waveforms to disk.
type Encoder struct {
	FFmpegBin string
}

// NewEncoder creates an encoder that shells out to ffmpegBin for MP3 and FLAC.
func NewEncoder(ffmpegBin string) *Encoder {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	return &Encoder{FFmpegBin: ffmpegBin}
}

// Write encodes w into path using format f. Samples are clamped to [-1, 1].
func (e *Encoder) Write(ctx context.Context, path string, w Waveform, f Format) error {
	if w.SampleRate <= 0 {
		return fmt.Errorf("encode %s: invalid sample rate %d", path, w.SampleRate)
	}
	switch f {
	case FormatMP3:
		return e.writeFFmpeg(ctx, path, w, "mp3", "-codec:a", "libmp3lame", "-b:a", "192k")
	case FormatFLAC:
		return e.writeFFmpeg(ctx, path, w, "flac", "-codec:a", "flac")
	case FormatWAV:
		return writeWAV(path, w)
	case FormatOpus:
		return writeOpus(ctx, path, w)
	default:
		return fmt.Errorf("encode %s as %q: %w", path, f, ErrUnsupportedFormat)
	}
}

// writeFFmpeg pipes float32 PCM into FFmpeg and lets it encode to path.
func (e *Encoder) writeFFmpeg(ctx context.Context, path string, w Waveform, muxer string, codecArgs ...string) error {
	clamped := make([]float64, len(w.Samples))
	for i, s := range w.Samples {
		clamped[i] = clampUnit(s)
	}

	args := []string{
		"-f", "f32le",
		"-ar", strconv.Itoa(w.SampleRate),
		"-ac", "1",
		"-i", "pipe:0",
	}
	args = append(args, codecArgs...)
	args = append(args, "-f", muxer, "-loglevel", "error", "-y", path)

	cmd := exec.CommandContext(ctx, e.FFmpegBin, args...)
	cmd.Stdin = bytes.NewReader(SamplesToFloat32LE(clamped))

	if _, err := cmd.Output(); err != nil {
		return fmt.Errorf("ffmpeg encode %s: %w", path, WithStderr(err))
	}
	return nil
}

func writeWAV(path string, w Waveform) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	format := beep.Format{
		SampleRate:  beep.SampleRate(w.SampleRate),
		NumChannels: 1,
		Precision:   2,
	}
	if err := wav.Encode(f, newWaveformStreamer(w), format); err != nil {
		f.Close()
		return fmt.Errorf("encode wav %s: %w", path, err)
	}
	return f.Close()
}

// writeOpus resamples to 48kHz, encodes 20ms Opus frames and muxes them into
// an Ogg file. The final partial frame is zero-padded.
func writeOpus(ctx context.Context, path string, w Waveform) error {
	pcm := PCM16(resampleTo(w, opusSampleRate))

	enc, err := opus.NewEncoder(opusSampleRate, 1, opus.AppAudio)
	if err != nil {
		return fmt.Errorf("opus encoder: %w", err)
	}
	if err := enc.SetBitrate(opusBitrate); err != nil {
		return fmt.Errorf("opus bitrate: %w", err)
	}

	ogg, err := oggwriter.New(path, opusSampleRate, 1)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	frame := make([]int16, opusFrameSize)
	opusBuf := make([]byte, 4000)
	var seq uint16
	for off := 0; off < len(pcm); off += opusFrameSize {
		if err := ctx.Err(); err != nil {
			ogg.Close()
			return err
		}
		clear(frame)
		copy(frame, pcm[off:min(off+opusFrameSize, len(pcm))])

		n, err := enc.Encode(frame, opusBuf)
		if err != nil {
			ogg.Close()
			return fmt.Errorf("opus encode: %w", err)
		}
		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    opusPayload,
				SequenceNumber: seq,
				Timestamp:      uint32(off),
				SSRC:           1,
			},
			Payload: opusBuf[:n],
		}
		if err := ogg.WriteRTP(pkt); err != nil {
			ogg.Close()
			return fmt.Errorf("write ogg %s: %w", path, err)
		}
		seq++
	}

	return ogg.Close()
}

// resampleTo converts w to rate, returning the original samples when the
// rates already match.
func resampleTo(w Waveform, rate int) []float64 {
	if w.SampleRate == rate {
		return w.Samples
	}
	src := beep.Resample(resampleQuality, beep.SampleRate(w.SampleRate), beep.SampleRate(rate), newWaveformStreamer(w))

	out := make([]float64, 0, len(w.Samples)*rate/w.SampleRate+1)
	buf := make([][2]float64, 4096)
	for {
		n, ok := src.Stream(buf)
		for i := 0; i < n; i++ {
			out = append(out, buf[i][0])
		}
		if !ok {
			break
		}
	}
	return out
}

// PCM16 quantises samples to signed 16-bit, clamping out-of-range values.
func PCM16(samples []float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = clip16(s)
	}
	return out
}

// waveformStreamer exposes a Waveform as a beep.Streamer, duplicating the
// mono signal onto both channels.
type waveformStreamer struct {
	samples []float64
	pos     int
}

func newWaveformStreamer(w Waveform) *waveformStreamer {
	return &waveformStreamer{samples: w.Samples}
}

func (s *waveformStreamer) Stream(buf [][2]float64) (int, bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	n := 0
	for n < len(buf) && s.pos < len(s.samples) {
		v := clampUnit(s.samples[s.pos])
		buf[n] = [2]float64{v, v}
		s.pos++
		n++
	}
	return n, true
}

func (s *waveformStreamer) Err() error { return nil }
