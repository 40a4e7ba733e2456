package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

type container int

const (
	containerOther container = iota
	containerWAV
	containerMP3
)

const resampleQuality = 4

// Decoder loads encoded audio files into mono waveforms at a fixed rate.
// PCM WAV and MPEG Layer III are decoded in-process; anything else, or
// anything the in-process decoders reject, goes through FFmpeg.
type Decoder struct {
	FFmpegBin  string
	SampleRate int
}

// NewDecoder creates a decoder. A non-positive rate selects DefaultSampleRate.
func NewDecoder(ffmpegBin string, sampleRate int) *Decoder {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Decoder{FFmpegBin: ffmpegBin, SampleRate: sampleRate}
}

// Load decodes the file at path.
func (d *Decoder) Load(ctx context.Context, path string) (Waveform, error) {
	kind, err := sniff(path)
	if err != nil {
		return Waveform{}, err
	}

	switch kind {
	case containerWAV, containerMP3:
		return d.decodeBeep(ctx, path, kind)
	default:
		return d.decodeFFmpeg(ctx, path)
	}
}

// sniff inspects the leading bytes of a file to pick a decoder.
// Extensions are ignored: YouTube's MP4 audio is routinely saved as .mp3.
func sniff(path string) (container, error) {
	f, err := os.Open(path)
	if err != nil {
		return containerOther, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 12)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return containerOther, fmt.Errorf("read %s: %w", path, err)
	}
	head = head[:n]

	switch {
	case len(head) >= 12 && bytes.Equal(head[0:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE")):
		return containerWAV, nil
	case len(head) >= 3 && bytes.Equal(head[0:3], []byte("ID3")):
		return containerMP3, nil
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0 && (head[1]>>1)&0x3 == 0x1:
		// frame sync with layer bits 01 (Layer III); ADTS AAC and MP2 share the sync word
		return containerMP3, nil
	}
	return containerOther, nil
}

func (d *Decoder) decodeBeep(ctx context.Context, path string, kind container) (Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return Waveform{}, fmt.Errorf("open %s: %w", path, err)
	}

	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)
	if kind == containerWAV {
		s, format, err = wav.Decode(f)
	} else {
		s, format, err = mp3.Decode(f)
	}
	if err != nil {
		// float and other non-PCM WAVs, truncated headers
		f.Close()
		return d.decodeFFmpeg(ctx, path)
	}
	defer s.Close()

	var src beep.Streamer = s
	if int(format.SampleRate) != d.SampleRate {
		src = beep.Resample(resampleQuality, format.SampleRate, beep.SampleRate(d.SampleRate), s)
	}

	samples := make([]float64, 0, s.Len())
	buf := make([][2]float64, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return Waveform{}, err
		}
		n, ok := src.Stream(buf)
		for i := 0; i < n; i++ {
			samples = append(samples, (buf[i][0]+buf[i][1])/2)
		}
		if !ok {
			break
		}
	}
	if err := src.Err(); err != nil {
		return Waveform{}, fmt.Errorf("decode %s: %w", path, err)
	}

	return Waveform{Samples: samples, SampleRate: d.SampleRate}, nil
}

// decodeFFmpeg runs FFmpeg to decode any supported file to mono float32 PCM.
func (d *Decoder) decodeFFmpeg(ctx context.Context, path string) (Waveform, error) {
	cmd := exec.CommandContext(ctx, d.FFmpegBin,
		"-i", path,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ar", strconv.Itoa(d.SampleRate),
		"-ac", "1",
		"-loglevel", "error",
		"pipe:1",
	)

	out, err := cmd.Output()
	if err != nil {
		return Waveform{}, fmt.Errorf("ffmpeg decode %s: %w", path, WithStderr(err))
	}

	return Waveform{Samples: Float32LEToSamples(out), SampleRate: d.SampleRate}, nil
}

// Float32LEToSamples converts little-endian float32 PCM to samples.
// A trailing partial sample is dropped.
func Float32LEToSamples(pcm []byte) []float64 {
	samples := make([]float64, len(pcm)/4)
	for i := range samples {
		samples[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(pcm[i*4 : i*4+4])))
	}
	return samples
}

// SamplesToFloat32LE converts samples to little-endian float32 PCM.
func SamplesToFloat32LE(samples []float64) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(s)))
	}
	return buf
}

// WithStderr appends a subprocess's stderr to its exit error. The stderr is
// only captured when the command ran via Output with cmd.Stderr unset.
func WithStderr(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if msg := strings.TrimSpace(string(exitErr.Stderr)); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
	}
	return err
}
