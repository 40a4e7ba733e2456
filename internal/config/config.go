package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds the beat-click pipeline configuration, loaded from environment
// variables. Command-line flags override it in cmd/beatclick.
type Config struct {
	// Pipeline inputs and outputs
	SourceLocator string // YouTube URL of the track
	CachePath     string // downloaded audio, reused when present
	OutputPath    string // mixed result
	OutputFormat  string // mp3, flac, wav, opus; empty = from OutputPath extension

	// Analysis
	SampleRate int    // decode/analysis rate in Hz
	Estimator  string // auto, aubio, tracker

	// Tools
	FFmpegBin string
	AubioBin  string

	Play     bool   // open the result with the default player
	LogLevel string // zap level name
}

// TextConfig holds the five-gram report configuration.
type TextConfig struct {
	SourceURL string
	CachePath string
	N         int // words per gram
	Top       int // grams to report
	LogLevel  string
}

// Load reads the pipeline configuration from environment variables with
// defaults for the demo track and output names.
func Load() Config {
	return Config{
		SourceLocator: envStr("BEATS_SOURCE_URL", "https://www.youtube.com/watch?v=EAAnlSEVk94"),
		CachePath:     envStr("BEATS_CACHE_PATH", "music.mp3"),
		OutputPath:    envStr("BEATS_OUTPUT_PATH", "music_with_clicks.mp3"),
		OutputFormat:  envStr("BEATS_OUTPUT_FORMAT", ""),

		SampleRate: envInt("BEATS_SAMPLE_RATE", 22050),
		Estimator:  strings.ToLower(envStr("BEATS_ESTIMATOR", "auto")),

		FFmpegBin: envStr("BEATS_FFMPEG_BIN", "ffmpeg"),
		AubioBin:  envStr("BEATS_AUBIO_BIN", "aubio"),

		Play:     envBool("BEATS_PLAY", true),
		LogLevel: envStr("BEATS_LOG_LEVEL", "info"),
	}
}

// LoadText reads the five-gram report configuration.
func LoadText() TextConfig {
	return TextConfig{
		SourceURL: envStr("TEXT_SOURCE_URL", "https://www.gutenberg.org/cache/epub/10/pg10.txt"),
		CachePath: envStr("TEXT_CACHE_PATH", "bible.txt"),
		N:         envInt("TEXT_NGRAM", 5),
		Top:       envInt("TEXT_TOP", 10),
		LogLevel:  envStr("TEXT_LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
