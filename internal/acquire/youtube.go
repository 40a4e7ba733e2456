package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap"
)

// ErrNoAudioStream means the video offers no audio-only MP4 format.
var ErrNoAudioStream = errors.New("no audio/mp4 stream")

// YouTube downloads the best audio-only stream of a video.
type YouTube struct {
	client *youtube.Client
	logger *zap.SugaredLogger
}

// NewYouTube creates a YouTube fetcher. httpClient may be nil.
func NewYouTube(httpClient *http.Client, logger *zap.SugaredLogger) *YouTube {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &YouTube{
		client: &youtube.Client{HTTPClient: httpClient},
		logger: logger,
	}
}

func (y *YouTube) Fetch(ctx context.Context, locator string, w io.Writer) error {
	video, err := y.client.GetVideoContext(ctx, locator)
	if err != nil {
		return fmt.Errorf("resolve video: %w", err)
	}

	format, err := BestAudio(video.Formats)
	if err != nil {
		return fmt.Errorf("video %s: %w", video.ID, err)
	}
	y.logger.Infow("downloading audio stream",
		"video", video.ID,
		"title", video.Title,
		"itag", format.ItagNo,
		"mime", format.MimeType,
		"bitrate", averageBitrate(*format),
	)

	stream, _, err := y.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	if _, err := io.Copy(w, stream); err != nil {
		return fmt.Errorf("download stream: %w", err)
	}
	return nil
}

// BestAudio returns the audio-only MP4 format with the highest average
// bitrate. Peak bitrate breaks ties.
func BestAudio(formats youtube.FormatList) (*youtube.Format, error) {
	var candidates []youtube.Format
	for _, f := range formats {
		if strings.HasPrefix(f.MimeType, "audio/mp4") {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoAudioStream
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ai, aj := averageBitrate(candidates[i]), averageBitrate(candidates[j])
		if ai != aj {
			return ai > aj
		}
		return candidates[i].Bitrate > candidates[j].Bitrate
	})
	return &candidates[0], nil
}

func averageBitrate(f youtube.Format) int {
	if f.AverageBitrate > 0 {
		return f.AverageBitrate
	}
	return f.Bitrate
}
