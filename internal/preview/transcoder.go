package preview

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/tidwall/gjson"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// FFmpeg settings for browser previews
const (
	VideoCodec         = "libx264"
	VideoPreset        = "veryfast"
	VideoCRF           = "23"
	PixelFormat        = "yuv420p"
	AudioCodec         = "aac"
	AudioBitrate       = "128k"
	FastStartFlag      = "+faststart"
	ProgressPipeTarget = "pipe:2"
	DurationTimeout    = 30 * time.Second
	DurationPath       = "format.duration"
)

// Transcoder converts a video file and reports its duration
type Transcoder interface {
	// Duration returns the length of the file in seconds
	Duration(ctx context.Context, path string) (float64, error)
	// Transcode writes an MP4 to out; ffmpeg progress lines go to progress
	Transcode(ctx context.Context, in, out string, progress io.Writer) error
}

// FFmpegTranscoder runs ffmpeg and ffprobe through ffmpeg-go
type FFmpegTranscoder struct {
	ffmpegPath string
}

// NewFFmpegTranscoder creates a transcoder; an empty path uses ffmpeg from PATH
func NewFFmpegTranscoder(ffmpegPath string) *FFmpegTranscoder {
	return &FFmpegTranscoder{ffmpegPath: ffmpegPath}
}

// OutputArgs returns the ffmpeg output options
func OutputArgs() ffmpeg.KwArgs {
	return ffmpeg.KwArgs{
		"c:v":      VideoCodec,
		"preset":   VideoPreset,
		"crf":      VideoCRF,
		"pix_fmt":  PixelFormat,
		"c:a":      AudioCodec,
		"b:a":      AudioBitrate,
		"movflags": FastStartFlag,
		"progress": ProgressPipeTarget,
		"nostats":  "",
	}
}

// Duration gets the container duration from ffprobe's JSON output
func (t *FFmpegTranscoder) Duration(ctx context.Context, path string) (float64, error) {
	timeout := DurationTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	out, err := ffmpeg.ProbeWithTimeout(path, timeout, ffmpeg.KwArgs{})
	if err != nil {
		return 0, fmt.Errorf("failed to run ffprobe: %w", err)
	}
	return parseDuration(out)
}

// Transcode runs ffmpeg until it exits or ctx is cancelled
func (t *FFmpegTranscoder) Transcode(ctx context.Context, in, out string, progress io.Writer) error {
	stream := ffmpeg.Input(in).Output(out, OutputArgs()).OverWriteOutput()
	stream.Context = ctx
	stream = stream.WithErrorOutput(progress)
	if t.ffmpegPath != "" {
		stream = stream.SetFfmpegPath(t.ffmpegPath)
	}
	if err := stream.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

// parseDuration reads format.duration from ffprobe JSON
func parseDuration(out string) (float64, error) {
	if !gjson.Valid(out) {
		return 0, fmt.Errorf("failed to parse ffprobe output")
	}
	d := gjson.Get(out, DurationPath)
	if !d.Exists() {
		return 0, fmt.Errorf("ffprobe output has no duration")
	}
	if v := d.Float(); v > 0 {
		return v, nil
	}
	return 0, fmt.Errorf("invalid duration: %q", d.String())
}
