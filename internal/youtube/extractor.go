package youtube

import (
	"context"
	"fmt"
	"strings"

	"github.com/lrstanley/go-ytdlp"
)

// Extractor asks the extraction tool for a direct media URL in a given format
type Extractor interface {
	Extract(ctx context.Context, url, format string) (string, error)
}

// ExtractorFunc adapts a function to Extractor
type ExtractorFunc func(ctx context.Context, url, format string) (string, error)

// Extract implements Extractor
func (f ExtractorFunc) Extract(ctx context.Context, url, format string) (string, error) {
	return f(ctx, url, format)
}

// YTDLPExtractor runs yt-dlp with --get-url
type YTDLPExtractor struct {
	executable string
}

// NewYTDLPExtractor creates an extractor; an empty path uses yt-dlp from PATH
func NewYTDLPExtractor(executable string) *YTDLPExtractor {
	return &YTDLPExtractor{executable: executable}
}

// Extract implements Extractor
func (e *YTDLPExtractor) Extract(ctx context.Context, url, format string) (string, error) {
	cmd := ytdlp.New().
		Format(format).
		GetURL().
		NoPlaylist().
		NoWarnings()
	if e.executable != "" {
		cmd.SetExecutable(e.executable)
	}

	res, err := cmd.Run(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		stderr := ""
		if res != nil {
			stderr = strings.TrimSpace(res.Stderr)
		}
		if stderr != "" {
			return "", fmt.Errorf("%w: %s", ErrExtraction, lastLine(stderr))
		}
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	streamURL := firstURL(res.Stdout)
	if streamURL == "" {
		return "", ErrEmptyURL
	}
	return streamURL, nil
}

// firstURL returns the first http(s) line of yt-dlp output; for separate
// video+audio formats that is the video stream
func firstURL(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line
		}
	}
	return ""
}

// lastLine keeps the final line of multi-line tool output
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
