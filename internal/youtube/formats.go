package youtube

import "fmt"

// Format is one entry of the fallback chain
type Format struct {
	Name string // short label used in logs and errors
	Spec string // yt-dlp -f expression
}

// Format names in priority order
const (
	FormatMergedMP4 = "merged-mp4"
	FormatMergedAny = "merged-any"
	FormatSeparate  = "separate-streams"
	FormatBestAvail = "best-available"
)

// DefaultMaxHeight caps the resolution requested from the chain
const (
	DefaultMaxHeight = 720
)

// FormatChain returns the yt-dlp format preferences tried in order: merged MP4
// up to maxHeight, any merged format up to maxHeight, separate video+audio
// streams, then whatever is best. Only the video URL of separate streams is used.
func FormatChain(maxHeight int) []Format {
	if maxHeight <= 0 {
		maxHeight = DefaultMaxHeight
	}
	return []Format{
		{Name: FormatMergedMP4, Spec: fmt.Sprintf("best[ext=mp4][height<=%d]", maxHeight)},
		{Name: FormatMergedAny, Spec: fmt.Sprintf("best[height<=%d]", maxHeight)},
		{Name: FormatSeparate, Spec: fmt.Sprintf("bestvideo[height<=%d]+bestaudio/bestvideo+bestaudio", maxHeight)},
		{Name: FormatBestAvail, Spec: "best"},
	}
}
