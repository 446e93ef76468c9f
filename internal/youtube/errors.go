package youtube

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// Category groups resolve failures for the UI
type Category string

// Error categories
const (
	CategoryInvalidURL Category = "invalid_url"
	CategoryExtraction Category = "extraction"
	CategoryNetwork    Category = "network"
	CategoryUnknown    Category = "unknown"
)

// Sentinel errors
var (
	ErrInvalidURL = errors.New("invalid YouTube URL")
	ErrExtraction = errors.New("stream extraction failed")
	ErrEmptyURL   = errors.New("extractor returned no URL")
)

// Substrings that mark a failure as a network problem
var networkMarkers = []string{
	"timeout",
	"timed out",
	"broken pipe",
	"connection",
	"reset by peer",
	"network is unreachable",
	"no route to host",
	"temporary failure in name resolution",
	"name or service not known",
	"unable to download webpage",
}

// Substrings that mark a failure as an extraction problem
var extractionMarkers = []string{
	"yt-dlp",
	"yt_dlp",
	"youtube",
	"extract",
	"unavailable",
	"private video",
	"sign in",
	"requested format",
	"no video formats",
}

// Hint lists shown next to each category
var categoryHints = map[Category][]string{
	CategoryInvalidURL: {
		"Use a link of the form https://www.youtube.com/watch?v=... or https://youtu.be/...",
		"Playlist and channel links are not single videos",
	},
	CategoryExtraction: {
		"Check that the video is public and not age or region restricted",
		"Update yt-dlp to the latest version",
		"Try another video",
	},
	CategoryNetwork: {
		"Check your internet connection",
		"The video server may be slow, try again in a moment",
		"A proxy or firewall may be blocking googlevideo.com",
	},
	CategoryUnknown: {
		"Check that the video is accessible in a browser",
		"Update yt-dlp and ffmpeg",
		"Try another video",
	},
}

// Attempt records one failed entry of the format chain
type Attempt struct {
	Format string `json:"format"`
	Err    error  `json:"-"`
}

// ResolveError is returned when no format of the chain produced a stream
type ResolveError struct {
	URL      string
	Category Category
	Cause    error
	Attempts []Attempt
}

// Error implements error
func (e *ResolveError) Error() string {
	msg := fmt.Sprintf("youtube %s error for %s", e.Category, e.URL)
	if len(e.Attempts) > 0 {
		formats := make([]string, 0, len(e.Attempts))
		for _, a := range e.Attempts {
			formats = append(formats, a.Format)
		}
		msg += fmt.Sprintf(" (tried %s)", strings.Join(formats, ", "))
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *ResolveError) Unwrap() error {
	return e.Cause
}

// Hints returns the user-facing suggestions for the error's category
func (e *ResolveError) Hints() []string {
	return Hints(e.Category)
}

// Hints returns the suggestions for a category
func Hints(c Category) []string {
	hints, ok := categoryHints[c]
	if !ok {
		hints = categoryHints[CategoryUnknown]
	}
	out := make([]string, len(hints))
	copy(out, hints)
	return out
}

// Classify maps an error to a category
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	var re *ResolveError
	if errors.As(err, &re) {
		return re.Category
	}
	if errors.Is(err, ErrInvalidURL) {
		return CategoryInvalidURL
	}
	if isNetworkError(err) {
		return CategoryNetwork
	}
	if errors.Is(err, ErrExtraction) || errors.Is(err, ErrEmptyURL) {
		return CategoryExtraction
	}

	msg := strings.ToLower(err.Error())
	for _, m := range extractionMarkers {
		if strings.Contains(msg, m) {
			return CategoryExtraction
		}
	}
	return CategoryUnknown
}

// isNetworkError reports timeouts and transport failures
func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range networkMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// newResolveError builds the terminal error of a resolve or download run
func newResolveError(url string, attempts []Attempt, cause error) *ResolveError {
	if cause == nil && len(attempts) > 0 {
		cause = attempts[len(attempts)-1].Err
	}
	category := Classify(cause)
	if category == CategoryUnknown {
		for _, a := range attempts {
			if c := Classify(a.Err); c != CategoryUnknown {
				category = c
				break
			}
		}
	}
	return &ResolveError{
		URL:      url,
		Category: category,
		Cause:    cause,
		Attempts: attempts,
	}
}
