package youtube

import (
	"fmt"
	"net/url"
	"strings"
)

// URL patterns accepted as a single video
const (
	WatchPattern = "youtube.com/watch"
	ShortPattern = "youtu.be/"
	VideoParam   = "v"
)

// URL templates
const (
	WatchURLTemplate = "https://www.youtube.com/watch?v=%s"
)

// ValidateURL checks that raw points at a single YouTube video
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: empty URL", ErrInvalidURL)
	}
	if !strings.Contains(raw, WatchPattern) && !strings.Contains(raw, ShortPattern) {
		return fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}
	if VideoID(raw) == "" {
		return fmt.Errorf("%w: no video id in %s", ErrInvalidURL, raw)
	}
	return nil
}

// VideoID extracts the video ID from watch and short URLs
func VideoID(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	host = strings.TrimPrefix(host, "m.")
	switch host {
	case "youtu.be":
		return strings.Trim(strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)[0], " ")
	case "youtube.com", "music.youtube.com":
		if strings.HasPrefix(u.Path, "/watch") {
			return u.Query().Get(VideoParam)
		}
	}
	return ""
}

// CanonicalURL rewrites any accepted form into a watch URL
func CanonicalURL(raw string) string {
	if id := VideoID(raw); id != "" {
		return fmt.Sprintf(WatchURLTemplate, id)
	}
	return strings.TrimSpace(raw)
}
