package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ytget/ytdlp/v2"

	"github.com/ytget/yolo-vision/internal/model"
)

// Playlist parsing defaults
const (
	DefaultParseTimeout = 60 * time.Second
	PlaylistParam       = "list"
	DefaultDuration     = "Unknown"
	DefaultPlaylistName = "Unknown Playlist"
	PlaylistSuffix      = " Playlist"
	MinPrefixLength     = 10
)

// ErrInvalidPlaylistURL is returned for URLs without a list parameter
var ErrInvalidPlaylistURL = errors.New("invalid playlist URL")

// PlaylistItem is one entry returned by a lister
type PlaylistItem struct {
	VideoID string
	Title   string
}

// PlaylistLister fetches the entries of a playlist
type PlaylistLister interface {
	ListPlaylist(ctx context.Context, playlistID string) ([]PlaylistItem, error)
}

// YTDLPLister lists playlists with github.com/ytget/ytdlp/v2
type YTDLPLister struct{}

// ListPlaylist implements PlaylistLister
func (YTDLPLister) ListPlaylist(ctx context.Context, playlistID string) ([]PlaylistItem, error) {
	items, err := ytdlp.New().GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, err
	}
	out := make([]PlaylistItem, 0, len(items))
	for _, it := range items {
		out = append(out, PlaylistItem{VideoID: it.VideoID, Title: it.Title})
	}
	return out, nil
}

// PlaylistParser turns a playlist URL into a list of YouTube sources
type PlaylistParser struct {
	lister  PlaylistLister
	timeout time.Duration
}

// NewPlaylistParser creates a parser; a nil lister uses yt-dlp
func NewPlaylistParser(lister PlaylistLister) *PlaylistParser {
	if lister == nil {
		lister = YTDLPLister{}
	}
	return &PlaylistParser{lister: lister, timeout: DefaultParseTimeout}
}

// SetTimeout sets the timeout for parsing operations
func (p *PlaylistParser) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		p.timeout = timeout
	}
}

// IsPlaylistURL reports whether raw carries a playlist ID
func IsPlaylistURL(raw string) bool {
	return PlaylistID(raw) != ""
}

// PlaylistID extracts the list parameter
func PlaylistID(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get(PlaylistParam)
}

// ParsePlaylist lists the videos of a playlist
func (p *PlaylistParser) ParsePlaylist(ctx context.Context, rawURL string) (*model.Playlist, error) {
	playlistID := PlaylistID(rawURL)
	if playlistID == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPlaylistURL, rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	items, err := p.lister.ListPlaylist(ctx, playlistID)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, newResolveError(rawURL, []Attempt{{Format: "playlist", Err: err}}, err)
	}

	playlist := model.NewPlaylist(rawURL)
	playlist.ID = playlistID
	now := time.Now()
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		playlist.AddVideo(&model.PlaylistVideo{
			ID:        it.VideoID,
			Title:     it.Title,
			Duration:  DefaultDuration,
			URL:       fmt.Sprintf(WatchURLTemplate, it.VideoID),
			Status:    model.VideoStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	playlist.Title = playlistTitle(playlist.Videos)
	playlist.UpdateStatus(model.PlaylistStatusReady)
	return playlist, nil
}

// playlistTitle derives a title from the common prefix of the video titles
func playlistTitle(videos []*model.PlaylistVideo) string {
	if len(videos) == 0 {
		return DefaultPlaylistName
	}
	prefix := videos[0].Title
	for _, v := range videos[1:] {
		prefix = commonPrefix(prefix, v.Title)
		if prefix == "" {
			break
		}
	}
	prefix = strings.TrimRight(prefix, " -|:")
	if len(videos) > 1 && len(prefix) >= MinPrefixLength {
		return prefix + PlaylistSuffix
	}
	return DefaultPlaylistName
}

func commonPrefix(a, b string) string {
	ar, br := []rune(a), []rune(b)
	n := 0
	for n < len(ar) && n < len(br) && ar[n] == br[n] {
		n++
	}
	return string(ar[:n])
}
