package model

import (
	"time"
)

// PlaylistStatus represents the current status of a playlist
type PlaylistStatus string

const (
	PlaylistStatusParsing PlaylistStatus = "parsing"
	PlaylistStatusReady   PlaylistStatus = "ready"
	PlaylistStatusError   PlaylistStatus = "error"
)

// VideoStatus represents the status of a single video in playlist
type VideoStatus string

const (
	VideoStatusPending   VideoStatus = "pending"
	VideoStatusAnalyzing VideoStatus = "analyzing"
	VideoStatusAnalyzed  VideoStatus = "analyzed"
	VideoStatusError     VideoStatus = "error"
)

// PlaylistVideo represents a single video in a playlist
type PlaylistVideo struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Duration  string      `json:"duration"`
	URL       string      `json:"url"`
	Status    VideoStatus `json:"status"`
	SessionID string      `json:"session_id,omitempty"` // last detection session run on it
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Playlist represents a YouTube playlist offered as a list of sources
type Playlist struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	URL         string           `json:"url"`
	Videos      []*PlaylistVideo `json:"videos"`
	Status      PlaylistStatus   `json:"status"`
	TotalVideos int              `json:"total_videos"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// NewPlaylist creates a new playlist instance
func NewPlaylist(url string) *Playlist {
	now := time.Now()
	return &Playlist{
		URL:       url,
		Status:    PlaylistStatusParsing,
		Videos:    make([]*PlaylistVideo, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddVideo adds a video to the playlist
func (p *Playlist) AddVideo(video *PlaylistVideo) {
	p.Videos = append(p.Videos, video)
	p.TotalVideos = len(p.Videos)
	p.UpdatedAt = time.Now()
}

// UpdateStatus updates the playlist status
func (p *Playlist) UpdateStatus(status PlaylistStatus) {
	p.Status = status
	p.UpdatedAt = time.Now()
}

// FindVideo returns the video with the given ID
func (p *Playlist) FindVideo(videoID string) (*PlaylistVideo, bool) {
	for _, video := range p.Videos {
		if video.ID == videoID {
			return video, true
		}
	}
	return nil, false
}

// MarkVideo records the outcome of a detection session on a video
func (p *Playlist) MarkVideo(videoID, sessionID string, status VideoStatus, errMsg string) bool {
	video, ok := p.FindVideo(videoID)
	if !ok {
		return false
	}
	video.Status = status
	video.SessionID = sessionID
	video.Error = errMsg
	video.UpdatedAt = time.Now()
	p.UpdatedAt = video.UpdatedAt
	return true
}

// GetAnalyzedVideos returns all videos a session completed on
func (p *Playlist) GetAnalyzedVideos() []*PlaylistVideo {
	var analyzed []*PlaylistVideo
	for _, video := range p.Videos {
		if video.Status == VideoStatusAnalyzed {
			analyzed = append(analyzed, video)
		}
	}
	return analyzed
}

// IsReady checks if playlist videos can be picked as sources
func (p *Playlist) IsReady() bool {
	return p.Status == PlaylistStatusReady && p.TotalVideos > 0
}

// HasErrors checks if any video has errors
func (p *Playlist) HasErrors() bool {
	for _, video := range p.Videos {
		if video.Status == VideoStatusError {
			return true
		}
	}
	return false
}
