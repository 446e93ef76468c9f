package session

import (
	"fmt"
	"sort"

	"github.com/ytget/yolo-vision/internal/model"
	"github.com/ytget/yolo-vision/internal/youtube"
)

// AddPlaylist registers a parsed playlist so its videos can be picked as sources
func (s *Service) AddPlaylist(p *model.Playlist) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("playlist has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlists[p.ID] = p
	return nil
}

// GetPlaylist returns a copy of a registered playlist
func (s *Service) GetPlaylist(id string) (*model.Playlist, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.playlists[id]
	if !ok {
		return nil, false
	}
	return clonePlaylist(p), true
}

// Playlists returns copies of all registered playlists, newest first
func (s *Service) Playlists() []*model.Playlist {
	s.mu.RLock()
	out := make([]*model.Playlist, 0, len(s.playlists))
	for _, p := range s.playlists {
		out = append(out, clonePlaylist(p))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// markPlaylists records a YouTube session outcome on every playlist holding the video
func (s *Service) markPlaylists(sess *model.Session) {
	if sess.Source != model.SourceYouTube {
		return
	}
	videoID := youtube.VideoID(sess.Target)
	if videoID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	status, errMsg := model.VideoStatusAnalyzing, ""
	switch sess.Status {
	case model.StatusCompleted:
		status = model.VideoStatusAnalyzed
	case model.StatusError:
		status, errMsg = model.VideoStatusError, sess.LastError
	case model.StatusStopped:
		status = model.VideoStatusPending
	}
	for _, p := range s.playlists {
		p.MarkVideo(videoID, sess.ID, status, errMsg)
	}
}

func clonePlaylist(p *model.Playlist) *model.Playlist {
	c := *p
	c.Videos = make([]*model.PlaylistVideo, len(p.Videos))
	for i, v := range p.Videos {
		vc := *v
		c.Videos[i] = &vc
	}
	return &c
}
