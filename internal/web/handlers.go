package web

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ytget/yolo-vision/internal/config"
	"github.com/ytget/yolo-vision/internal/model"
	"github.com/ytget/yolo-vision/internal/platform"
	"github.com/ytget/yolo-vision/internal/session"
	"github.com/ytget/yolo-vision/internal/video"
	"github.com/ytget/yolo-vision/internal/youtube"
)

// Request defaults
const (
	DefaultHistoryLimit = 50
	confidenceField     = "confidence"
	taskField           = "task"
	fileField           = "file"
	urlParam            = "url"
)

// ImageResponse is returned by POST /api/image
type ImageResponse struct {
	*session.ImageResult
	Image string `json:"image"` // base64 JPEG
}

// VideoList is returned by GET /api/videos
type VideoList struct {
	Stored   []platform.VideoFile `json:"stored"`
	Uploaded []platform.VideoFile `json:"uploaded"`
	Previews []*model.PreviewTask `json:"previews"`
}

// UploadResponse is returned by POST /api/videos
type UploadResponse struct {
	Name    string             `json:"name"`
	Size    int64              `json:"size"`
	Preview *model.PreviewTask `json:"preview,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": len(s.sessions.List()),
		"clients":  s.hub.Clients(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleDetectImage(c *gin.Context) {
	fh, err := c.FormFile(fileField)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: missing image file", errBadRequest))
		return
	}
	if fh.Size > MaxImageBytes {
		s.fail(c, fmt.Errorf("%w: image larger than %d MB", errBadRequest, MaxImageBytes>>20))
		return
	}
	if !platform.IsImageFile(fh.Filename) {
		s.fail(c, fmt.Errorf("%w: unsupported image type %q", errBadRequest, filepath.Ext(fh.Filename)))
		return
	}

	task, err := model.ParseModelTask(c.PostForm(taskField))
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	conf, err := parseConfidence(c.PostForm(confidenceField), s.opts.DefaultConfidence)
	if err != nil {
		s.fail(c, err)
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.fail(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes))
	if err != nil {
		s.fail(c, fmt.Errorf("read upload: %w", err))
		return
	}

	res, err := s.sessions.DetectImage(data, task, conf)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ImageResponse{
		ImageResult: res,
		Image:       base64.StdEncoding.EncodeToString(res.JPEG),
	})
}

func (s *Server) handleListVideos(c *gin.Context) {
	stored, err := video.ListStored(s.opts.VideosDir)
	if err != nil {
		s.fail(c, err)
		return
	}
	uploaded, err := video.ListStored(s.opts.UploadsDir)
	if err != nil {
		s.fail(c, err)
		return
	}
	list := VideoList{
		Stored:   append([]platform.VideoFile{}, stored...),
		Uploaded: append([]platform.VideoFile{}, uploaded...),
		Previews: []*model.PreviewTask{},
	}
	if s.previews != nil {
		list.Previews = s.previews.List()
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleUploadVideo(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)
	fh, err := c.FormFile(fileField)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: missing video file", errBadRequest))
		return
	}
	name := platform.SanitizeFileName(fh.Filename)
	if !platform.IsVideoFile(name) {
		s.fail(c, fmt.Errorf("%w: unsupported video type %q", errBadRequest, filepath.Ext(name)))
		return
	}
	if err := platform.CreateDirectoryIfNotExists(s.opts.UploadsDir); err != nil {
		s.fail(c, err)
		return
	}

	dst := platform.UniquePath(s.opts.UploadsDir, name)
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		s.fail(c, fmt.Errorf("save upload: %w", err))
		return
	}
	s.logger.Info("video uploaded", zap.String("path", dst), zap.Int64("size", fh.Size))

	resp := UploadResponse{Name: filepath.Base(dst), Size: fh.Size}
	if s.previews != nil {
		task, err := s.previews.Start(dst)
		if err != nil {
			s.logger.Warn("preview not started", zap.String("path", dst), zap.Error(err))
		}
		resp.Preview = task
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) handlePreview(c *gin.Context) {
	if s.previews == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorBody{Error: "previews are disabled"})
		return
	}
	path, err := s.previews.Path(c.Param("name"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Type", "video/mp4")
	c.File(path)
}

func (s *Server) handleListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, s.sessions.List())
}

func (s *Server) handleStartSession(c *gin.Context) {
	var req model.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if req.Confidence == 0 {
		req.Confidence = s.opts.DefaultConfidence
	}
	sess, err := s.sessions.Start(req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		s.fail(c, fmt.Errorf("%w: %s", session.ErrNotFound, c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, sess)
}

// handleDeleteSession stops an active session or removes a finished one
func (s *Server) handleDeleteSession(c *gin.Context) {
	id := c.Param("id")
	sess, ok := s.sessions.Get(id)
	if !ok {
		s.fail(c, fmt.Errorf("%w: %s", session.ErrNotFound, id))
		return
	}
	if !sess.Status.IsFinished() {
		if err := s.sessions.Stop(id); err != nil {
			s.fail(c, err)
			return
		}
		updated, _ := s.sessions.Get(id)
		c.JSON(http.StatusAccepted, updated)
		return
	}
	if err := s.sessions.Remove(id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleStream(c *gin.Context) {
	h, ok := s.sessions.Stream(c.Param("id"))
	if !ok {
		s.fail(c, fmt.Errorf("%w: %s", session.ErrNotFound, c.Param("id")))
		return
	}
	h.ServeHTTP(c.Writer, c.Request)
}

func (s *Server) handleResolve(c *gin.Context) {
	if s.resolver == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, ErrorBody{Error: "youtube resolver is disabled"})
		return
	}
	raw := strings.TrimSpace(c.Query(urlParam))
	stream, err := s.resolver.Resolve(c.Request.Context(), raw)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stream)
}

func (s *Server) handlePlaylist(c *gin.Context) {
	if s.playlists == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, ErrorBody{Error: "playlist parsing is disabled"})
		return
	}
	raw := strings.TrimSpace(c.Query(urlParam))
	if !youtube.IsPlaylistURL(raw) {
		s.fail(c, fmt.Errorf("%w: %s", youtube.ErrInvalidPlaylistURL, raw))
		return
	}
	p, err := s.playlists.ParsePlaylist(c.Request.Context(), raw)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.sessions.AddPlaylist(p); err != nil {
		s.fail(c, err)
		return
	}
	s.hub.Publish(Event{Type: EventPlaylist, Playlist: p})
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleListPlaylists(c *gin.Context) {
	c.JSON(http.StatusOK, s.sessions.Playlists())
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	limit := DefaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.fail(c, fmt.Errorf("%w: invalid limit %q", errBadRequest, v))
			return
		}
		limit = n
	}
	entries, err := s.history.List(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// parseConfidence accepts 0..1 or a 25..100 slider value
func parseConfidence(v string, def float64) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return config.ClampConfidence(def), nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 100 {
		return 0, fmt.Errorf("%w: invalid confidence %q", errBadRequest, v)
	}
	return config.ClampConfidence(f), nil
}
