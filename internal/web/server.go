package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ytget/yolo-vision/internal/history"
	"github.com/ytget/yolo-vision/internal/model"
	"github.com/ytget/yolo-vision/internal/session"
	"github.com/ytget/yolo-vision/internal/youtube"
)

// Server constants
const (
	MaxUploadBytes  = 512 << 20
	MaxImageBytes   = 20 << 20
	shutdownTimeout = 10 * time.Second
	readTimeout     = 30 * time.Second
)

//go:embed templates/*.html
var templateFS embed.FS

// SessionManager runs detection sessions
type SessionManager interface {
	Start(req model.SessionRequest) (*model.Session, error)
	Stop(id string) error
	Get(id string) (*model.Session, bool)
	List() []*model.Session
	Remove(id string) error
	Stream(id string) (http.Handler, bool)
	DetectImage(data []byte, task model.ModelTask, confidence float64) (*session.ImageResult, error)
	AddPlaylist(p *model.Playlist) error
	Playlists() []*model.Playlist
}

// PreviewManager transcodes uploaded videos for the browser
type PreviewManager interface {
	Start(inputPath string) (*model.PreviewTask, error)
	Path(name string) (string, error)
	List() []*model.PreviewTask
}

// StreamResolver resolves YouTube URLs
type StreamResolver interface {
	Resolve(ctx context.Context, url string) (*youtube.Stream, error)
}

// PlaylistParser lists the videos of a YouTube playlist
type PlaylistParser interface {
	ParsePlaylist(ctx context.Context, url string) (*model.Playlist, error)
}

// HistoryLister reads finished sessions
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]history.Entry, error)
}

// Options configures the page and upload locations
type Options struct {
	VideosDir         string
	UploadsDir        string
	Language          string
	DefaultConfidence float64
}

// Server serves the UI and the JSON API
type Server struct {
	sessions  SessionManager
	previews  PreviewManager
	resolver  StreamResolver
	playlists PlaylistParser
	history   HistoryLister
	hub       *Hub
	i18n      *Localization
	opts      Options
	logger    *zap.Logger
	router    *gin.Engine
}

// Deps lists the services behind the API; Previews, Resolver, Playlists and History may be nil
type Deps struct {
	Sessions  SessionManager
	Previews  PreviewManager
	Resolver  StreamResolver
	Playlists PlaylistParser
	History   HistoryLister
	Hub       *Hub
	Logger    *zap.Logger
}

// NewServer builds the router
func NewServer(deps Deps, opts Options) (*Server, error) {
	if deps.Sessions == nil {
		return nil, errors.New("web: session manager is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Hub == nil {
		deps.Hub = NewHub(deps.Logger)
	}

	s := &Server{
		sessions:  deps.Sessions,
		previews:  deps.Previews,
		resolver:  deps.Resolver,
		playlists: deps.Playlists,
		history:   deps.History,
		hub:       deps.Hub,
		i18n:      NewLocalization(),
		opts:      opts,
		logger:    deps.Logger,
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("web: parse templates: %w", err)
	}
	s.router = s.routes(tmpl)
	return s, nil
}

// Hub returns the websocket hub used for push updates
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(tmpl *template.Template) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger), cors.Default())
	r.MaxMultipartMemory = 32 << 20
	r.SetHTMLTemplate(tmpl)

	r.GET("/", s.handleIndex)
	r.GET("/healthz", s.handleHealth)

	api := r.Group("/api")
	api.POST("/image", s.handleDetectImage)
	api.GET("/videos", s.handleListVideos)
	api.POST("/videos", s.handleUploadVideo)
	api.GET("/videos/:name", s.handlePreview)
	api.GET("/sessions", s.handleListSessions)
	api.POST("/sessions", s.handleStartSession)
	api.GET("/sessions/:id", s.handleGetSession)
	api.DELETE("/sessions/:id", s.handleDeleteSession)
	api.GET("/sessions/:id/stream", s.handleStream)
	api.GET("/events", gin.WrapH(s.hub))
	api.GET("/youtube/resolve", s.handleResolve)
	api.GET("/youtube/playlist", s.handlePlaylist)
	api.GET("/playlists", s.handleListPlaylists)
	api.GET("/history", s.handleHistory)
	return r
}

// Run serves on addr until ctx is cancelled
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// requestLogger logs every request with zap
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("request failed", fields...)
			return
		}
		logger.Debug("request", fields...)
	}
}
