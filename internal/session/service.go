package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hybridgroup/mjpeg"
	"go.uber.org/zap"

	"github.com/ytget/yolo-vision/internal/config"
	"github.com/ytget/yolo-vision/internal/model"
	"github.com/ytget/yolo-vision/internal/render"
	"github.com/ytget/yolo-vision/internal/youtube"
)

// Service constants
const (
	SessionIDPrefix  = "sess-"
	stopPollInterval = 100 * time.Millisecond
	historyTimeout   = 5 * time.Second
)

// Errors
var (
	ErrNotFound  = errors.New("session not found")
	ErrDuplicate = errors.New("a session is already running for this source")
	ErrNotActive = errors.New("session is not active")
	ErrActive    = errors.New("session is still active")

	ErrInvalidRequest = errors.New("invalid session request")

	ErrTrackingUnavailable = errors.New("object tracking is not available")
)

// Config holds the processing parameters of every session
type Config struct {
	FrameWidth  int
	MaxFPS      float64
	MaxParallel int
	JPEGQuality int
}

// ConfigFromSettings builds a Config from application settings
func ConfigFromSettings(s *config.Settings) Config {
	return Config{
		FrameWidth:  s.GetFrameWidth(),
		MaxFPS:      s.GetMaxFPS(),
		MaxParallel: s.GetMaxSessions(),
		JPEGQuality: render.DefaultJPEGQuality,
	}
}

func (c Config) withDefaults() Config {
	if c.FrameWidth <= 0 {
		c.FrameWidth = config.DefaultFrameWidth
	}
	if c.MaxFPS <= 0 {
		c.MaxFPS = config.DefaultMaxFPS
	}
	if c.MaxParallel <= 0 {
		c.MaxParallel = config.DefaultMaxSessions
	}
	if c.JPEGQuality <= 0 {
		c.JPEGQuality = render.DefaultJPEGQuality
	}
	return c
}

// Service manages detection sessions
type Service struct {
	sessions    map[string]*model.Session
	streams     map[string]*mjpeg.Stream
	queue       []string
	mu          sync.RWMutex
	activeCount int
	onUpdate    func(*model.Session)
	playlists   map[string]*model.Playlist

	cfg       Config
	detectors DetectorLoader
	sources   SourceOpener
	history   HistoryStore
	trackers  TrackerStarter
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewService creates a session service; history may be nil
func NewService(cfg Config, detectors DetectorLoader, sources SourceOpener, store HistoryStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessions:  make(map[string]*model.Session),
		streams:   make(map[string]*mjpeg.Stream),
		playlists: make(map[string]*model.Playlist),
		cfg:       cfg.withDefaults(),
		detectors: detectors,
		sources:   sources,
		history:   store,
		logger:    logger,
	}
}

// SetUpdateCallback sets the callback function for session updates
func (s *Service) SetUpdateCallback(callback func(*model.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = callback
}

// SetTrackers sets the tracker starter; without one tracking sessions fail
func (s *Service) SetTrackers(trackers TrackerStarter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackers = trackers
}

// Start validates req and starts (or queues) a new session
func (s *Service) Start(req model.SessionRequest) (*model.Session, error) {
	req, err := normalizeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	s.mu.Lock()
	for _, sess := range s.sessions {
		if sess.Source == req.Source && sess.Target == req.Target && !sess.Status.IsFinished() {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s %s", ErrDuplicate, req.Source, req.Target)
		}
	}

	sess := &model.Session{
		ID:         generateSessionID(),
		Source:     req.Source,
		Target:     req.Target,
		Task:       req.Task,
		Confidence: req.Confidence,
		Tracker:    req.Tracker,
		Status:     model.StatusPending,
		Message:    "Queued",
	}
	s.sessions[sess.ID] = sess
	s.streams[sess.ID] = mjpeg.NewStream()
	s.queue = append(s.queue, sess.ID)
	snapshot := sess.Clone()
	s.mu.Unlock()

	s.logger.Info("session created",
		zap.String("id", sess.ID),
		zap.String("source", string(req.Source)),
		zap.String("target", req.Target),
		zap.String("task", string(req.Task)),
		zap.String("tracker", string(req.Tracker)))
	s.notifyUpdate(sess)
	s.startNextPending()

	return snapshot, nil
}

// normalizeRequest validates a request and fills defaults
func normalizeRequest(req model.SessionRequest) (model.SessionRequest, error) {
	kind, err := model.ParseSourceKind(string(req.Source))
	if err != nil {
		return req, err
	}
	req.Source = kind
	if req.Source == model.SourceImage {
		return req, ErrImageSource
	}
	if req.Task, err = model.ParseModelTask(string(req.Task)); err != nil {
		return req, err
	}
	if req.Tracker, err = model.ParseTrackerType(string(req.Tracker)); err != nil {
		return req, err
	}
	req.Confidence = config.ClampConfidence(req.Confidence)

	switch req.Source {
	case model.SourceYouTube:
		if err := youtube.ValidateURL(req.Target); err != nil {
			return req, err
		}
		req.Target = youtube.CanonicalURL(req.Target)
	case model.SourceVideo, model.SourceStored, model.SourceRTSP:
		if req.Target == "" {
			return req, fmt.Errorf("%s source needs a target", req.Source)
		}
	}
	return req, nil
}

// Stop requests a session to stop
func (s *Service) Stop(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	switch {
	case sess.Status == model.StatusPending:
		s.removeFromQueue(id)
		sess.Status = model.StatusStopped
		sess.Message = "Stopped before start"
		sess.FinishedAt = time.Now()
	case sess.Status.IsActive() && sess.Status != model.StatusStopping:
		sess.Status = model.StatusStopping
		sess.Message = "Stopping"
	default:
		status := sess.Status
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotActive, status)
	}
	s.mu.Unlock()

	s.notifyUpdate(sess)
	return nil
}

// Get returns a copy of a session by ID
func (s *Service) Get(id string) (*model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return sess.Clone(), true
}

// List returns copies of all sessions, newest first
func (s *Service) List() []*model.Session {
	s.mu.RLock()
	out := make([]*model.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID > out[j].ID
	})
	return out
}

// Remove deletes a finished session and its stream
func (s *Service) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !sess.Status.IsFinished() {
		return fmt.Errorf("%w: %s", ErrActive, sess.Status)
	}
	delete(s.sessions, id)
	delete(s.streams, id)
	return nil
}

// Stream returns the MJPEG handler of a session
func (s *Service) Stream(id string) (http.Handler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stream, ok := s.streams[id]
	if !ok {
		return nil, false
	}
	return stream, true
}

// Shutdown stops every session and waits for them to finish or ctx to expire
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	var ids []string
	for id, sess := range s.sessions {
		if !sess.Status.IsFinished() {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range ids {
		_ = s.Stop(id)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startNextPending starts queued sessions while there is capacity
func (s *Service) startNextPending() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.activeCount < s.cfg.MaxParallel && len(s.queue) > 0 {
		id := s.queue[0]
		s.queue = s.queue[1:]
		sess, ok := s.sessions[id]
		if !ok || sess.Status != model.StatusPending {
			continue
		}
		s.activeCount++
		sess.Status = model.StatusStarting
		sess.Message = "Opening source"
		sess.StartedAt = time.Now()
		s.wg.Add(1)
		go s.run(sess)
	}
}

func (s *Service) removeFromQueue(id string) {
	for i, qid := range s.queue {
		if qid == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// notifyUpdate hands a copy of the session to the update callback
func (s *Service) notifyUpdate(sess *model.Session) {
	s.mu.RLock()
	cb := s.onUpdate
	snapshot := sess.Clone()
	s.mu.RUnlock()

	if cb != nil {
		cb(snapshot)
	}
}

// generateSessionID generates a unique, time ordered session ID
func generateSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf(SessionIDPrefix+"%d", time.Now().UnixNano())
	}
	return SessionIDPrefix + id.String()
}
