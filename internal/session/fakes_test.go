package session

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/ytget/yolo-vision/internal/history"
	"github.com/ytget/yolo-vision/internal/infer"
	"github.com/ytget/yolo-vision/internal/model"
	"github.com/ytget/yolo-vision/internal/video"
)

type fakeDetector struct {
	task model.ModelTask
}

func (d *fakeDetector) Detect(gocv.Mat, infer.Options) (*infer.Result, error) {
	return &infer.Result{Detections: []model.Detection{{
		ClassID:    0,
		Label:      "person",
		Confidence: 0.9,
		Box:        image.Rect(100, 100, 200, 300),
	}}}, nil
}
func (d *fakeDetector) Task() model.ModelTask { return d.task }
func (d *fakeDetector) Labels() []string      { return infer.COCOLabels }
func (d *fakeDetector) Close() error          { return nil }

type fakeLoader struct {
	err error
}

func (l *fakeLoader) Load(task model.ModelTask) (infer.Detector, error) {
	if l.err != nil {
		return nil, l.err
	}
	return &fakeDetector{task: task}, nil
}

// fakeSource yields blank frames; frames < 0 means endless. A set err is
// returned by every read.
type fakeSource struct {
	frames int
	read   int
	err    error
	closed atomic.Bool
}

func (s *fakeSource) Read(dst *gocv.Mat) error {
	if s.closed.Load() {
		return video.ErrClosed
	}
	if s.err != nil {
		return s.err
	}
	if s.frames >= 0 && s.read >= s.frames {
		return io.EOF
	}
	s.read++
	m := gocv.NewMatWithSize(180, 320, gocv.MatTypeCV8UC3)
	defer m.Close()
	m.CopyTo(dst)
	return nil
}

func (s *fakeSource) Info() video.Info {
	return video.Info{Kind: video.KindFile, Width: 320, Height: 180, FPS: 25}
}

func (s *fakeSource) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeOpener struct {
	mu      sync.Mutex
	frames  int
	err     error
	opened  []*fakeSource
	targets []string
}

func (o *fakeOpener) Open(ctx context.Context, req model.SessionRequest) (*Opened, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.targets = append(o.targets, req.Target)
	if o.err != nil {
		return nil, o.err
	}
	src := &fakeSource{frames: o.frames}
	o.opened = append(o.opened, src)
	return &Opened{Source: src, Title: "fake"}, nil
}

func (o *fakeOpener) sources() []*fakeSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*fakeSource(nil), o.opened...)
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []history.Entry
	err     error
}

func (h *fakeHistory) Save(_ context.Context, e history.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.entries = append(h.entries, e)
	return nil
}

func (h *fakeHistory) saved() []history.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]history.Entry(nil), h.entries...)
}

var errBoom = errors.New("boom")

func contextWithTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}

// fakeTracker gives every detection the same track ID
type fakeTracker struct {
	updates   atomic.Int32
	updateErr error
	closed    atomic.Bool
}

func (t *fakeTracker) Update(_ gocv.Mat, dets []model.Detection) ([]model.Detection, error) {
	t.updates.Add(1)
	if t.updateErr != nil {
		return nil, t.updateErr
	}
	out := make([]model.Detection, len(dets))
	for i, d := range dets {
		d.TrackID = 7
		out[i] = d
	}
	return out, nil
}

func (t *fakeTracker) Close() error {
	t.closed.Store(true)
	return nil
}

type fakeTrackers struct {
	mu        sync.Mutex
	err       error
	tracker   *fakeTracker
	started   []model.TrackerType
	frameRate float64
}

func (f *fakeTrackers) Start(_ context.Context, tracker model.TrackerType, fps float64) (FrameTracker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, tracker)
	f.frameRate = fps
	if f.err != nil {
		return nil, f.err
	}
	return f.tracker, nil
}
