package session

import (
	"context"

	"gocv.io/x/gocv"

	"github.com/ytget/yolo-vision/internal/history"
	"github.com/ytget/yolo-vision/internal/infer"
	"github.com/ytget/yolo-vision/internal/model"
	"github.com/ytget/yolo-vision/internal/youtube"
)

// DetectorLoader returns the detector for a model task
type DetectorLoader interface {
	Load(task model.ModelTask) (infer.Detector, error)
}

// StreamResolver turns a YouTube URL into a playable stream URL
type StreamResolver interface {
	Resolve(ctx context.Context, url string) (*youtube.Stream, error)
	// Invalidate drops a cached stream that turned out to be unplayable
	Invalidate(ctx context.Context, url string)
}

// TempDownloader downloads a YouTube video into a temporary file
type TempDownloader interface {
	Download(ctx context.Context, url string) (*youtube.TempFile, error)
}

// HistoryStore records finished sessions
type HistoryStore interface {
	Save(ctx context.Context, e history.Entry) error
}

// SourceOpener opens the frames of a session
type SourceOpener interface {
	Open(ctx context.Context, req model.SessionRequest) (*Opened, error)
}

// FrameTracker assigns track IDs to the detections of consecutive frames
type FrameTracker interface {
	Update(frame gocv.Mat, dets []model.Detection) ([]model.Detection, error)
	Close() error
}

// TrackerStarter starts one tracker per session
type TrackerStarter interface {
	Start(ctx context.Context, tracker model.TrackerType, fps float64) (FrameTracker, error)
}

// TrackerStarterFunc adapts a function to TrackerStarter
type TrackerStarterFunc func(ctx context.Context, tracker model.TrackerType, fps float64) (FrameTracker, error)

// Start implements TrackerStarter
func (f TrackerStarterFunc) Start(ctx context.Context, tracker model.TrackerType, fps float64) (FrameTracker, error) {
	return f(ctx, tracker, fps)
}
