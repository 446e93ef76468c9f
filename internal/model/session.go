package model

import (
	"fmt"
	"strings"
	"time"
)

// SourceKind identifies where frames of a session come from
type SourceKind string

const (
	SourceImage   SourceKind = "image"
	SourceVideo   SourceKind = "video"
	SourceStored  SourceKind = "stored"
	SourceWebcam  SourceKind = "webcam"
	SourceRTSP    SourceKind = "rtsp"
	SourceYouTube SourceKind = "youtube"
)

// ModelTask selects the YOLOv8 head used for inference
type ModelTask string

const (
	TaskDetect  ModelTask = "detect"
	TaskSegment ModelTask = "segment"
)

// TrackerType names a tracker preset, spelled like the upstream YAML files
type TrackerType string

const (
	TrackerNone      TrackerType = ""
	TrackerByteTrack TrackerType = "bytetrack.yaml"
	TrackerBoTSORT   TrackerType = "botsort.yaml"
)

// ParseSourceKind validates a source kind coming from the UI
func ParseSourceKind(s string) (SourceKind, error) {
	switch k := SourceKind(strings.ToLower(strings.TrimSpace(s))); k {
	case SourceImage, SourceVideo, SourceStored, SourceWebcam, SourceRTSP, SourceYouTube:
		return k, nil
	}
	return "", fmt.Errorf("unknown source: %q", s)
}

// ParseModelTask validates a model task, defaulting to detection
func ParseModelTask(s string) (ModelTask, error) {
	switch t := ModelTask(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TaskDetect, nil
	case TaskDetect, TaskSegment:
		return t, nil
	}
	return "", fmt.Errorf("unknown model task: %q", s)
}

// ParseTrackerType validates a tracker preset; empty disables tracking
func ParseTrackerType(s string) (TrackerType, error) {
	switch t := TrackerType(strings.ToLower(strings.TrimSpace(s))); t {
	case TrackerNone, TrackerByteTrack, TrackerBoTSORT:
		return t, nil
	case "bytetrack":
		return TrackerByteTrack, nil
	case "botsort":
		return TrackerBoTSORT, nil
	}
	return "", fmt.Errorf("unknown tracker: %q", s)
}

// SessionRequest describes a detection session to start
type SessionRequest struct {
	Source     SourceKind  `json:"source"`
	Target     string      `json:"target"` // path, device index, rtsp or youtube URL
	Task       ModelTask   `json:"task"`
	Confidence float64     `json:"confidence"` // 0.0 to 1.0
	Tracker    TrackerType `json:"tracker,omitempty"`
}

// Tracking reports whether the request asks for object tracking
func (r SessionRequest) Tracking() bool {
	return r.Tracker != TrackerNone
}

// Session represents a single detection session
type Session struct {
	ID         string        `json:"id"`
	Source     SourceKind    `json:"source"`
	Target     string        `json:"target"`
	Task       ModelTask     `json:"task"`
	Confidence float64       `json:"confidence"`
	Tracker    TrackerType   `json:"tracker,omitempty"`
	Status     SessionStatus `json:"status"`
	Frames     int           `json:"frames"`        // frames processed so far
	FPS        float64       `json:"fps"`           // measured processing rate
	Width      int           `json:"width"`         // source frame width
	Height     int           `json:"height"`        // source frame height
	SourceFPS  float64       `json:"source_fps"`    // fps reported by the decoder
	Message    string        `json:"message"`       // last human readable status line
	LastError  string        `json:"last_error"`    // last error message if any
	Category   string        `json:"category"`      // error category if any
	Hints      []string      `json:"hints"`         // suggestions shown with the error
	Title      string        `json:"title"`         // video title when known
	Objects    int           `json:"objects"`       // objects in the last frame
	StartedAt  time.Time     `json:"started_at"`    // when session started
	FinishedAt time.Time     `json:"finished_at"`   // when session finished
}

// Clone returns a copy that can be handed out without holding the service lock
func (s *Session) Clone() *Session {
	c := *s
	if s.Hints != nil {
		c.Hints = append([]string(nil), s.Hints...)
	}
	return &c
}

// GetDisplayTitle returns title, file name, or target in order of preference
func (s *Session) GetDisplayTitle() string {
	if s.Title != "" && !strings.HasPrefix(s.Title, "http") {
		return s.Title
	}

	if s.Source == SourceVideo || s.Source == SourceStored {
		parts := strings.FieldsFunc(s.Target, func(r rune) bool {
			return r == '/' || r == '\\'
		})
		if len(parts) > 0 {
			name := parts[len(parts)-1]
			if idx := strings.LastIndex(name, "."); idx > 0 {
				name = name[:idx]
			}
			return name
		}
	}

	if s.Source == SourceWebcam {
		return "Webcam " + s.Target
	}

	return s.Target
}

// GetElapsedString returns the running time formatted as hh:mm:ss or mm:ss
func (s *Session) GetElapsedString(now time.Time) string {
	if s.StartedAt.IsZero() {
		return "—"
	}
	end := now
	if !s.FinishedAt.IsZero() {
		end = s.FinishedAt
	}
	secs := int(end.Sub(s.StartedAt).Seconds())
	if secs < 0 {
		secs = 0
	}

	hours := secs / 3600
	minutes := (secs % 3600) / 60
	seconds := secs % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
