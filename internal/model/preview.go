package model

import "time"

// PreviewStatus represents the state of a browser preview transcode
type PreviewStatus string

const (
	PreviewPending     PreviewStatus = "Pending"
	PreviewTranscoding PreviewStatus = "Transcoding"
	PreviewStopping    PreviewStatus = "Stopping"
	PreviewStopped     PreviewStatus = "Stopped"
	PreviewReady       PreviewStatus = "Ready"
	PreviewError       PreviewStatus = "Error"
)

// IsActive returns true while ffmpeg is (about to be) running
func (s PreviewStatus) IsActive() bool {
	return s == PreviewPending || s == PreviewTranscoding || s == PreviewStopping
}

// IsFinished returns true once the transcode ended for any reason
func (s PreviewStatus) IsFinished() bool {
	return s == PreviewReady || s == PreviewStopped || s == PreviewError
}

// PreviewTask tracks the transcode of an uploaded video into a browser friendly MP4
type PreviewTask struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"` // uploaded file name
	InputPath  string        `json:"-"`
	OutputPath string        `json:"-"`
	Status     PreviewStatus `json:"status"`
	Progress   float64       `json:"progress"` // 0.0 to 1.0
	Percent    int           `json:"percent"`  // 0 to 100
	Duration   float64       `json:"duration"` // seconds, from ffprobe
	LastError  string        `json:"last_error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}
