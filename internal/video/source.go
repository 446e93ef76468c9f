package video

import (
	"errors"

	"gocv.io/x/gocv"
)

// Source kinds reported by Info
const (
	KindFile   = "file"
	KindDevice = "device"
	KindURL    = "url"
	KindPipe   = "pipe"
)

// DefaultFPS is assumed when a source does not report its frame rate
const DefaultFPS = 30.0

// Errors
var (
	ErrNotOpened       = errors.New("video source could not be opened")
	ErrFirstFrameTimed = errors.New("no frame received before timeout")
	ErrClosed          = errors.New("video source closed")
)

// Info describes an opened source
type Info struct {
	Kind   string  `json:"kind"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	FPS    float64 `json:"fps"`
}

// FrameRate returns FPS or DefaultFPS when unknown
func (i Info) FrameRate() float64 {
	if i.FPS <= 0 || i.FPS > 240 {
		return DefaultFPS
	}
	return i.FPS
}

// Source yields BGR frames until io.EOF
type Source interface {
	// Read decodes the next frame into dst; io.EOF marks the end of the stream
	Read(dst *gocv.Mat) error
	Info() Info
	Close() error
}
