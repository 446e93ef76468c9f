package infer

import (
	"errors"
	"time"

	"gocv.io/x/gocv"

	"github.com/ytget/yolo-vision/internal/model"
)

// Inference defaults
const (
	InputSize         = 640
	DefaultConfidence = 0.25
	DefaultIoU        = 0.7
	MaskCoefficients  = 32
	MaskThreshold     = 0.5
	PadValue          = 114
)

// Errors
var (
	ErrModelNotLoaded = errors.New("model could not be loaded")
	ErrEmptyFrame     = errors.New("empty frame")
	ErrBadOutput      = errors.New("unexpected model output")
)

// Options tune a single inference call
type Options struct {
	Confidence float32 // minimum class score, 0..1
	IoU        float32 // NMS overlap threshold
	Classes    []int   // keep only these class IDs when non-empty
}

// withDefaults fills zero values
func (o Options) withDefaults() Options {
	if o.Confidence <= 0 || o.Confidence > 1 {
		o.Confidence = DefaultConfidence
	}
	if o.IoU <= 0 || o.IoU > 1 {
		o.IoU = DefaultIoU
	}
	return o
}

// allows reports whether the class passes the filter
func (o Options) allows(classID int) bool {
	if len(o.Classes) == 0 {
		return true
	}
	for _, c := range o.Classes {
		if c == classID {
			return true
		}
	}
	return false
}

// Result is the output of one inference call
type Result struct {
	Detections []model.Detection
	Elapsed    time.Duration
}

// Detector runs a YOLOv8 model on BGR frames
type Detector interface {
	Detect(frame gocv.Mat, opts Options) (*Result, error)
	Task() model.ModelTask
	Labels() []string
	Close() error
}
