package session

import (
	"fmt"

	"github.com/ytget/yolo-vision/internal/config"
	"github.com/ytget/yolo-vision/internal/infer"
	"github.com/ytget/yolo-vision/internal/model"
	"github.com/ytget/yolo-vision/internal/render"
)

// ImageResult is the outcome of DetectImage
type ImageResult struct {
	Task       model.ModelTask   `json:"task"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Detections []model.Detection `json:"detections"`
	ElapsedMS  int64             `json:"elapsed_ms"`
	JPEG       []byte            `json:"-"`
}

// DetectImage runs the detector on an uploaded image and returns the annotated JPEG
func (s *Service) DetectImage(data []byte, task model.ModelTask, confidence float64) (*ImageResult, error) {
	task, err := model.ParseModelTask(string(task))
	if err != nil {
		return nil, err
	}

	img, err := render.DecodeImage(data)
	defer img.Close()
	if err != nil {
		return nil, err
	}

	detector, err := s.detectors.Load(task)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	res, err := detector.Detect(img, infer.Options{Confidence: float32(config.ClampConfidence(confidence))})
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	if err := render.Annotate(&img, res.Detections, nil); err != nil {
		return nil, err
	}
	out, err := render.EncodeJPEG(img, s.cfg.JPEGQuality)
	if err != nil {
		return nil, err
	}

	dets := res.Detections
	if dets == nil {
		dets = []model.Detection{}
	}
	return &ImageResult{
		Task:       task,
		Width:      img.Cols(),
		Height:     img.Rows(),
		Detections: dets,
		ElapsedMS:  res.Elapsed.Milliseconds(),
		JPEG:       out,
	}, nil
}
