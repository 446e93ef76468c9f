package model

import "image"

// Detection is a single object found in a frame
type Detection struct {
	ClassID    int             `json:"class_id"`
	Label      string          `json:"label"`
	Confidence float32         `json:"confidence"`
	Box        image.Rectangle `json:"box"`
	TrackID    int             `json:"track_id,omitempty"` // 0 when tracking is off
	Mask       *Mask           `json:"-"`
}

// Mask is a binary instance mask covering Rect; Data holds one byte per pixel
// (0 or 255) in row-major order.
type Mask struct {
	Rect image.Rectangle
	Data []byte
}

// At reports whether the mask covers the frame pixel (x, y)
func (m *Mask) At(x, y int) bool {
	if m == nil || !(image.Point{X: x, Y: y}).In(m.Rect) {
		return false
	}
	idx := (y-m.Rect.Min.Y)*m.Rect.Dx() + (x - m.Rect.Min.X)
	return idx < len(m.Data) && m.Data[idx] != 0
}

// FrameResult is the outcome of processing one frame
type FrameResult struct {
	Index      int         `json:"index"`
	Detections []Detection `json:"detections"`
}
