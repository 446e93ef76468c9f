package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ytget/yolo-vision/internal/model"
)

// Drawing constants
const (
	BoxThickness   = 2
	LabelScale     = 0.5
	LabelThickness = 1
	LabelPadding   = 3
	HeaderScale    = 0.6
	MaskAlpha      = 0.4
)

var (
	textColor   = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	headerColor = color.RGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff}
)

// Header is the status line printed at the top of every frame
type Header struct {
	Frame int
	FPS   float64
	Task  model.ModelTask
}

// String formats the header line
func (h Header) String() string {
	s := fmt.Sprintf("frame %d  %.1f fps", h.Frame, h.FPS)
	if h.Task != "" {
		s += "  " + string(h.Task)
	}
	return s
}

// Resize scales src into dst at width x width*9/16
func Resize(src gocv.Mat, dst *gocv.Mat, width int) {
	gocv.Resize(src, dst, FrameSize(width), 0, 0, gocv.InterpolationLinear)
}

// FrameSize returns the 16:9 processing size for width
func FrameSize(width int) image.Point {
	return image.Pt(width, width*9/16)
}

// Label returns the caption drawn above a detection
func Label(d model.Detection) string {
	s := fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
	if d.TrackID > 0 {
		s = fmt.Sprintf("#%d %s", d.TrackID, s)
	}
	return s
}

// Annotate draws masks, boxes and labels for dets on img, then the header
func Annotate(img *gocv.Mat, dets []model.Detection, header *Header) error {
	if img.Empty() {
		return fmt.Errorf("annotate: empty frame")
	}
	if err := drawMasks(img, dets); err != nil {
		return err
	}
	for _, d := range dets {
		drawDetection(img, d)
	}
	if header != nil {
		drawHeader(img, header.String())
	}
	return nil
}

// drawDetection draws one box with its caption
func drawDetection(img *gocv.Mat, d model.Detection) {
	c := ColorFor(d.ClassID, d.TrackID)
	gocv.Rectangle(img, d.Box, c, BoxThickness)

	label := Label(d)
	size := gocv.GetTextSize(label, gocv.FontHersheySimplex, LabelScale, LabelThickness)
	bg := labelRect(d.Box, size, img.Rows())
	gocv.Rectangle(img, bg, c, -1)
	gocv.PutText(img, label, image.Pt(bg.Min.X+LabelPadding, bg.Max.Y-LabelPadding),
		gocv.FontHersheySimplex, LabelScale, textColor, LabelThickness)
}

// labelRect places the caption background above the box, or inside it near the top edge
func labelRect(box image.Rectangle, text image.Point, rows int) image.Rectangle {
	h := text.Y + 2*LabelPadding
	w := text.X + 2*LabelPadding
	top := box.Min.Y - h
	if top < 0 {
		top = box.Min.Y
	}
	if top+h > rows {
		top = rows - h
	}
	return image.Rect(box.Min.X, top, box.Min.X+w, top+h)
}

func drawHeader(img *gocv.Mat, text string) {
	size := gocv.GetTextSize(text, gocv.FontHersheySimplex, HeaderScale, LabelThickness)
	bg := image.Rect(0, 0, size.X+4*LabelPadding, size.Y+4*LabelPadding)
	gocv.Rectangle(img, bg, headerColor, -1)
	gocv.PutText(img, text, image.Pt(2*LabelPadding, size.Y+2*LabelPadding),
		gocv.FontHersheySimplex, HeaderScale, textColor, LabelThickness)
}

// drawMasks blends every instance mask into img
func drawMasks(img *gocv.Mat, dets []model.Detection) error {
	hasMask := false
	for _, d := range dets {
		if d.Mask != nil {
			hasMask = true
			break
		}
	}
	if !hasMask {
		return nil
	}

	buf := img.ToBytes()
	w, h := img.Cols(), img.Rows()
	for _, d := range dets {
		blendMask(buf, w, h, d.Mask, ColorFor(d.ClassID, d.TrackID), MaskAlpha)
	}

	blended, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, buf)
	if err != nil {
		return fmt.Errorf("blend masks: %w", err)
	}
	defer blended.Close()
	blended.CopyTo(img)
	return nil
}

// blendMask mixes c into the BGR buffer wherever m is set
func blendMask(buf []byte, w, h int, m *model.Mask, c color.RGBA, alpha float64) {
	if m == nil {
		return
	}
	r := m.Rect.Intersect(image.Rect(0, 0, w, h))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if !m.At(x, y) {
				continue
			}
			i := (y*w + x) * 3
			buf[i] = mix(buf[i], c.B, alpha)
			buf[i+1] = mix(buf[i+1], c.G, alpha)
			buf[i+2] = mix(buf[i+2], c.R, alpha)
		}
	}
}

func mix(dst, src uint8, alpha float64) uint8 {
	return uint8(float64(dst)*(1-alpha) + float64(src)*alpha + 0.5)
}
