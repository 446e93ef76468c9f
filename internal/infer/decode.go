package infer

import (
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"

	"github.com/ytget/yolo-vision/internal/model"
)

// classOffset separates classes before running NMS on a single box list
const classOffset = 8192

// letterbox is the scale and padding that fit a frame into the square input
type letterbox struct {
	Size       int
	Scale      float64
	PadX, PadY int
	NewW, NewH int
	SrcW, SrcH int
}

func newLetterbox(w, h, size int) letterbox {
	scale := math.Min(float64(size)/float64(w), float64(size)/float64(h))
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	return letterbox{
		Size:  size,
		Scale: scale,
		PadX:  (size - nw) / 2,
		PadY:  (size - nh) / 2,
		NewW:  nw,
		NewH:  nh,
		SrcW:  w,
		SrcH:  h,
	}
}

// toFrame maps a box in input coordinates back onto the source frame
func (l letterbox) toFrame(x0, y0, x1, y1 float32) image.Rectangle {
	fx0 := (float64(x0) - float64(l.PadX)) / l.Scale
	fy0 := (float64(y0) - float64(l.PadY)) / l.Scale
	fx1 := (float64(x1) - float64(l.PadX)) / l.Scale
	fy1 := (float64(y1) - float64(l.PadY)) / l.Scale
	r := image.Rect(
		int(math.Round(fx0)), int(math.Round(fy0)),
		int(math.Round(fx1)), int(math.Round(fy1)),
	)
	return r.Intersect(image.Rect(0, 0, l.SrcW, l.SrcH))
}

// candidate is one row of the output tensor that passed the score filter
type candidate struct {
	ClassID int
	Score   float32
	Box     [4]float32 // x0, y0, x1, y1 in input coordinates
	Coeffs  []float32
}

// decodeOutput reads a [1, 4+classes+masks, n] YOLOv8 tensor stored
// channel-major. Each column holds cx, cy, w, h, the class scores and, for
// segmentation models, the mask coefficients.
func decodeOutput(data []float32, channels, n, numMasks int, opts Options) []candidate {
	numClasses := channels - 4 - numMasks
	if numClasses <= 0 || len(data) < channels*n {
		return nil
	}

	var out []candidate
	for i := 0; i < n; i++ {
		best, bestScore := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			if s := data[(4+c)*n+i]; s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 || bestScore < opts.Confidence || !opts.allows(best) {
			continue
		}

		cx, cy := data[i], data[n+i]
		w, h := data[2*n+i], data[3*n+i]
		cand := candidate{
			ClassID: best,
			Score:   bestScore,
			Box:     [4]float32{cx - w/2, cy - h/2, cx + w/2, cy + h/2},
		}
		if numMasks > 0 {
			cand.Coeffs = make([]float32, numMasks)
			for m := 0; m < numMasks; m++ {
				cand.Coeffs[m] = data[(4+numClasses+m)*n+i]
			}
		}
		out = append(out, cand)
	}
	return out
}

// suppress runs class-aware NMS and returns survivors by descending score
func suppress(cands []candidate, opts Options) []candidate {
	if len(cands) == 0 {
		return nil
	}
	boxes := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		off := c.ClassID * classOffset
		boxes[i] = image.Rect(
			int(c.Box[0])+off, int(c.Box[1])+off,
			int(c.Box[2])+off, int(c.Box[3])+off,
		)
		scores[i] = c.Score
	}

	indices := gocv.NMSBoxes(boxes, scores, opts.Confidence, opts.IoU)
	kept := make([]candidate, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(cands) {
			kept = append(kept, cands[idx])
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	return kept
}

// toDetections maps candidates onto the frame, dropping empty boxes
func toDetections(cands []candidate, lb letterbox, labels []string) []model.Detection {
	dets := make([]model.Detection, 0, len(cands))
	for _, c := range cands {
		box := lb.toFrame(c.Box[0], c.Box[1], c.Box[2], c.Box[3])
		if box.Empty() {
			continue
		}
		dets = append(dets, model.Detection{
			ClassID:    c.ClassID,
			Label:      labelFor(labels, c.ClassID),
			Confidence: c.Score,
			Box:        box,
		})
	}
	return dets
}

// buildMask combines the prototype tensor [k, ph, pw] with the candidate's
// coefficients, crops to box and samples the result onto frame pixels
func buildMask(c candidate, box image.Rectangle, proto []float32, ph, pw int, lb letterbox) *model.Mask {
	k := len(c.Coeffs)
	if k == 0 || box.Empty() || len(proto) < k*ph*pw {
		return nil
	}

	sx := float64(pw) / float64(lb.Size)
	sy := float64(ph) / float64(lb.Size)
	cache := make(map[int]bool)
	inside := func(px, py int) bool {
		idx := py*pw + px
		if v, ok := cache[idx]; ok {
			return v
		}
		var sum float32
		for m := 0; m < k; m++ {
			sum += c.Coeffs[m] * proto[m*ph*pw+idx]
		}
		v := sigmoid(sum) > MaskThreshold
		cache[idx] = v
		return v
	}

	mask := &model.Mask{Rect: box, Data: make([]byte, box.Dx()*box.Dy())}
	for y := box.Min.Y; y < box.Max.Y; y++ {
		ly := (float64(y)+0.5)*lb.Scale + float64(lb.PadY)
		py := clampInt(int(ly*sy), 0, ph-1)
		for x := box.Min.X; x < box.Max.X; x++ {
			lx := (float64(x)+0.5)*lb.Scale + float64(lb.PadX)
			px := clampInt(int(lx*sx), 0, pw-1)
			if inside(px, py) {
				mask.Data[(y-box.Min.Y)*box.Dx()+(x-box.Min.X)] = 255
			}
		}
	}
	return mask
}

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
