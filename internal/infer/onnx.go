package infer

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ytget/yolo-vision/internal/model"
)

// Backend selects where the network runs
type Backend string

// Backends
const (
	BackendCPU  Backend = "cpu"
	BackendCUDA Backend = "cuda"
)

// ONNXDetector runs a YOLOv8 ONNX export with gocv's DNN module
type ONNXDetector struct {
	mu          sync.Mutex
	net         gocv.Net
	task        model.ModelTask
	labels      []string
	backend     Backend
	outputNames []string
	inputSize   int
}

// NewONNXDetector loads the model at path for task on the given backend
func NewONNXDetector(path string, task model.ModelTask, labels []string, backend Backend) (*ONNXDetector, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelNotLoaded, err)
	}
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrModelNotLoaded, path)
	}

	switch backend {
	case BackendCUDA:
		net.SetPreferableBackend(gocv.NetBackendCUDA)
		net.SetPreferableTarget(gocv.NetTargetCUDA)
	default:
		backend = BackendCPU
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	}
	if len(labels) == 0 {
		labels = COCOLabels
	}

	return &ONNXDetector{
		net:         net,
		task:        task,
		labels:      labels,
		backend:     backend,
		outputNames: outputNames(&net),
		inputSize:   InputSize,
	}, nil
}

// outputNames lists the unconnected output layers
func outputNames(net *gocv.Net) []string {
	var names []string
	for _, i := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayer(i)
		if name := layer.GetName(); name != "_input" {
			names = append(names, name)
		}
		layer.Close()
	}
	return names
}

// Task implements Detector
func (d *ONNXDetector) Task() model.ModelTask {
	return d.task
}

// Labels implements Detector
func (d *ONNXDetector) Labels() []string {
	return d.labels
}

// Backend returns where the network runs
func (d *ONNXDetector) Backend() Backend {
	return d.backend
}

// Close implements Detector
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// Detect implements Detector
func (d *ONNXDetector) Detect(frame gocv.Mat, opts Options) (*Result, error) {
	if frame.Empty() {
		return nil, ErrEmptyFrame
	}
	opts = opts.withDefaults()
	start := time.Now()

	lb := newLetterbox(frame.Cols(), frame.Rows(), d.inputSize)
	input := gocv.NewMat()
	defer input.Close()
	letterboxInto(frame, &input, lb)

	blob := gocv.BlobFromImage(input, 1.0/255.0, image.Pt(d.inputSize, d.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	outs := d.net.ForwardLayers(d.outputNames)
	d.mu.Unlock()
	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()

	det, proto, err := splitOutputs(outs)
	if err != nil {
		return nil, err
	}

	dims := det.Size()
	channels, n := dims[1], dims[2]
	numMasks := 0
	if d.task == model.TaskSegment && proto != nil {
		numMasks = MaskCoefficients
	}
	data, err := det.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadOutput, err)
	}

	cands := suppress(decodeOutput(data, channels, n, numMasks, opts), opts)
	dets := toDetections(cands, lb, d.labels)

	if numMasks > 0 && len(dets) > 0 {
		pdims := proto.Size()
		protoData, err := proto.DataPtrFloat32()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadOutput, err)
		}
		// toDetections drops empty boxes; walk both lists in step
		j := 0
		for _, c := range cands {
			if j >= len(dets) {
				break
			}
			box := lb.toFrame(c.Box[0], c.Box[1], c.Box[2], c.Box[3])
			if box.Empty() {
				continue
			}
			dets[j].Mask = buildMask(c, box, protoData, pdims[2], pdims[3], lb)
			j++
		}
	}

	return &Result{Detections: dets, Elapsed: time.Since(start)}, nil
}

// splitOutputs picks the detection tensor (3 dims) and the mask prototypes (4 dims)
func splitOutputs(outs []gocv.Mat) (det, proto *gocv.Mat, err error) {
	for i := range outs {
		switch len(outs[i].Size()) {
		case 3:
			det = &outs[i]
		case 4:
			proto = &outs[i]
		}
	}
	if det == nil {
		return nil, nil, fmt.Errorf("%w: no detection tensor among %d outputs", ErrBadOutput, len(outs))
	}
	return det, proto, nil
}

// letterboxInto resizes frame keeping aspect ratio and pads it to a square
func letterboxInto(frame gocv.Mat, dst *gocv.Mat, lb letterbox) {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(frame, &resized, image.Pt(lb.NewW, lb.NewH), 0, 0, gocv.InterpolationLinear)

	bottom := lb.Size - lb.NewH - lb.PadY
	right := lb.Size - lb.NewW - lb.PadX
	pad := color.RGBA{R: PadValue, G: PadValue, B: PadValue, A: 0}
	gocv.CopyMakeBorder(resized, dst, lb.PadY, bottom, lb.PadX, right, gocv.BorderConstant, pad)
}
