package video

import (
	"fmt"
	"io"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// Capture wraps an OpenCV VideoCapture
type Capture struct {
	vc   *gocv.VideoCapture
	info Info

	closeOnce sync.Once
	closeErr  error
}

// OpenFile opens a video file on disk
func OpenFile(path string) (*Capture, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("video file: %w", err)
	}
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotOpened, path, err)
	}
	return newCapture(vc, KindFile, path)
}

// OpenDevice opens a local camera by index
func OpenDevice(index int) (*Capture, error) {
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %v", ErrNotOpened, index, err)
	}
	return newCapture(vc, KindDevice, fmt.Sprintf("device %d", index))
}

// OpenURL opens a network stream the OpenCV backend can read directly
func OpenURL(url string) (*Capture, error) {
	vc, err := gocv.VideoCaptureFile(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotOpened, url, err)
	}
	return newCapture(vc, KindURL, url)
}

func newCapture(vc *gocv.VideoCapture, kind, name string) (*Capture, error) {
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotOpened, name)
	}
	return &Capture{
		vc: vc,
		info: Info{
			Kind:   kind,
			Width:  int(vc.Get(gocv.VideoCaptureFrameWidth)),
			Height: int(vc.Get(gocv.VideoCaptureFrameHeight)),
			FPS:    vc.Get(gocv.VideoCaptureFPS),
		},
	}, nil
}

// Read implements Source
func (c *Capture) Read(dst *gocv.Mat) error {
	if ok := c.vc.Read(dst); !ok || dst.Empty() {
		return io.EOF
	}
	return nil
}

// Info implements Source
func (c *Capture) Info() Info {
	return c.info
}

// Close implements Source
func (c *Capture) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.vc.Close()
	})
	return c.closeErr
}
