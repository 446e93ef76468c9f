package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Pipe defaults
const (
	DefaultFirstFrameTimeout = 20 * time.Second
	RawPixelFormat           = "bgr24"
	RawFormat                = "rawvideo"
	PipeOutput               = "pipe:"
	BytesPerPixel            = 3
	NetworkTimeoutMicros     = 15000000
	stderrTailLimit          = 4096
)

// PipeOptions configures OpenPipe
type PipeOptions struct {
	FFmpegPath        string
	FirstFrameTimeout time.Duration
	FPS               float64
	Logger            *zap.Logger
}

// Pipe decodes a stream with an ffmpeg subprocess that writes fixed-size raw
// BGR frames to a pipe
type Pipe struct {
	size   image.Point
	buf    []byte
	reader *io.PipeReader
	writer *io.PipeWriter
	cancel context.CancelFunc
	done   chan struct{}
	info   Info
	logger *zap.Logger

	firstFrameTimeout time.Duration
	primed            bool

	mu     sync.Mutex
	runErr error
	stderr *tailBuffer

	closeOnce sync.Once
}

// OpenPipe starts ffmpeg on url and scales every frame to size
func OpenPipe(ctx context.Context, url string, size image.Point, opts PipeOptions) (*Pipe, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", size.X, size.Y)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.FirstFrameTimeout <= 0 {
		opts.FirstFrameTimeout = DefaultFirstFrameTimeout
	}

	ctx, cancel := context.WithCancel(ctx)
	p := newPipe(size, opts, cancel)
	pw := p.writer

	stream := ffmpeg.Input(url, inputArgs(url)).
		Output(PipeOutput, ffmpeg.KwArgs{
			"format":   RawFormat,
			"pix_fmt":  RawPixelFormat,
			"s":        fmt.Sprintf("%dx%d", size.X, size.Y),
			"loglevel": "error",
		})
	stream.Context = ctx
	if opts.FFmpegPath != "" {
		stream = stream.SetFfmpegPath(opts.FFmpegPath)
	}
	stream = stream.WithOutput(pw).WithErrorOutput(p.stderr)

	go func() {
		defer close(p.done)
		err := stream.Run()
		if err != nil && ctx.Err() == nil {
			err = fmt.Errorf("ffmpeg: %w: %s", err, p.stderr.String())
			p.mu.Lock()
			p.runErr = err
			p.mu.Unlock()
			p.logger.Warn("ffmpeg pipe exited", zap.Error(err))
		}
		_ = pw.CloseWithError(err)
	}()

	return p, nil
}

func newPipe(size image.Point, opts PipeOptions, cancel context.CancelFunc) *Pipe {
	pr, pw := io.Pipe()
	return &Pipe{
		size:              size,
		buf:               make([]byte, size.X*size.Y*BytesPerPixel),
		reader:            pr,
		writer:            pw,
		cancel:            cancel,
		done:              make(chan struct{}),
		logger:            opts.Logger,
		firstFrameTimeout: opts.FirstFrameTimeout,
		stderr:            &tailBuffer{limit: stderrTailLimit},
		info: Info{
			Kind:   KindPipe,
			Width:  size.X,
			Height: size.Y,
			FPS:    opts.FPS,
		},
	}
}

// inputArgs enables reconnects and I/O timeouts for network inputs
func inputArgs(url string) ffmpeg.KwArgs {
	lower := strings.ToLower(url)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return ffmpeg.KwArgs{}
	}
	return ffmpeg.KwArgs{
		"reconnect":           1,
		"reconnect_streamed":  1,
		"reconnect_delay_max": 5,
		"rw_timeout":          NetworkTimeoutMicros,
	}
}

// Read implements Source. The first read fails with ErrFirstFrameTimed when
// ffmpeg produces nothing within the configured timeout.
func (p *Pipe) Read(dst *gocv.Mat) error {
	if !p.primed {
		// the error has to reach the read side, so it is set on the writer
		timer := time.AfterFunc(p.firstFrameTimeout, func() {
			_ = p.writer.CloseWithError(ErrFirstFrameTimed)
			p.cancel()
		})
		defer timer.Stop()
	}

	if _, err := io.ReadFull(p.reader, p.buf); err != nil {
		if errors.Is(err, ErrFirstFrameTimed) {
			return ErrFirstFrameTimed
		}
		if errors.Is(err, io.ErrClosedPipe) {
			return ErrClosed
		}
		if runErr := p.err(); runErr != nil {
			return runErr
		}
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return io.EOF
		}
		return err
	}
	p.primed = true

	frame, err := gocv.NewMatFromBytes(p.size.Y, p.size.X, gocv.MatTypeCV8UC3, p.buf)
	if err != nil {
		return fmt.Errorf("failed to wrap raw frame: %w", err)
	}
	defer frame.Close()
	frame.CopyTo(dst)
	return nil
}

// Info implements Source
func (p *Pipe) Info() Info {
	return p.info
}

// Close stops ffmpeg and waits for it to exit
func (p *Pipe) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		_ = p.reader.Close()
		<-p.done
	})
	return nil
}

func (p *Pipe) err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runErr
}

// tailBuffer keeps the last limit bytes written to it
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(b)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(b), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(t.buf.String())
}
