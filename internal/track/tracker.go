package track

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ytget/yolo-vision/internal/model"
	"github.com/ytget/yolo-vision/internal/render"
)

//go:embed worker.py
var workerScript string

// Worker defaults
const (
	DefaultPython        = "python3"
	DefaultStartTimeout  = 60 * time.Second
	DefaultUpdateTimeout = 5 * time.Second
	StopTimeout          = 2 * time.Second
	FrameJPEGQuality     = 80
	maxReplyBytes        = 4 << 20
)

// Columns of a track row as returned by the ultralytics trackers
const (
	colTrackID  = 4
	colIndex    = 7
	trackRowLen = 8
)

var (
	// ErrWorkerExited is returned once the worker process has gone away
	ErrWorkerExited = errors.New("tracker worker exited")
	// ErrWorkerTimeout is returned when the worker does not answer in time
	ErrWorkerTimeout = errors.New("tracker worker timed out")
)

// Options configures the worker process
type Options struct {
	Python        string
	StartTimeout  time.Duration
	UpdateTimeout time.Duration
	Logger        *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Python == "" {
		o.Python = DefaultPython
	}
	if o.StartTimeout <= 0 {
		o.StartTimeout = DefaultStartTimeout
	}
	if o.UpdateTimeout <= 0 {
		o.UpdateTimeout = DefaultUpdateTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// workerConfig is passed to the worker as its only argument
type workerConfig struct {
	Config    string         `json:"config"`
	Overrides map[string]any `json:"overrides"`
	FPS       float64        `json:"fps"`
}

// request carries one frame; detections are x1, y1, x2, y2, score, class
type request struct {
	Seq        int          `json:"seq"`
	Width      int          `json:"width"`
	Height     int          `json:"height"`
	Detections [][6]float32 `json:"detections"`
	Frame      []byte       `json:"frame,omitempty"`
}

// reply is either the ready message or the answer to one request
type reply struct {
	Ready  bool        `json:"ready"`
	Seq    int         `json:"seq"`
	Tracks [][]float64 `json:"tracks"`
	Error  string      `json:"error"`
}

// Launcher starts one tracker worker per session
type Launcher struct {
	opts Options
}

// NewLauncher creates a launcher
func NewLauncher(opts Options) *Launcher {
	return &Launcher{opts: opts.withDefaults()}
}

// Start launches a worker for the named tracker
func (l *Launcher) Start(ctx context.Context, t model.TrackerType, fps float64) (*Tracker, error) {
	preset, err := PresetFor(t)
	if err != nil {
		return nil, err
	}
	return Start(ctx, preset, fps, l.opts)
}

// Tracker feeds frames to one worker process. It is not safe for concurrent
// use; each session owns its tracker.
type Tracker struct {
	preset  Preset
	stdin   io.WriteCloser
	enc     *json.Encoder
	replies chan reply
	done    chan struct{} // reply reader stopped
	closed  chan struct{}
	readErr error

	cmd    *exec.Cmd
	exited chan struct{}

	logger        *zap.Logger
	updateTimeout time.Duration
	seq           int
	failed        error
	closeOnce     sync.Once
	closeErr      error
}

// Start runs the worker for preset and waits until it has loaded ultralytics.
// The worker is killed when ctx is cancelled.
func Start(ctx context.Context, preset Preset, fps float64, opts Options) (*Tracker, error) {
	opts = opts.withDefaults()
	cfg, err := json.Marshal(workerConfig{
		Config:    string(preset.Name),
		Overrides: preset.overrides(),
		FPS:       fps,
	})
	if err != nil {
		return nil, fmt.Errorf("encode tracker config: %w", err)
	}

	cmd := exec.CommandContext(ctx, opts.Python, "-u", "-c", workerScript, string(cfg))
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start tracker worker: %w", err)
	}
	opts.Logger.Info("tracker worker started",
		zap.String("tracker", string(preset.Name)),
		zap.Int("pid", cmd.Process.Pid))

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		logLines(stderr, opts.Logger)
	}()

	t := newTracker(preset, stdin, stdout, opts)
	t.cmd = cmd
	t.exited = make(chan struct{})
	go func() {
		defer close(t.exited)
		// Wait closes the pipes, so both readers have to finish first
		<-t.done
		<-stderrDone
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			opts.Logger.Warn("tracker worker exited", zap.Error(err))
		}
	}()

	if err := t.awaitReady(opts.StartTimeout); err != nil {
		return nil, multierr.Append(err, t.Close())
	}
	return t, nil
}

func newTracker(preset Preset, stdin io.WriteCloser, stdout io.Reader, opts Options) *Tracker {
	t := &Tracker{
		preset:        preset,
		stdin:         stdin,
		enc:           json.NewEncoder(stdin),
		replies:       make(chan reply, 1),
		done:          make(chan struct{}),
		closed:        make(chan struct{}),
		logger:        opts.Logger,
		updateTimeout: opts.UpdateTimeout,
	}
	go t.readReplies(stdout)
	return t
}

// Preset returns the tracker configuration
func (t *Tracker) Preset() Preset {
	return t.preset
}

// Update sends the detections of the next frame to the worker and returns
// the detections that belong to confirmed tracks, with TrackID set. frame
// is only sent when the preset uses motion compensation. A failed update
// leaves the tracker unusable.
func (t *Tracker) Update(frame gocv.Mat, dets []model.Detection) ([]model.Detection, error) {
	if t.failed != nil {
		return nil, t.failed
	}
	out, err := t.update(frame, dets)
	if err != nil {
		t.failed = err
	}
	return out, err
}

func (t *Tracker) update(frame gocv.Mat, dets []model.Detection) ([]model.Detection, error) {
	t.seq++
	req := request{
		Seq:        t.seq,
		Width:      frame.Cols(),
		Height:     frame.Rows(),
		Detections: make([][6]float32, len(dets)),
	}
	for i, d := range dets {
		req.Detections[i] = [6]float32{
			float32(d.Box.Min.X), float32(d.Box.Min.Y),
			float32(d.Box.Max.X), float32(d.Box.Max.Y),
			d.Confidence, float32(d.ClassID),
		}
	}
	if t.preset.MotionComp {
		jpeg, err := render.EncodeJPEG(frame, FrameJPEGQuality)
		if err != nil {
			return nil, fmt.Errorf("encode frame for motion compensation: %w", err)
		}
		req.Frame = jpeg
	}

	timer := time.NewTimer(t.updateTimeout)
	defer timer.Stop()

	written := make(chan error, 1)
	go func() { written <- t.enc.Encode(req) }()
	select {
	case err := <-written:
		if err != nil {
			return nil, fmt.Errorf("send frame to tracker worker: %w", err)
		}
	case <-timer.C:
		return nil, fmt.Errorf("%w: frame %d not accepted", ErrWorkerTimeout, req.Seq)
	}

	resp, err := t.next(timer.C)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("tracker worker: %s", resp.Error)
	}
	if resp.Seq != req.Seq {
		return nil, fmt.Errorf("tracker worker answered frame %d, expected %d", resp.Seq, req.Seq)
	}
	return writeBack(dets, resp.Tracks), nil
}

// writeBack copies the track IDs onto the detections the rows point at
func writeBack(dets []model.Detection, rows [][]float64) []model.Detection {
	out := make([]model.Detection, 0, len(rows))
	for _, row := range rows {
		if len(row) < trackRowLen {
			continue
		}
		idx := int(row[colIndex])
		if idx < 0 || idx >= len(dets) {
			continue
		}
		d := dets[idx]
		d.TrackID = int(row[colTrackID])
		out = append(out, d)
	}
	return out
}

// Close stops the worker, killing it when it does not exit in time
func (t *Tracker) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		t.closeErr = t.stdin.Close()
		if t.exited == nil {
			return
		}
		select {
		case <-t.exited:
		case <-time.After(StopTimeout):
			t.logger.Warn("tracker worker did not stop, killing it")
			if err := t.cmd.Process.Kill(); err != nil {
				t.closeErr = multierr.Append(t.closeErr, err)
			}
			<-t.exited
		}
	})
	return t.closeErr
}

func (t *Tracker) awaitReady(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	resp, err := t.next(timer.C)
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("tracker worker: %s", resp.Error)
	}
	if !resp.Ready {
		return errors.New("tracker worker: expected a ready message")
	}
	return nil
}

// next waits for the following reply
func (t *Tracker) next(deadline <-chan time.Time) (reply, error) {
	select {
	case resp := <-t.replies:
		return resp, nil
	case <-t.done:
		select {
		case resp := <-t.replies:
			return resp, nil
		default:
		}
		if t.readErr != nil {
			return reply{}, fmt.Errorf("%w: %v", ErrWorkerExited, t.readErr)
		}
		return reply{}, ErrWorkerExited
	case <-deadline:
		return reply{}, ErrWorkerTimeout
	}
}

func (t *Tracker) readReplies(r io.Reader) {
	defer close(t.done)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxReplyBytes)
	for sc.Scan() {
		var resp reply
		if err := json.Unmarshal(sc.Bytes(), &resp); err != nil {
			t.logger.Warn("unreadable tracker worker output", zap.ByteString("line", sc.Bytes()), zap.Error(err))
			continue
		}
		select {
		case t.replies <- resp:
		case <-t.closed:
			return
		}
	}
	t.readErr = sc.Err()
}

// logLines forwards worker stderr to the logger
func logLines(r io.Reader, logger *zap.Logger) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		logger.Debug("tracker worker", zap.String("line", sc.Text()))
	}
}
