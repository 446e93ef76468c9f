package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hybridgroup/mjpeg"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ytget/yolo-vision/internal/history"
	"github.com/ytget/yolo-vision/internal/infer"
	"github.com/ytget/yolo-vision/internal/model"
	"github.com/ytget/yolo-vision/internal/render"
)

// Runner constants
const (
	frameQueue        = 2
	progressEvery     = 15 // frames between update callbacks
	CompletedTemplate = "Stream ended. Processed %d frames."
)

// run drives one session from opening the source to persisting its history
func (s *Service) run(sess *model.Session) {
	defer s.wg.Done()
	s.notifyUpdate(sess)

	defer func() {
		s.mu.Lock()
		s.activeCount--
		s.mu.Unlock()
		s.startNextPending()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Monitor for stop requests
	go func() {
		ticker := time.NewTicker(stopPollInterval)
		defer ticker.Stop()
		for {
			s.mu.RLock()
			status := sess.Status
			s.mu.RUnlock()

			if status == model.StatusStopping {
				cancel()
				return
			}
			if status.IsFinished() {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	frames, err := s.execute(ctx, sess)
	s.finish(ctx, sess, frames, err)
}

// execute opens the source and processes frames until the end of the stream
func (s *Service) execute(ctx context.Context, sess *model.Session) (frames int, err error) {
	req := model.SessionRequest{
		Source:     sess.Source,
		Target:     sess.Target,
		Task:       sess.Task,
		Confidence: sess.Confidence,
		Tracker:    sess.Tracker,
	}

	opened, err := s.sources.Open(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if cErr := opened.Close(); cErr != nil {
			s.logger.Warn("failed to release source", zap.String("id", sess.ID), zap.Error(cErr))
		}
	}()

	detector, err := s.detectors.Load(sess.Task)
	if err != nil {
		return 0, fmt.Errorf("load model: %w", err)
	}

	info := opened.Source.Info()
	var tracker FrameTracker
	if req.Tracking() {
		s.mu.RLock()
		trackers := s.trackers
		s.mu.RUnlock()
		if trackers == nil {
			return 0, ErrTrackingUnavailable
		}
		tracker, err = trackers.Start(ctx, req.Tracker, info.FrameRate())
		if err != nil {
			return 0, fmt.Errorf("start tracker: %w", err)
		}
		defer func() {
			if cErr := tracker.Close(); cErr != nil {
				s.logger.Warn("failed to stop tracker", zap.String("id", sess.ID), zap.Error(cErr))
			}
		}()
	}

	s.mu.Lock()
	sess.Status = statusUnlessStopping(sess.Status, model.StatusStreaming)
	sess.Width = info.Width
	sess.Height = info.Height
	sess.SourceFPS = info.FrameRate()
	if opened.Title != "" && sess.Title == "" {
		sess.Title = opened.Title
	}
	sess.Message = "Streaming"
	if opened.Fallback {
		sess.Message = "Streaming from downloaded copy"
	}
	stream := s.streams[sess.ID]
	s.mu.Unlock()
	s.markPlaylists(sess)
	s.notifyUpdate(sess)

	proc := &frameProcessor{
		detector: detector,
		tracker:  tracker,
		opts:     infer.Options{Confidence: float32(sess.Confidence)},
		width:    s.cfg.FrameWidth,
		quality:  s.cfg.JPEGQuality,
		task:     sess.Task,
		resized:  gocv.NewMat(),
	}
	defer proc.Close()

	return s.pump(ctx, sess, opened, proc, stream)
}

// pump reads frames on one goroutine and annotates them on another
func (s *Service) pump(ctx context.Context, sess *model.Session, opened *Opened, proc *frameProcessor, stream *mjpeg.Stream) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	frames := make(chan gocv.Mat, frameQueue)
	limiter := rate.NewLimiter(rate.Limit(s.cfg.MaxFPS), 1)

	g.Go(func() error {
		defer close(frames)
		for {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}
			m := gocv.NewMat()
			if err := opened.Source.Read(&m); err != nil {
				m.Close()
				if errors.Is(err, io.EOF) {
					return nil
				}
				return fmt.Errorf("read frame: %w", err)
			}
			select {
			case frames <- m:
			case <-gctx.Done():
				m.Close()
				return gctx.Err()
			}
		}
	})

	processed := 0
	g.Go(func() error {
		started := time.Now()
		for m := range frames {
			fps := 0.0
			if elapsed := time.Since(started).Seconds(); elapsed > 0 {
				fps = float64(processed) / elapsed
			}
			out, err := proc.process(m, processed+1, fps)
			m.Close()
			if err != nil {
				return err
			}
			if out == nil {
				continue
			}
			processed++
			if stream != nil {
				stream.UpdateJPEG(out.jpeg)
			}
			s.recordFrame(sess, processed, len(out.detections), fps)
		}
		return nil
	})

	err := g.Wait()
	for m := range frames {
		m.Close()
	}
	return processed, err
}

// recordFrame updates counters, notifying every progressEvery frames
func (s *Service) recordFrame(sess *model.Session, frames, objects int, fps float64) {
	s.mu.Lock()
	sess.Frames = frames
	sess.Objects = objects
	sess.FPS = fps
	s.mu.Unlock()

	if frames == 1 || frames%progressEvery == 0 {
		s.notifyUpdate(sess)
	}
}

// finish sets the final status, persists the session and notifies listeners
func (s *Service) finish(ctx context.Context, sess *model.Session, frames int, err error) {
	stopped := errors.Is(ctx.Err(), context.Canceled)

	s.mu.Lock()
	sess.Frames = frames
	switch {
	case sess.Status == model.StatusStopping || stopped:
		sess.Status = model.StatusStopped
		sess.Message = fmt.Sprintf("Stopped. Processed %d frames.", frames)
	case err != nil:
		sess.Status = model.StatusError
		sess.LastError = err.Error()
		sess.Category, sess.Hints = sourceCategory(sess.Source, err)
		sess.Message = "Error: " + err.Error()
	default:
		sess.Status = model.StatusCompleted
		sess.Message = fmt.Sprintf(CompletedTemplate, frames)
	}
	sess.FinishedAt = time.Now()
	entry := history.FromSession(sess)
	s.mu.Unlock()

	if sess.Status == model.StatusError {
		s.logger.Warn("session failed", zap.String("id", sess.ID), zap.Error(err))
	} else {
		s.logger.Info("session finished",
			zap.String("id", sess.ID),
			zap.String("status", string(entry.Status)),
			zap.Int("frames", frames))
	}

	s.markPlaylists(sess)

	if s.history != nil {
		hctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		if hErr := s.history.Save(hctx, entry); hErr != nil {
			s.logger.Warn("failed to save history", zap.String("id", sess.ID), zap.Error(hErr))
		}
		cancel()
	}

	s.notifyUpdate(sess)
}

func statusUnlessStopping(current, next model.SessionStatus) model.SessionStatus {
	if current == model.StatusStopping {
		return current
	}
	return next
}

// frameOutput is one annotated frame
type frameOutput struct {
	jpeg       []byte
	detections []model.Detection
}

// frameProcessor resizes, detects, tracks, annotates and encodes frames
type frameProcessor struct {
	detector infer.Detector
	tracker  FrameTracker
	opts     infer.Options
	width    int
	quality  int
	task     model.ModelTask
	resized  gocv.Mat
}

// process returns nil output for empty frames
func (p *frameProcessor) process(frame gocv.Mat, index int, fps float64) (*frameOutput, error) {
	if frame.Empty() {
		return nil, nil
	}
	render.Resize(frame, &p.resized, p.width)

	res, err := p.detector.Detect(p.resized, p.opts)
	if err != nil {
		return nil, fmt.Errorf("detect frame %d: %w", index, err)
	}
	dets := res.Detections
	if p.tracker != nil {
		dets, err = p.tracker.Update(p.resized, dets)
		if err != nil {
			return nil, fmt.Errorf("track frame %d: %w", index, err)
		}
	}

	if err := render.Annotate(&p.resized, dets, &render.Header{Frame: index, FPS: fps, Task: p.task}); err != nil {
		return nil, err
	}
	data, err := render.EncodeJPEG(p.resized, p.quality)
	if err != nil {
		return nil, err
	}
	return &frameOutput{jpeg: data, detections: dets}, nil
}

// Close releases the resize buffer
func (p *frameProcessor) Close() error {
	return p.resized.Close()
}
