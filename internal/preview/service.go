package preview

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ytget/yolo-vision/internal/model"
	"github.com/ytget/yolo-vision/internal/platform"
)

// Service constants
const (
	TaskIDPrefix       = "preview-"
	OutputExtensionMP4 = ".mp4"
	DirName            = "previews"
	stopPollInterval   = 100 * time.Millisecond
)

// ErrNoPreview is returned when no finished preview exists for a video
var ErrNoPreview = errors.New("preview not available")

// Service runs preview transcodes in the background
type Service struct {
	tasks      map[string]*model.PreviewTask
	tasksMutex sync.RWMutex
	onUpdate   func(*model.PreviewTask)

	transcoder Transcoder
	outputDir  string
	logger     *zap.Logger
}

// NewService creates a preview service writing into outputDir
func NewService(transcoder Transcoder, outputDir string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		tasks:      make(map[string]*model.PreviewTask),
		transcoder: transcoder,
		outputDir:  outputDir,
		logger:     logger,
	}
}

// OutputDir returns the directory previews are written to
func (s *Service) OutputDir() string {
	return s.outputDir
}

// SetUpdateCallback sets the callback function for task updates
func (s *Service) SetUpdateCallback(callback func(*model.PreviewTask)) {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()
	s.onUpdate = callback
}

// Start begins transcoding inputPath in the background
func (s *Service) Start(inputPath string) (*model.PreviewTask, error) {
	s.tasksMutex.Lock()
	defer s.tasksMutex.Unlock()

	for _, task := range s.tasks {
		if task.InputPath == inputPath && task.Status.IsActive() {
			return nil, fmt.Errorf("preview already in progress for file: %s", filepath.Base(inputPath))
		}
	}

	if _, err := os.Stat(inputPath); err != nil {
		return nil, fmt.Errorf("input file does not exist: %s", filepath.Base(inputPath))
	}
	if err := platform.CreateDirectoryIfNotExists(s.outputDir); err != nil {
		return nil, fmt.Errorf("failed to create preview directory: %w", err)
	}

	name := filepath.Base(inputPath)
	task := &model.PreviewTask{
		ID:         generateTaskID(),
		Name:       name,
		InputPath:  inputPath,
		OutputPath: s.outputPath(name),
		Status:     model.PreviewPending,
		StartedAt:  time.Now(),
	}
	s.tasks[task.ID] = task

	go s.run(task)

	return cloneTask(task), nil
}

// Stop requests a running transcode to stop
func (s *Service) Stop(taskID string) error {
	s.tasksMutex.Lock()
	task, exists := s.tasks[taskID]
	if !exists {
		s.tasksMutex.Unlock()
		return fmt.Errorf("preview task not found: %s", taskID)
	}
	if !task.Status.IsActive() {
		status := task.Status
		s.tasksMutex.Unlock()
		return fmt.Errorf("preview task is not active: %s", status)
	}
	task.Status = model.PreviewStopping
	s.tasksMutex.Unlock()

	s.notifyUpdate(task)
	return nil
}

// Get returns a copy of a task by ID
func (s *Service) Get(taskID string) (*model.PreviewTask, bool) {
	s.tasksMutex.RLock()
	defer s.tasksMutex.RUnlock()
	task, exists := s.tasks[taskID]
	if !exists {
		return nil, false
	}
	return cloneTask(task), true
}

// List returns copies of all tasks, newest first
func (s *Service) List() []*model.PreviewTask {
	s.tasksMutex.RLock()
	out := make([]*model.PreviewTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, cloneTask(task))
	}
	s.tasksMutex.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// Path returns the finished preview for an uploaded file name
func (s *Service) Path(name string) (string, error) {
	name = filepath.Base(name)
	s.tasksMutex.RLock()
	for _, task := range s.tasks {
		if task.Name == name && task.Status.IsActive() {
			s.tasksMutex.RUnlock()
			return "", fmt.Errorf("%w: transcode in progress", ErrNoPreview)
		}
	}
	s.tasksMutex.RUnlock()

	path := s.outputPath(name)
	if info, err := os.Stat(path); err != nil || info.IsDir() || info.Size() == 0 {
		return "", ErrNoPreview
	}
	return path, nil
}

// run performs the transcode
func (s *Service) run(task *model.PreviewTask) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	duration, err := s.transcoder.Duration(ctx, task.InputPath)
	if err != nil {
		s.logger.Warn("failed to get video duration", zap.String("file", task.Name), zap.Error(err))
		s.setTaskError(task, err)
		return
	}

	// Monitor for stop requests
	go func() {
		for {
			s.tasksMutex.RLock()
			status := task.Status
			s.tasksMutex.RUnlock()

			if status == model.PreviewStopping {
				cancel()
				return
			}
			if status.IsFinished() {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(stopPollInterval):
			}
		}
	}()

	s.tasksMutex.Lock()
	if task.Status == model.PreviewPending {
		task.Status = model.PreviewTranscoding
	}
	task.Duration = duration
	s.tasksMutex.Unlock()
	s.notifyUpdate(task)

	progress := newProgressWriter(func(seconds float64) {
		s.updateProgress(task, seconds, duration)
	})
	err = s.transcoder.Transcode(ctx, task.InputPath, task.OutputPath, progress)

	s.tasksMutex.Lock()
	switch {
	case task.Status == model.PreviewStopping || errors.Is(ctx.Err(), context.Canceled):
		task.Status = model.PreviewStopped
		os.Remove(task.OutputPath)
	case err != nil:
		task.Status = model.PreviewError
		task.LastError = err.Error()
		if line := progress.LastLine(); line != "" {
			task.LastError += ": " + line
		}
		os.Remove(task.OutputPath)
	default:
		task.Status = model.PreviewReady
		task.Progress = 1.0
		task.Percent = 100
	}
	task.FinishedAt = time.Now()
	status := task.Status
	s.tasksMutex.Unlock()

	s.logger.Info("preview finished",
		zap.String("file", task.Name),
		zap.String("status", string(status)),
		zap.Error(err))
	s.notifyUpdate(task)
}

// updateProgress records transcode progress from an out_time value
func (s *Service) updateProgress(task *model.PreviewTask, seconds, total float64) {
	if total <= 0 {
		return
	}
	progress := seconds / total
	if progress > 1.0 {
		progress = 1.0
	}

	s.tasksMutex.Lock()
	changed := int(progress*100) != task.Percent
	task.Progress = progress
	task.Percent = int(progress * 100)
	s.tasksMutex.Unlock()

	if changed {
		s.notifyUpdate(task)
	}
}

// setTaskError sets an error state for a task
func (s *Service) setTaskError(task *model.PreviewTask, err error) {
	s.tasksMutex.Lock()
	task.Status = model.PreviewError
	task.LastError = err.Error()
	task.FinishedAt = time.Now()
	s.tasksMutex.Unlock()

	s.notifyUpdate(task)
}

// notifyUpdate hands a copy of the task to the update callback
func (s *Service) notifyUpdate(task *model.PreviewTask) {
	s.tasksMutex.RLock()
	cb := s.onUpdate
	snapshot := cloneTask(task)
	s.tasksMutex.RUnlock()

	if cb != nil {
		cb(snapshot)
	}
}

func (s *Service) outputPath(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(s.outputDir, base+OutputExtensionMP4)
}

func cloneTask(task *model.PreviewTask) *model.PreviewTask {
	c := *task
	return &c
}

// generateTaskID generates a unique task ID using UUID v7
func generateTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf(TaskIDPrefix+"%d", time.Now().UnixNano())
	}
	return TaskIDPrefix + id.String()
}
