package infer

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ytget/yolo-vision/internal/model"
)

// Opener constructs a detector for a model file
type Opener func(path string, task model.ModelTask, labels []string, backend Backend) (Detector, error)

// RegistryConfig lists the model files per task
type RegistryConfig struct {
	DetectionModel    string
	SegmentationModel string
	LabelsFile        string
	UseCUDA           bool
}

// Registry loads detectors on first use and keeps one per task
type Registry struct {
	mu      sync.Mutex
	paths   map[model.ModelTask]string
	labels  []string
	useCUDA bool
	loaded  map[model.ModelTask]Detector
	open    Opener
	warm    func(Detector) error
	logger  *zap.Logger
}

// NewRegistry creates a registry; labels come from cfg.LabelsFile or COCO
func NewRegistry(cfg RegistryConfig, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	labels, err := LoadLabels(cfg.LabelsFile)
	if err != nil {
		return nil, err
	}
	return &Registry{
		paths: map[model.ModelTask]string{
			model.TaskDetect:  cfg.DetectionModel,
			model.TaskSegment: cfg.SegmentationModel,
		},
		labels:  labels,
		useCUDA: cfg.UseCUDA,
		loaded:  make(map[model.ModelTask]Detector),
		open:    openONNX,
		warm:    warmUp,
		logger:  logger,
	}, nil
}

// SetOpener replaces the detector constructor
func (r *Registry) SetOpener(open Opener, warm func(Detector) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open = open
	if warm == nil {
		warm = func(Detector) error { return nil }
	}
	r.warm = warm
}

// Labels returns the class names shared by all models
func (r *Registry) Labels() []string {
	return r.labels
}

// Load returns the detector for task, loading it on first use
func (r *Registry) Load(task model.ModelTask) (Detector, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.loaded[task]; ok {
		return d, nil
	}
	path, ok := r.paths[task]
	if !ok || path == "" {
		return nil, fmt.Errorf("%w: no model configured for task %q", ErrModelNotLoaded, task)
	}

	d, err := r.loadLocked(path, task)
	if err != nil {
		return nil, err
	}
	r.loaded[task] = d
	return d, nil
}

// loadLocked opens on CUDA when enabled and falls back to CPU when the CUDA
// net cannot be opened or fails its warm-up pass
func (r *Registry) loadLocked(path string, task model.ModelTask) (Detector, error) {
	if r.useCUDA {
		d, err := r.open(path, task, r.labels, BackendCUDA)
		if err == nil {
			if err = r.safeWarm(d); err == nil {
				r.logger.Info("model loaded", zap.String("task", string(task)), zap.String("backend", string(BackendCUDA)))
				return d, nil
			}
			_ = d.Close()
		}
		r.logger.Warn("cuda backend unavailable, using cpu", zap.String("task", string(task)), zap.Error(err))
	}

	d, err := r.open(path, task, r.labels, BackendCPU)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s model: %w", task, err)
	}
	r.logger.Info("model loaded", zap.String("task", string(task)), zap.String("backend", string(BackendCPU)))
	return d, nil
}

func (r *Registry) safeWarm(d Detector) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("warm-up panicked: %v", rec)
		}
	}()
	return r.warm(d)
}

// Close releases every loaded detector
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	for task, d := range r.loaded {
		err = multierr.Append(err, d.Close())
		delete(r.loaded, task)
	}
	return err
}

func openONNX(path string, task model.ModelTask, labels []string, backend Backend) (Detector, error) {
	return NewONNXDetector(path, task, labels, backend)
}

// warmUp runs one pass on a blank frame
func warmUp(d Detector) error {
	blank := gocv.NewMatWithSize(InputSize, InputSize, gocv.MatTypeCV8UC3)
	defer blank.Close()
	_, err := d.Detect(blank, Options{})
	return err
}
