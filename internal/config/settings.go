package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/env"
)

// Environment keys
const (
	KeyHTTPAddr          = "HTTP_ADDR"
	KeyDetectionModel    = "DETECTION_MODEL"
	KeySegmentationModel = "SEGMENTATION_MODEL"
	KeyLabelsFile        = "LABELS_FILE"
	KeyUseCUDA           = "USE_CUDA"
	KeyWebcamIndex       = "WEBCAM_INDEX"
	KeyVideosDir         = "VIDEOS_DIR"
	KeyUploadsDir        = "UPLOADS_DIR"
	KeyDataDir           = "DATA_DIR"
	KeyDefaultConfidence = "DEFAULT_CONFIDENCE"
	KeyFrameWidth        = "FRAME_WIDTH"
	KeyMaxFPS            = "MAX_FPS"
	KeyMaxSessions       = "MAX_SESSIONS"
	KeyYouTubeResolution = "YOUTUBE_RESOLUTION"
	KeyResolveTimeout    = "RESOLVE_TIMEOUT"
	KeyCacheTTL          = "CACHE_TTL"
	KeyRedisURL          = "REDIS_URL"
	KeyYTDLPPath         = "YTDLP_PATH"
	KeyFFmpegPath        = "FFMPEG_PATH"
	KeyPythonPath        = "PYTHON_PATH"
	KeyLogLevel          = "LOG_LEVEL"
	KeyLogFile           = "LOG_FILE"
	KeyLanguage          = "LANGUAGE"
)

// Default values
const (
	DefaultHTTPAddr          = ":8501"
	DefaultDetectionModel    = "weights/yolov8n.onnx"
	DefaultSegmentationModel = "weights/yolov8n-seg.onnx"
	DefaultWebcamIndex       = 0
	DefaultVideosDir         = "videos"
	DefaultUploadsDir        = "uploads"
	DefaultDataDir           = "data"
	DefaultConfidence        = 0.40
	DefaultFrameWidth        = 720
	DefaultMaxFPS            = 30.0
	DefaultMaxSessions       = 2
	DefaultYouTubeResolution = 720
	DefaultResolveTimeout    = 60 * time.Second
	DefaultCacheTTL          = 3 * time.Hour
	DefaultYTDLPPath         = "yt-dlp"
	DefaultFFmpegPath        = "ffmpeg"
	DefaultPythonPath        = "python3"
	DefaultLogLevel          = "info"
	DefaultLanguage          = "en"
)

// Bounds applied by the setters
const (
	MinConfidence  = 0.25
	MaxConfidence  = 1.0
	MinMaxSessions = 1
	MaxMaxSessions = 10
	MinFrameWidth  = 160
	MaxFrameWidth  = 1920
	MinFPS         = 1.0
	MaxFPS         = 60.0
)

// HistoryFileName is the sqlite database created under the data directory
const HistoryFileName = "history.db"

// Settings manages application configuration
type Settings struct {
	HTTPAddr          string
	DetectionModel    string
	SegmentationModel string
	LabelsFile        string
	UseCUDA           bool
	WebcamIndex       int
	VideosDir         string
	UploadsDir        string
	DataDir           string
	RedisURL          string
	YTDLPPath         string
	FFmpegPath        string
	PythonPath        string
	LogLevel          string
	LogFile           string
	Language          string
	ResolveTimeout    time.Duration
	CacheTTL          time.Duration
	YouTubeResolution int

	confidence  float64
	frameWidth  int
	maxFPS      float64
	maxSessions int
}

// Load reads settings from the environment, falling back to defaults
func Load() *Settings {
	s := &Settings{
		HTTPAddr:          env.Str(KeyHTTPAddr, DefaultHTTPAddr),
		DetectionModel:    env.Str(KeyDetectionModel, DefaultDetectionModel),
		SegmentationModel: env.Str(KeySegmentationModel, DefaultSegmentationModel),
		LabelsFile:        env.Str(KeyLabelsFile, ""),
		UseCUDA:           parseBool(env.Str(KeyUseCUDA, "false")),
		WebcamIndex:       env.Int(KeyWebcamIndex, DefaultWebcamIndex),
		VideosDir:         env.Str(KeyVideosDir, DefaultVideosDir),
		UploadsDir:        env.Str(KeyUploadsDir, DefaultUploadsDir),
		DataDir:           env.Str(KeyDataDir, DefaultDataDir),
		RedisURL:          env.Str(KeyRedisURL, ""),
		YTDLPPath:         env.Str(KeyYTDLPPath, DefaultYTDLPPath),
		FFmpegPath:        env.Str(KeyFFmpegPath, DefaultFFmpegPath),
		PythonPath:        env.Str(KeyPythonPath, DefaultPythonPath),
		LogLevel:          env.Str(KeyLogLevel, DefaultLogLevel),
		LogFile:           env.Str(KeyLogFile, ""),
		Language:          env.Str(KeyLanguage, DefaultLanguage),
		ResolveTimeout:    env.Duration(KeyResolveTimeout, DefaultResolveTimeout),
		CacheTTL:          env.Duration(KeyCacheTTL, DefaultCacheTTL),
		YouTubeResolution: env.Int(KeyYouTubeResolution, DefaultYouTubeResolution),
	}
	s.SetDefaultConfidence(env.Float(KeyDefaultConfidence, DefaultConfidence))
	s.SetFrameWidth(env.Int(KeyFrameWidth, DefaultFrameWidth))
	s.SetMaxFPS(env.Float(KeyMaxFPS, DefaultMaxFPS))
	s.SetMaxSessions(env.Int(KeyMaxSessions, DefaultMaxSessions))
	if s.ResolveTimeout <= 0 {
		s.ResolveTimeout = DefaultResolveTimeout
	}
	if s.YouTubeResolution <= 0 {
		s.YouTubeResolution = DefaultYouTubeResolution
	}
	return s
}

// GetDefaultConfidence returns the confidence preselected in the UI
func (s *Settings) GetDefaultConfidence() float64 {
	return s.confidence
}

// SetDefaultConfidence sets the default confidence, accepting 0..1 or a 25..100 percentage
func (s *Settings) SetDefaultConfidence(conf float64) {
	s.confidence = ClampConfidence(conf)
}

// GetFrameWidth returns the width frames are resized to before inference
func (s *Settings) GetFrameWidth() int {
	return s.frameWidth
}

// GetFrameHeight returns the 16:9 height matching GetFrameWidth
func (s *Settings) GetFrameHeight() int {
	return s.frameWidth * 9 / 16
}

// SetFrameWidth sets the processing frame width
func (s *Settings) SetFrameWidth(width int) {
	if width < MinFrameWidth {
		width = MinFrameWidth
	}
	if width > MaxFrameWidth {
		width = MaxFrameWidth
	}
	s.frameWidth = width
}

// GetMaxFPS returns the cap on published frames per second
func (s *Settings) GetMaxFPS() float64 {
	return s.maxFPS
}

// SetMaxFPS sets the published frame rate cap
func (s *Settings) SetMaxFPS(fps float64) {
	if fps < MinFPS {
		fps = MinFPS
	}
	if fps > MaxFPS {
		fps = MaxFPS
	}
	s.maxFPS = fps
}

// GetMaxSessions returns the maximum number of parallel sessions
func (s *Settings) GetMaxSessions() int {
	return s.maxSessions
}

// SetMaxSessions sets the maximum number of parallel sessions
func (s *Settings) SetMaxSessions(count int) {
	if count < MinMaxSessions {
		count = MinMaxSessions
	}
	if count > MaxMaxSessions {
		count = MaxMaxSessions
	}
	s.maxSessions = count
}

// HistoryPath returns the sqlite file used for session history
func (s *Settings) HistoryPath() string {
	return filepath.Join(s.DataDir, HistoryFileName)
}

// GetLanguageOptions returns available language options
func (s *Settings) GetLanguageOptions() map[string]string {
	return map[string]string{
		"en": "English",
		"ru": "Русский",
		"pt": "Português",
	}
}

// ClampConfidence normalizes a UI confidence value into MinConfidence..MaxConfidence.
// Values above 1 are read as percentages like the slider in the page.
func ClampConfidence(conf float64) float64 {
	if conf > 1 {
		conf /= 100
	}
	if conf < MinConfidence {
		conf = MinConfidence
	}
	if conf > MaxConfidence {
		conf = MaxConfidence
	}
	return conf
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
