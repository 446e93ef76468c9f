package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/ytget/yolo-vision/internal/config"
	"github.com/ytget/yolo-vision/internal/logging"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

const (
	AppName = "yolo-vision"

	flagLogLevel    = "log-level"
	flagLogFile     = "log-file"
	flagAddr        = "addr"
	flagVideosDir   = "videos-dir"
	flagUploadsDir  = "uploads-dir"
	flagDataDir     = "data-dir"
	flagMaxSessions = "max-sessions"
	flagMaxFPS      = "max-fps"
	flagFrameWidth  = "frame-width"
	flagConfidence  = "confidence"
	flagLanguage    = "language"
	flagUseCUDA     = "cuda"
	flagTask        = "task"
	flagOutput      = "output"
)

func main() {
	app := &cli.App{
		Name:                 AppName,
		Usage:                "YOLOv8 detection and segmentation on images, videos, webcams, RTSP and YouTube",
		Version:              version,
		HideHelpCommand:      true,
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagLogLevel,
				Usage:   "debug, info, warn or error",
				EnvVars: []string{config.KeyLogLevel},
				Value:   config.DefaultLogLevel,
			},
			&cli.StringFlag{
				Name:    flagLogFile,
				Usage:   "also write logs to `FILE` (rotated)",
				EnvVars: []string{config.KeyLogFile},
			},
			&cli.BoolFlag{
				Name:    flagUseCUDA,
				Usage:   "run inference on CUDA when available",
				EnvVars: []string{config.KeyUseCUDA},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			resolveCommand(),
			detectCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// loadSettings reads the environment and applies command line overrides
func loadSettings(c *cli.Context) *config.Settings {
	s := config.Load()
	if c.IsSet(flagLogLevel) {
		s.LogLevel = c.String(flagLogLevel)
	}
	if c.IsSet(flagLogFile) {
		s.LogFile = c.String(flagLogFile)
	}
	if c.IsSet(flagUseCUDA) {
		s.UseCUDA = c.Bool(flagUseCUDA)
	}
	if c.IsSet(flagAddr) {
		s.HTTPAddr = c.String(flagAddr)
	}
	if c.IsSet(flagVideosDir) {
		s.VideosDir = c.String(flagVideosDir)
	}
	if c.IsSet(flagUploadsDir) {
		s.UploadsDir = c.String(flagUploadsDir)
	}
	if c.IsSet(flagDataDir) {
		s.DataDir = c.String(flagDataDir)
	}
	if c.IsSet(flagMaxSessions) {
		s.SetMaxSessions(c.Int(flagMaxSessions))
	}
	if c.IsSet(flagMaxFPS) {
		s.SetMaxFPS(c.Float64(flagMaxFPS))
	}
	if c.IsSet(flagFrameWidth) {
		s.SetFrameWidth(c.Int(flagFrameWidth))
	}
	if c.IsSet(flagConfidence) {
		s.SetDefaultConfidence(c.Float64(flagConfidence))
	}
	if c.IsSet(flagLanguage) {
		s.Language = c.String(flagLanguage)
	}
	return s
}

func newLogger(s *config.Settings) (*zap.Logger, error) {
	logger, err := logging.New(AppName, logging.Options{Level: s.LogLevel, File: s.LogFile})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}
