package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ytget/yolo-vision/internal/config"
	"github.com/ytget/yolo-vision/internal/history"
	"github.com/ytget/yolo-vision/internal/infer"
	"github.com/ytget/yolo-vision/internal/model"
	"github.com/ytget/yolo-vision/internal/platform"
	"github.com/ytget/yolo-vision/internal/preview"
	"github.com/ytget/yolo-vision/internal/session"
	"github.com/ytget/yolo-vision/internal/track"
	"github.com/ytget/yolo-vision/internal/video"
	"github.com/ytget/yolo-vision/internal/web"
	"github.com/ytget/yolo-vision/internal/youtube"
)

const sessionShutdownTimeout = 15 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: flagAddr, Usage: "listen `ADDR`ess", Value: config.DefaultHTTPAddr},
			&cli.StringFlag{Name: flagVideosDir, Usage: "directory with stored demo videos"},
			&cli.StringFlag{Name: flagUploadsDir, Usage: "directory for uploaded videos"},
			&cli.StringFlag{Name: flagDataDir, Usage: "directory for the history database"},
			&cli.IntFlag{Name: flagMaxSessions, Usage: "sessions running in parallel"},
			&cli.Float64Flag{Name: flagMaxFPS, Usage: "frame rate cap per session"},
			&cli.IntFlag{Name: flagFrameWidth, Usage: "inference frame width"},
			&cli.Float64Flag{Name: flagConfidence, Usage: "default confidence (0.25..1)"},
			&cli.StringFlag{Name: flagLanguage, Usage: "default UI language (en, ru, pt)"},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) (err error) {
	settings := loadSettings(c)
	logger, err := newLogger(settings)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, dir := range []string{settings.VideosDir, settings.UploadsDir, settings.DataDir} {
		if err := platform.CreateDirectoryIfNotExists(dir); err != nil {
			return err
		}
	}

	detectors, err := infer.NewRegistry(infer.RegistryConfig{
		DetectionModel:    settings.DetectionModel,
		SegmentationModel: settings.SegmentationModel,
		LabelsFile:        settings.LabelsFile,
		UseCUDA:           settings.UseCUDA,
	}, logger.Named("infer"))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, detectors.Close()) }()

	store, err := history.Open(settings.HistoryPath())
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	cache := youtube.NewTieredCache(ctx, settings.RedisURL, settings.CacheTTL, logger.Named("cache"))
	defer func() { err = multierr.Append(err, cache.Close()) }()

	resolver := youtube.NewResolver(youtube.NewYTDLPExtractor(settings.YTDLPPath),
		youtube.WithCache(cache),
		youtube.WithTimeout(settings.ResolveTimeout),
		youtube.WithMaxHeight(settings.YouTubeResolution),
		youtube.WithLogger(logger.Named("youtube")),
	)
	downloader := youtube.NewDownloader(
		youtube.NewYTDLPFetcher(settings.YTDLPPath, logger.Named("download")),
		"", settings.YouTubeResolution, logger.Named("download"))
	playlists := youtube.NewPlaylistParser(youtube.YTDLPLister{})
	playlists.SetTimeout(settings.ResolveTimeout)

	sources := session.NewSources(session.Sources{
		VideosDir:   settings.VideosDir,
		UploadsDir:  settings.UploadsDir,
		WebcamIndex: settings.WebcamIndex,
		FrameSize:   image.Pt(settings.GetFrameWidth(), settings.GetFrameHeight()),
		Pipe: video.PipeOptions{
			FFmpegPath: settings.FFmpegPath,
			FPS:        settings.GetMaxFPS(),
			Logger:     logger.Named("pipe"),
		},
		Resolver:   resolver,
		Downloader: downloader,
		Logger:     logger.Named("sources"),
	})
	sessions := session.NewService(session.ConfigFromSettings(settings), detectors, sources, store, logger.Named("session"))
	trackers := track.NewLauncher(track.Options{Python: settings.PythonPath, Logger: logger.Named("track")})
	sessions.SetTrackers(session.TrackerStarterFunc(func(ctx context.Context, t model.TrackerType, fps float64) (session.FrameTracker, error) {
		tr, err := trackers.Start(ctx, t, fps)
		if err != nil {
			return nil, err
		}
		return tr, nil
	}))

	previews := preview.NewService(preview.NewFFmpegTranscoder(settings.FFmpegPath),
		filepath.Join(settings.UploadsDir, preview.DirName), logger.Named("preview"))

	hub := web.NewHub(logger.Named("events"))
	sessions.SetUpdateCallback(hub.PublishSession)
	previews.SetUpdateCallback(hub.PublishPreview)

	server, err := web.NewServer(web.Deps{
		Sessions:  sessions,
		Previews:  previews,
		Resolver:  resolver,
		Playlists: playlists,
		History:   store,
		Hub:       hub,
		Logger:    logger.Named("http"),
	}, web.Options{
		VideosDir:         settings.VideosDir,
		UploadsDir:        settings.UploadsDir,
		Language:          settings.Language,
		DefaultConfidence: settings.GetDefaultConfidence(),
	})
	if err != nil {
		return err
	}

	logger.Info("starting",
		zap.String("version", version),
		zap.String("addr", settings.HTTPAddr),
		zap.Int("max_sessions", settings.GetMaxSessions()),
		zap.Bool("cuda", settings.UseCUDA),
		zap.Bool("redis", settings.RedisURL != ""))

	runErr := server.Run(ctx, settings.HTTPAddr)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sessionShutdownTimeout)
	defer cancel()
	if err := sessions.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		runErr = multierr.Append(runErr, fmt.Errorf("stop sessions: %w", err))
	} else if err != nil {
		logger.Warn("sessions still running at shutdown")
	}
	logger.Info("stopped")
	return runErr
}
