package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ytget/yolo-vision/internal/model"
	"github.com/ytget/yolo-vision/internal/video"
	"github.com/ytget/yolo-vision/internal/youtube"
)

// ErrImageSource is returned when a still image is started as a session
var ErrImageSource = errors.New("images are processed with DetectImage, not as a session")

// Opened is a frame source plus whatever has to be released with it
type Opened struct {
	Source   video.Source
	Title    string
	Fallback bool // YouTube played from a downloaded temp file

	cleanup []io.Closer
}

// Close closes the source, then removes temporary files
func (o *Opened) Close() error {
	if o == nil {
		return nil
	}
	var err error
	if o.Source != nil {
		err = multierr.Append(err, o.Source.Close())
	}
	for _, c := range o.cleanup {
		err = multierr.Append(err, c.Close())
	}
	return err
}

// Sources opens frame sources for every SourceKind
type Sources struct {
	VideosDir   string
	UploadsDir  string
	WebcamIndex int
	FrameSize   image.Point
	RTSPTimeout time.Duration
	Pipe        video.PipeOptions

	Resolver   StreamResolver
	Downloader TempDownloader
	Logger     *zap.Logger

	openFile   func(path string) (video.Source, error)
	openDevice func(index int) (video.Source, error)
	openURL    func(url string) (video.Source, error)
	openPipe   func(ctx context.Context, url string, size image.Point, opts video.PipeOptions) (video.Source, error)
	describeRTSP  func(ctx context.Context, url string, timeout time.Duration) (*video.RTSPInfo, error)
}

// NewSources creates an opener backed by gocv captures and the ffmpeg pipe
func NewSources(s Sources) *Sources {
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	if s.RTSPTimeout <= 0 {
		s.RTSPTimeout = video.DefaultRTSPTimeout
	}
	if s.Pipe.Logger == nil {
		s.Pipe.Logger = s.Logger
	}
	s.openFile = func(path string) (video.Source, error) { return video.OpenFile(path) }
	s.openDevice = func(index int) (video.Source, error) { return video.OpenDevice(index) }
	s.openURL = func(url string) (video.Source, error) { return video.OpenURL(url) }
	s.openPipe = func(ctx context.Context, url string, size image.Point, opts video.PipeOptions) (video.Source, error) {
		return video.OpenPipe(ctx, url, size, opts)
	}
	s.describeRTSP = video.DescribeRTSP
	return &s
}

// Open opens the source described by req
func (s *Sources) Open(ctx context.Context, req model.SessionRequest) (*Opened, error) {
	switch req.Source {
	case model.SourceVideo:
		return s.openStored(s.UploadsDir, req.Target)
	case model.SourceStored:
		return s.openStored(s.VideosDir, req.Target)
	case model.SourceWebcam:
		index := s.WebcamIndex
		if t := strings.TrimSpace(req.Target); t != "" {
			n, err := strconv.Atoi(t)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid webcam index: %q", req.Target)
			}
			index = n
		}
		src, err := s.openDevice(index)
		if err != nil {
			return nil, fmt.Errorf("open webcam %d: %w", index, err)
		}
		return &Opened{Source: src, Title: fmt.Sprintf("Webcam %d", index)}, nil
	case model.SourceRTSP:
		return s.openRTSP(ctx, req.Target)
	case model.SourceYouTube:
		return s.openYouTube(ctx, req.Target)
	case model.SourceImage:
		return nil, ErrImageSource
	}
	return nil, fmt.Errorf("unknown source: %q", req.Source)
}

func (s *Sources) openStored(dir, name string) (*Opened, error) {
	path, err := video.ResolveStored(dir, name)
	if err != nil {
		return nil, err
	}
	src, err := s.openFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return &Opened{Source: src, Title: name}, nil
}

func (s *Sources) openRTSP(ctx context.Context, url string) (*Opened, error) {
	info, err := s.describeRTSP(ctx, url, s.RTSPTimeout)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("rtsp stream described",
		zap.String("url", url),
		zap.Int("medias", info.Medias),
		zap.Strings("codecs", info.Codecs))

	src, err := s.openURL(url)
	if err != nil {
		return nil, fmt.Errorf("open rtsp stream: %w", err)
	}
	return &Opened{Source: src, Title: url}, nil
}

// openYouTube resolves the URL and decodes it through the ffmpeg pipe. When the
// pipe yields no first frame the video is downloaded and played from disk.
func (s *Sources) openYouTube(ctx context.Context, url string) (*Opened, error) {
	if s.Resolver == nil {
		return nil, errors.New("youtube resolver is not configured")
	}
	stream, err := s.Resolver.Resolve(ctx, url)
	if err != nil {
		return nil, err
	}

	src, pipeErr := s.openPrimedPipe(ctx, stream.URL)
	if pipeErr == nil {
		return &Opened{Source: src, Title: stream.VideoID}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	s.Resolver.Invalidate(ctx, url)
	s.Logger.Warn("stream pipe failed, falling back to download",
		zap.String("video_id", stream.VideoID),
		zap.String("format", stream.Format),
		zap.Error(pipeErr))

	if s.Downloader == nil {
		return nil, fmt.Errorf("open stream: %w", pipeErr)
	}
	tf, err := s.Downloader.Download(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("download fallback: %w", err)
	}
	file, err := s.openFile(tf.Path)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("open downloaded video: %w", err), tf.Close())
	}
	return &Opened{
		Source:   file,
		Title:    stream.VideoID,
		Fallback: true,
		cleanup:  []io.Closer{tf},
	}, nil
}

// openPrimedPipe opens the pipe and waits for its first frame
func (s *Sources) openPrimedPipe(ctx context.Context, url string) (video.Source, error) {
	src, err := s.openPipe(ctx, url, s.FrameSize, s.Pipe)
	if err != nil {
		return nil, err
	}
	first := gocv.NewMat()
	if err := src.Read(&first); err != nil {
		first.Close()
		return nil, multierr.Append(err, src.Close())
	}
	if first.Empty() {
		first.Close()
		return nil, multierr.Append(video.ErrFirstFrameTimed, src.Close())
	}
	return &primedSource{Source: src, first: first}, nil
}

// primedSource replays the frame read while probing the pipe
type primedSource struct {
	video.Source
	first gocv.Mat
	used  bool
}

// Read returns the buffered first frame, then reads from the pipe
func (p *primedSource) Read(dst *gocv.Mat) error {
	if !p.used {
		p.used = true
		p.first.CopyTo(dst)
		return nil
	}
	return p.Source.Read(dst)
}

// Close releases the buffered frame and the pipe
func (p *primedSource) Close() error {
	p.first.Close()
	return p.Source.Close()
}

// sourceCategory classifies a session error for the UI
func sourceCategory(kind model.SourceKind, err error) (string, []string) {
	if err == nil {
		return "", nil
	}
	var rerr *youtube.ResolveError
	if errors.As(err, &rerr) {
		return string(rerr.Category), rerr.Hints()
	}
	if kind != model.SourceYouTube && kind != model.SourceRTSP {
		return "", nil
	}
	c := youtube.Classify(err)
	return string(c), youtube.Hints(c)
}
