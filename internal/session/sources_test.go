package session

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gocv.io/x/gocv"

	"github.com/ytget/yolo-vision/internal/model"
	"github.com/ytget/yolo-vision/internal/video"
	"github.com/ytget/yolo-vision/internal/youtube"
)

type stubResolver struct {
	stream      *youtube.Stream
	err         error
	invalidated []string
}

func (r *stubResolver) Resolve(context.Context, string) (*youtube.Stream, error) {
	return r.stream, r.err
}

func (r *stubResolver) Invalidate(_ context.Context, url string) {
	r.invalidated = append(r.invalidated, url)
}

// silentPipe stands in for an ffmpeg pipe that never delivers a frame
func silentPipe(context.Context, string, image.Point, video.PipeOptions) (video.Source, error) {
	return &fakeSource{err: video.ErrFirstFrameTimed}, nil
}

// writingFetcher stores a small video file the way yt-dlp would
func writingFetcher(_ context.Context, _, _, dir string) error {
	return os.WriteFile(filepath.Join(dir, "abc123.mp4"), []byte("video"), 0o644)
}

func assertNoTempDirs(t *testing.T, base string) {
	t.Helper()
	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries, "download directories must be removed")
}

type stubDownloader struct {
	path  string
	err   error
	calls int
}

func (d *stubDownloader) Download(context.Context, string) (*youtube.TempFile, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return &youtube.TempFile{Path: d.path}, nil
}

func newTestSources(t *testing.T, res StreamResolver, dl TempDownloader) *Sources {
	t.Helper()
	s := NewSources(Sources{
		VideosDir:  t.TempDir(),
		UploadsDir: t.TempDir(),
		FrameSize:  image.Pt(320, 180),
		Resolver:   res,
		Downloader: dl,
		Logger:     zaptest.NewLogger(t),
	})
	s.openFile = func(string) (video.Source, error) { return &fakeSource{frames: 3}, nil }
	s.openDevice = func(int) (video.Source, error) { return &fakeSource{frames: -1}, nil }
	s.openURL = func(string) (video.Source, error) { return &fakeSource{frames: -1}, nil }
	return s
}

func TestSources_YouTube(t *testing.T) {
	stream := &youtube.Stream{VideoID: "abc123", URL: "https://cdn.example/v.mp4", Format: "merged-mp4"}

	t.Run("should play the pipe when it yields a first frame", func(t *testing.T) {
		dl := &stubDownloader{path: "/tmp/abc123.mp4"}
		s := newTestSources(t, &stubResolver{stream: stream}, dl)
		var pipedURL string
		s.openPipe = func(_ context.Context, url string, size image.Point, _ video.PipeOptions) (video.Source, error) {
			pipedURL = url
			assert.Equal(t, image.Pt(320, 180), size)
			return &fakeSource{frames: 2}, nil
		}

		opened, err := s.Open(context.Background(), model.SessionRequest{Source: model.SourceYouTube, Target: testVideoURL})
		require.NoError(t, err)
		defer opened.Close()

		assert.Equal(t, stream.URL, pipedURL)
		assert.False(t, opened.Fallback)
		assert.Equal(t, 0, dl.calls)

		// the first frame read while priming is replayed
		m := gocv.NewMat()
		defer m.Close()
		for i := 0; i < 2; i++ {
			require.NoError(t, opened.Source.Read(&m))
			assert.False(t, m.Empty())
		}
	})

	t.Run("should fall back to a download when the pipe yields nothing", func(t *testing.T) {
		dl := &stubDownloader{path: "/tmp/abc123.mp4"}
		res := &stubResolver{stream: stream}
		s := newTestSources(t, res, dl)
		pipe := &fakeSource{frames: 0}
		s.openPipe = func(context.Context, string, image.Point, video.PipeOptions) (video.Source, error) {
			return pipe, nil
		}
		var filePath string
		s.openFile = func(path string) (video.Source, error) {
			filePath = path
			return &fakeSource{frames: 3}, nil
		}

		opened, err := s.Open(context.Background(), model.SessionRequest{Source: model.SourceYouTube, Target: testVideoURL})
		require.NoError(t, err)
		assert.True(t, opened.Fallback)
		assert.Equal(t, 1, dl.calls)
		assert.Equal(t, "/tmp/abc123.mp4", filePath)
		assert.True(t, pipe.closed.Load(), "failed pipe is closed")
		assert.Len(t, opened.cleanup, 1)
		assert.Equal(t, []string{testVideoURL}, res.invalidated, "unplayable stream is dropped from the cache")
		assert.NoError(t, opened.Close())
	})

	t.Run("should report the download error when both paths fail", func(t *testing.T) {
		s := newTestSources(t, &stubResolver{stream: stream}, &stubDownloader{err: errBoom})
		s.openPipe = silentPipe

		_, err := s.Open(context.Background(), model.SessionRequest{Source: model.SourceYouTube, Target: testVideoURL})
		assert.ErrorIs(t, err, errBoom)
	})

	t.Run("should fail when the downloaded file cannot be opened", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "abc123.mp4")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

		s := newTestSources(t, &stubResolver{stream: stream}, &stubDownloader{path: path})
		s.openPipe = silentPipe
		s.openFile = func(string) (video.Source, error) { return nil, video.ErrNotOpened }

		_, err := s.Open(context.Background(), model.SessionRequest{Source: model.SourceYouTube, Target: testVideoURL})
		assert.ErrorIs(t, err, video.ErrNotOpened)
	})

	t.Run("should remove the download directory when the file cannot be opened", func(t *testing.T) {
		base := t.TempDir()
		dl := youtube.NewDownloader(youtube.FetcherFunc(writingFetcher), base, youtube.DefaultMaxHeight, zaptest.NewLogger(t))
		s := newTestSources(t, &stubResolver{stream: stream}, dl)
		s.openPipe = silentPipe
		var filePath string
		s.openFile = func(path string) (video.Source, error) {
			filePath = path
			return nil, video.ErrNotOpened
		}

		_, err := s.Open(context.Background(), model.SessionRequest{Source: model.SourceYouTube, Target: testVideoURL})
		require.ErrorIs(t, err, video.ErrNotOpened)
		assert.NotEmpty(t, filePath)
		assert.NoFileExists(t, filePath)
		assertNoTempDirs(t, base)
	})

	t.Run("should remove the download directory when the session closes", func(t *testing.T) {
		base := t.TempDir()
		dl := youtube.NewDownloader(youtube.FetcherFunc(writingFetcher), base, youtube.DefaultMaxHeight, zaptest.NewLogger(t))
		s := newTestSources(t, &stubResolver{stream: stream}, dl)
		s.openPipe = silentPipe

		opened, err := s.Open(context.Background(), model.SessionRequest{Source: model.SourceYouTube, Target: testVideoURL})
		require.NoError(t, err)
		require.True(t, opened.Fallback)
		entries, err := os.ReadDir(base)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "download kept while playing")

		require.NoError(t, opened.Close())
		assertNoTempDirs(t, base)
	})

	t.Run("should return resolve errors unchanged", func(t *testing.T) {
		rerr := &youtube.ResolveError{Category: youtube.CategoryExtraction}
		s := newTestSources(t, &stubResolver{err: rerr}, nil)
		_, err := s.Open(context.Background(), model.SessionRequest{Source: model.SourceYouTube, Target: testVideoURL})
		assert.Same(t, rerr, err)
	})
}

func TestSources_Open(t *testing.T) {
	t.Run("should open stored videos by name only", func(t *testing.T) {
		s := newTestSources(t, nil, nil)
		require.NoError(t, os.WriteFile(filepath.Join(s.VideosDir, "demo.mp4"), []byte("x"), 0o644))

		opened, err := s.Open(context.Background(), stored("demo.mp4"))
		require.NoError(t, err)
		assert.Equal(t, "demo.mp4", opened.Title)
		require.NoError(t, opened.Close())

		_, err = s.Open(context.Background(), stored("sub/demo.mp4"))
		assert.Error(t, err)
	})

	t.Run("should parse the webcam index", func(t *testing.T) {
		s := newTestSources(t, nil, nil)
		s.WebcamIndex = 2
		var got []int
		s.openDevice = func(i int) (video.Source, error) {
			got = append(got, i)
			return &fakeSource{}, nil
		}

		_, err := s.Open(context.Background(), model.SessionRequest{Source: model.SourceWebcam})
		require.NoError(t, err)
		opened, err := s.Open(context.Background(), model.SessionRequest{Source: model.SourceWebcam, Target: "1"})
		require.NoError(t, err)
		assert.Equal(t, "Webcam 1", opened.Title)
		assert.Equal(t, []int{2, 1}, got)

		_, err = s.Open(context.Background(), model.SessionRequest{Source: model.SourceWebcam, Target: "cam"})
		assert.Error(t, err)
	})

	t.Run("should describe rtsp before opening it", func(t *testing.T) {
		s := newTestSources(t, nil, nil)
		described := false
		s.describeRTSP = func(_ context.Context, url string, timeout time.Duration) (*video.RTSPInfo, error) {
			described = true
			return &video.RTSPInfo{URL: url, Medias: 1, Video: true, Codecs: []string{"H264"}}, nil
		}
		_, err := s.Open(context.Background(), model.SessionRequest{Source: model.SourceRTSP, Target: "rtsp://cam/1"})
		require.NoError(t, err)
		assert.True(t, described)

		s.describeRTSP = func(context.Context, string, time.Duration) (*video.RTSPInfo, error) {
			return nil, video.ErrNoVideoTrack
		}
		_, err = s.Open(context.Background(), model.SessionRequest{Source: model.SourceRTSP, Target: "rtsp://cam/1"})
		assert.ErrorIs(t, err, video.ErrNoVideoTrack)
	})

	t.Run("should refuse image sources", func(t *testing.T) {
		s := newTestSources(t, nil, nil)
		_, err := s.Open(context.Background(), model.SessionRequest{Source: model.SourceImage})
		assert.ErrorIs(t, err, ErrImageSource)
	})
}

func TestSourceCategory(t *testing.T) {
	c, hints := sourceCategory(model.SourceStored, errBoom)
	assert.Empty(t, c)
	assert.Nil(t, hints)

	c, hints = sourceCategory(model.SourceRTSP, context.DeadlineExceeded)
	assert.Equal(t, string(youtube.CategoryNetwork), c)
	assert.NotEmpty(t, hints)
}
