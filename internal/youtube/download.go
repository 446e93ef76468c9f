package youtube

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ytget/yolo-vision/internal/platform"
)

// Download defaults
const (
	DefaultDownloadTimeout = 10 * time.Minute
	DownloadMaxRetries     = 1
	DownloadRetryBackoff   = 2 * time.Second
	ProgressInterval       = 2 * time.Second
	TempDirPattern         = "yolo-vision-yt-*"
	OutputTemplate         = "%(id)s.%(ext)s"
)

// Fetcher downloads one format of a video into dir
type Fetcher interface {
	Fetch(ctx context.Context, url, format, dir string) error
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, url, format, dir string) error

// Fetch implements Fetcher
func (f FetcherFunc) Fetch(ctx context.Context, url, format, dir string) error {
	return f(ctx, url, format, dir)
}

// YTDLPFetcher downloads with yt-dlp
type YTDLPFetcher struct {
	executable string
	logger     *zap.Logger
}

// NewYTDLPFetcher creates a fetcher; an empty path uses yt-dlp from PATH
func NewYTDLPFetcher(executable string, logger *zap.Logger) *YTDLPFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YTDLPFetcher{executable: executable, logger: logger}
}

// Fetch implements Fetcher
func (f *YTDLPFetcher) Fetch(ctx context.Context, url, format, dir string) error {
	dl := ytdlp.New().
		Format(format).
		NoPlaylist().
		ForceOverwrites().
		RestrictFilenames().
		Output(filepath.Join(dir, OutputTemplate))
	if f.executable != "" {
		dl.SetExecutable(f.executable)
	}

	dl.ProgressFunc(ProgressInterval, func(update ytdlp.ProgressUpdate) {
		if update.TotalBytes > 0 {
			f.logger.Debug("download progress",
				zap.String("url", url),
				zap.Int("downloaded", update.DownloadedBytes),
				zap.Int("total", update.TotalBytes))
		}
	})

	res, err := dl.Run(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if res != nil && res.Stderr != "" {
			return fmt.Errorf("%w: %s", ErrExtraction, lastLine(res.Stderr))
		}
		return fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return nil
}

// TempFile is a downloaded video living in its own temporary directory
type TempFile struct {
	Path   string
	Format string

	dir       string
	closeOnce sync.Once
	closeErr  error
}

// Close removes the temporary directory; calling it again is a no-op
func (t *TempFile) Close() error {
	if t == nil {
		return nil
	}
	t.closeOnce.Do(func() {
		t.closeErr = os.RemoveAll(t.dir)
	})
	return t.closeErr
}

// Downloader fetches a video to a temp file through the format chain
type Downloader struct {
	fetcher Fetcher
	formats []Format
	baseDir string
	timeout time.Duration
	backoff time.Duration
	logger  *zap.Logger
}

// NewDownloader creates a downloader; an empty baseDir uses the OS temp dir
func NewDownloader(fetcher Fetcher, baseDir string, maxHeight int, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		fetcher: fetcher,
		formats: FormatChain(maxHeight),
		baseDir: baseDir,
		timeout: DefaultDownloadTimeout,
		backoff: DownloadRetryBackoff,
		logger:  logger,
	}
}

// SetTimeout bounds a whole download run
func (d *Downloader) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.timeout = timeout
	}
}

// Download stores the first format that succeeds in a fresh temp directory.
// The directory is removed on every failure path; on success the caller owns
// it through TempFile.Close.
func (d *Downloader) Download(ctx context.Context, rawURL string) (tf *TempFile, err error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, &ResolveError{URL: rawURL, Category: CategoryInvalidURL, Cause: err}
	}
	if d.baseDir != "" {
		if err := platform.CreateDirectoryIfNotExists(d.baseDir); err != nil {
			return nil, fmt.Errorf("failed to create temp base dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(d.baseDir, TempDirPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if tf == nil {
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				d.logger.Warn("failed to remove temp dir", zap.String("dir", dir), zap.Error(rmErr))
			}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	canonical := CanonicalURL(rawURL)
	var attempts []Attempt
	for _, f := range d.formats {
		if ctx.Err() != nil {
			break
		}

		err := d.fetchWithRetry(ctx, canonical, f, dir)
		if err == nil {
			path, findErr := platform.FindLargestFile(dir)
			if findErr == nil {
				d.logger.Info("video downloaded to temp file",
					zap.String("url", canonical),
					zap.String("format", f.Name),
					zap.String("path", path))
				return &TempFile{Path: path, Format: f.Name, dir: dir}, nil
			}
			err = findErr
		}

		attempts = append(attempts, Attempt{Format: f.Name, Err: err})
		d.logger.Info("download attempt failed", zap.String("format", f.Name), zap.Error(err))
		if cleanErr := clearDir(dir); cleanErr != nil {
			return nil, fmt.Errorf("failed to reset temp dir: %w", cleanErr)
		}
	}

	var cause error
	if ctx.Err() != nil {
		cause = ctx.Err()
	}
	return nil, newResolveError(rawURL, attempts, cause)
}

// fetchWithRetry retries a network failure once after a fixed backoff
func (d *Downloader) fetchWithRetry(ctx context.Context, url string, f Format, dir string) error {
	var lastErr error
	for attempt := 0; attempt <= DownloadMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(d.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			d.logger.Info("retrying download", zap.String("format", f.Name), zap.Int("attempt", attempt+1))
		}

		err := d.fetcher.Fetch(ctx, url, f.Spec, dir)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if Classify(err) != CategoryNetwork {
			return err
		}
	}
	return lastErr
}

// clearDir removes everything inside dir but keeps dir itself
func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var errs error
	for _, e := range entries {
		errs = multierr.Append(errs, os.RemoveAll(filepath.Join(dir, e.Name())))
	}
	return errs
}
