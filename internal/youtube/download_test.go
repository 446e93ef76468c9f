package youtube

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp directories must be removed")
}

func newTestDownloader(t *testing.T, f Fetcher) (*Downloader, string) {
	base := t.TempDir()
	d := NewDownloader(f, base, DefaultMaxHeight, zaptest.NewLogger(t))
	d.backoff = time.Millisecond
	return d, base
}

func TestDownloader_Download(t *testing.T) {
	chain := FormatChain(DefaultMaxHeight)

	t.Run("should keep the file until Close", func(t *testing.T) {
		var used []string
		d, base := newTestDownloader(t, FetcherFunc(func(_ context.Context, _, format, dir string) error {
			used = append(used, format)
			if format == chain[0].Spec {
				return fmt.Errorf("%w: Requested format is not available", ErrExtraction)
			}
			return os.WriteFile(filepath.Join(dir, "abc123.webm"), []byte("video"), 0644)
		}))

		tf, err := d.Download(context.Background(), testURL)
		require.NoError(t, err)
		assert.Equal(t, FormatMergedAny, tf.Format)
		assert.FileExists(t, tf.Path)
		assert.Equal(t, []string{chain[0].Spec, chain[1].Spec}, used)

		require.NoError(t, tf.Close())
		assert.NoFileExists(t, tf.Path)
		assertEmptyDir(t, base)
		assert.NoError(t, tf.Close())
	})

	t.Run("should remove the directory when every format fails", func(t *testing.T) {
		d, base := newTestDownloader(t, FetcherFunc(func(_ context.Context, _, _, dir string) error {
			_ = os.WriteFile(filepath.Join(dir, "abc123.mp4.part"), []byte("partial"), 0644)
			return fmt.Errorf("%w: Private video", ErrExtraction)
		}))

		tf, err := d.Download(context.Background(), testURL)
		assert.Nil(t, tf)
		var re *ResolveError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, CategoryExtraction, re.Category)
		assert.Len(t, re.Attempts, len(chain))
		assertEmptyDir(t, base)
	})

	t.Run("should retry network failures once", func(t *testing.T) {
		calls := 0
		d, _ := newTestDownloader(t, FetcherFunc(func(_ context.Context, _, _, dir string) error {
			calls++
			if calls == 1 {
				return fmt.Errorf("read: %w", syscall.ECONNRESET)
			}
			return os.WriteFile(filepath.Join(dir, "abc123.mp4"), []byte("video"), 0644)
		}))

		tf, err := d.Download(context.Background(), testURL)
		require.NoError(t, err)
		defer tf.Close()
		assert.Equal(t, 2, calls)
		assert.Equal(t, FormatMergedMP4, tf.Format)
	})

	t.Run("should treat a run without output as failed", func(t *testing.T) {
		d, base := newTestDownloader(t, FetcherFunc(func(context.Context, string, string, string) error {
			return nil
		}))

		_, err := d.Download(context.Background(), testURL)
		require.Error(t, err)
		assertEmptyDir(t, base)
	})

	t.Run("should clean up when the fetcher panics", func(t *testing.T) {
		d, base := newTestDownloader(t, FetcherFunc(func(_ context.Context, _, _, dir string) error {
			_ = os.WriteFile(filepath.Join(dir, "abc123.mp4"), []byte("video"), 0644)
			panic("boom")
		}))

		assert.Panics(t, func() {
			_, _ = d.Download(context.Background(), testURL)
		})
		assertEmptyDir(t, base)
	})

	t.Run("should reject invalid URLs before creating anything", func(t *testing.T) {
		d, base := newTestDownloader(t, FetcherFunc(func(context.Context, string, string, string) error {
			t.Fatal("fetcher must not be called")
			return nil
		}))

		_, err := d.Download(context.Background(), "https://example.com")
		assert.Equal(t, CategoryInvalidURL, Classify(err))
		assertEmptyDir(t, base)
	})
}

func TestTempFile_CloseNil(t *testing.T) {
	var tf *TempFile
	assert.NoError(t, tf.Close())
}
