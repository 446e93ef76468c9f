package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ytget/yolo-vision/internal/model"
)

type fakeTranscoder struct {
	duration float64
	block    bool
	fail     error
}

func (f *fakeTranscoder) Duration(ctx context.Context, path string) (float64, error) {
	if f.duration <= 0 {
		return 0, errors.New("no duration")
	}
	return f.duration, nil
}

func (f *fakeTranscoder) Transcode(ctx context.Context, in, out string, progress io.Writer) error {
	fmt.Fprintf(progress, "frame=10\nout_time_us=%d\nprogress=continue\n", int64(f.duration*0.5*1e6))
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.fail != nil {
		fmt.Fprintln(progress, "Invalid data found when processing input")
		return f.fail
	}
	fmt.Fprintf(progress, "out_time_us=%d\nprogress=end\n", int64(f.duration*1e6))
	return os.WriteFile(out, []byte("mp4"), 0o644)
}

func writeInput(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("video"), 0o644))
	return path
}

func waitFinished(t *testing.T, s *Service, id string) *model.PreviewTask {
	t.Helper()
	var task *model.PreviewTask
	require.Eventually(t, func() bool {
		var ok bool
		task, ok = s.Get(id)
		return ok && task.Status.IsFinished()
	}, 3*time.Second, 10*time.Millisecond)
	return task
}

func TestService_Start(t *testing.T) {
	t.Run("should produce a ready preview", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), DirName)
		s := NewService(&fakeTranscoder{duration: 10}, out, zaptest.NewLogger(t))

		var mu sync.Mutex
		var percents []int
		s.SetUpdateCallback(func(task *model.PreviewTask) {
			mu.Lock()
			percents = append(percents, task.Percent)
			mu.Unlock()
		})

		task, err := s.Start(writeInput(t, "clip.avi"))
		require.NoError(t, err)
		assert.Equal(t, "clip.avi", task.Name)
		assert.True(t, strings.HasPrefix(task.ID, TaskIDPrefix))

		done := waitFinished(t, s, task.ID)
		assert.Equal(t, model.PreviewReady, done.Status)
		assert.Equal(t, 100, done.Percent)
		assert.InDelta(t, 10.0, done.Duration, 1e-9)

		path, err := s.Path("clip.avi")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(out, "clip.mp4"), path)

		mu.Lock()
		assert.Contains(t, percents, 50)
		mu.Unlock()
	})

	t.Run("should reject a missing input", func(t *testing.T) {
		s := NewService(&fakeTranscoder{duration: 10}, t.TempDir(), nil)
		_, err := s.Start("/path/to/nonexistent/file.mp4")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist")
	})

	t.Run("should reject a second active transcode of the same file", func(t *testing.T) {
		s := NewService(&fakeTranscoder{duration: 10, block: true}, t.TempDir(), nil)
		in := writeInput(t, "clip.mp4")

		task, err := s.Start(in)
		require.NoError(t, err)
		_, err = s.Start(in)
		assert.Error(t, err)

		require.NoError(t, s.Stop(task.ID))
		waitFinished(t, s, task.ID)
	})

	t.Run("should record ffmpeg failures", func(t *testing.T) {
		s := NewService(&fakeTranscoder{duration: 10, fail: errors.New("exit status 1")}, t.TempDir(), nil)
		task, err := s.Start(writeInput(t, "bad.mp4"))
		require.NoError(t, err)

		done := waitFinished(t, s, task.ID)
		assert.Equal(t, model.PreviewError, done.Status)
		assert.Contains(t, done.LastError, "Invalid data found")

		_, err = s.Path("bad.mp4")
		assert.ErrorIs(t, err, ErrNoPreview)
	})

	t.Run("should fail without a duration", func(t *testing.T) {
		s := NewService(&fakeTranscoder{}, t.TempDir(), nil)
		task, err := s.Start(writeInput(t, "empty.mp4"))
		require.NoError(t, err)
		assert.Equal(t, model.PreviewError, waitFinished(t, s, task.ID).Status)
	})
}

func TestService_Stop(t *testing.T) {
	s := NewService(&fakeTranscoder{duration: 10, block: true}, t.TempDir(), nil)

	assert.Error(t, s.Stop("preview-missing"))

	task, err := s.Start(writeInput(t, "long.mp4"))
	require.NoError(t, err)
	require.NoError(t, s.Stop(task.ID))

	done := waitFinished(t, s, task.ID)
	assert.Equal(t, model.PreviewStopped, done.Status)
	assert.Error(t, s.Stop(task.ID), "finished task cannot be stopped")

	_, err = s.Path("long.mp4")
	assert.ErrorIs(t, err, ErrNoPreview)
	assert.Len(t, s.List(), 1)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{"string value", `{"format":{"duration":"12.480000"}}`, 12.48, false},
		{"numeric value", `{"format":{"duration":3.5}}`, 3.5, false},
		{"missing", `{"format":{}}`, 0, true},
		{"not json", `oops`, 0, true},
		{"zero", `{"format":{"duration":"0"}}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDuration(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestProgressWriter(t *testing.T) {
	var times []float64
	w := newProgressWriter(func(s float64) { times = append(times, s) })

	// lines split across writes
	fmt.Fprint(w, "out_time_us=1500")
	fmt.Fprint(w, "000\nspeed=2x\nout_time_us=N/A\n")
	fmt.Fprint(w, "Conversion failed!\nprogress=end\n")

	assert.Equal(t, []float64{1.5}, times)
	assert.Equal(t, "Conversion failed!", w.LastLine())
}

func TestOutputArgs(t *testing.T) {
	args := OutputArgs()
	assert.Equal(t, VideoCodec, args["c:v"])
	assert.Equal(t, FastStartFlag, args["movflags"])
	assert.Equal(t, ProgressPipeTarget, args["progress"])
}
