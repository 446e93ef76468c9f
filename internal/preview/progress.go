package preview

import (
	"bytes"
	"strconv"
	"strings"
	"sync"
)

// Progress keys written by "ffmpeg -progress"
const (
	ProgressTimePrefix = "out_time_us="
	ProgressEndLine    = "progress=end"
)

// progressWriter parses ffmpeg progress lines and keeps the last other line for errors
type progressWriter struct {
	mu       sync.Mutex
	pending  []byte
	onTime   func(seconds float64)
	lastLine string
}

func newProgressWriter(onTime func(seconds float64)) *progressWriter {
	return &progressWriter{onTime: onTime}
}

// Write implements io.Writer
func (w *progressWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)
	for {
		idx := bytes.IndexByte(w.pending, '\n')
		if idx < 0 {
			break
		}
		w.handleLine(strings.TrimSpace(string(w.pending[:idx])))
		w.pending = w.pending[idx+1:]
	}
	return len(p), nil
}

func (w *progressWriter) handleLine(line string) {
	if line == "" {
		return
	}
	if strings.HasPrefix(line, ProgressTimePrefix) {
		us, err := strconv.ParseInt(strings.TrimPrefix(line, ProgressTimePrefix), 10, 64)
		if err != nil || us < 0 {
			return
		}
		if w.onTime != nil {
			w.onTime(float64(us) / 1e6)
		}
		return
	}
	// key=value lines are progress noise
	if strings.Contains(line, "=") && !strings.Contains(line, " ") {
		return
	}
	w.lastLine = line
}

// LastLine returns the last non-progress line ffmpeg printed
func (w *progressWriter) LastLine() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastLine
}
