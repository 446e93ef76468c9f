package video

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ytget/yolo-vision/internal/platform"
)

// ListStored returns the demo videos available in dir
func ListStored(dir string) ([]platform.VideoFile, error) {
	return platform.ListVideos(dir)
}

// ResolveStored maps a stored video name to its path inside dir, refusing
// names that escape dir
func ResolveStored(dir, name string) (string, error) {
	clean := filepath.Base(filepath.Clean("/" + name))
	if clean == "/" || clean == "." || clean != strings.TrimPrefix(filepath.Clean("/"+name), "/") {
		return "", fmt.Errorf("invalid video name %q", name)
	}
	if !platform.IsVideoFile(clean) {
		return "", fmt.Errorf("unsupported video file %q", name)
	}
	return filepath.Join(dir, clean), nil
}
