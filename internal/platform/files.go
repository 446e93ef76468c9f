package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Upload name limits
const (
	MaxFileNameLength = 120
	FallbackFileName  = "video"
)

// File extensions to skip
var (
	SkippedExtensions = []string{".part", ".ytdl", ".tmp"}
)

// Video file extensions offered as stored sources
var (
	VideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".webm"}
)

// Image file extensions accepted by the image endpoint
var (
	ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}
)

// ErrNoFile is returned when a directory holds no usable file
var ErrNoFile = errors.New("no usable file found")

// VideoFile describes a video on disk
type VideoFile struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// CreateDirectoryIfNotExists creates a directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// IsPartialDownload reports leftovers of an interrupted download
func IsPartialDownload(name string) bool {
	return hasExtension(name, SkippedExtensions)
}

// IsVideoFile reports whether the name has a known video extension
func IsVideoFile(name string) bool {
	return !IsPartialDownload(name) && hasExtension(name, VideoExtensions)
}

// IsImageFile reports whether the name has a known image extension
func IsImageFile(name string) bool {
	return hasExtension(name, ImageExtensions)
}

// ListVideos returns the video files of dir sorted by name; a missing dir is empty
func ListVideos(dir string) ([]VideoFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var videos []VideoFile
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !IsVideoFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		videos = append(videos, VideoFile{
			Name:    e.Name(),
			Path:    filepath.Join(dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(videos, func(i, j int) bool { return videos[i].Name < videos[j].Name })
	return videos, nil
}

// FindLargestFile returns the biggest complete file in dir
func FindLargestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var best string
	var bestSize int64 = -1
	for _, e := range entries {
		if e.IsDir() || IsPartialDownload(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best, bestSize = filepath.Join(dir, e.Name()), info.Size()
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w in %s", ErrNoFile, dir)
	}
	return best, nil
}

// SanitizeFileName keeps the base name of an upload and replaces characters
// that are unsafe in paths
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(name))
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	stem = strings.Trim(b.String(), "._")
	if stem == "" {
		stem = FallbackFileName
	}
	if len(stem) > MaxFileNameLength {
		stem = stem[:MaxFileNameLength]
	}
	return stem + ext
}

// UniquePath returns dir/name, adding a numeric suffix while the path exists
func UniquePath(dir, name string) string {
	path := filepath.Join(dir, name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
	}
}

func hasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
