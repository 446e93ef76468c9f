package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateDirectoryIfNotExists(t *testing.T) {
	tempDir := t.TempDir()
	testDir := filepath.Join(tempDir, "test_dir")

	if _, err := os.Stat(testDir); !os.IsNotExist(err) {
		t.Fatalf("Test directory already exists: %s", testDir)
	}

	if err := CreateDirectoryIfNotExists(testDir); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if _, err := os.Stat(testDir); os.IsNotExist(err) {
		t.Fatalf("Directory was not created: %s", testDir)
	}

	// Second call should not fail
	if err := CreateDirectoryIfNotExists(testDir); err != nil {
		t.Fatalf("Failed to handle existing directory: %v", err)
	}
}

func TestIsVideoFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"clip.mp4", true},
		{"CLIP.MKV", true},
		{"clip.webm", true},
		{"clip.mp4.part", false},
		{"clip.ytdl", false},
		{"notes.txt", false},
		{"photo.jpg", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsVideoFile(tt.name); got != tt.want {
				t.Errorf("IsVideoFile(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func writeFile(t *testing.T, dir, name string, size int) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestListVideos(t *testing.T) {
	t.Run("should list only complete videos sorted by name", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "b.mp4", 10)
		writeFile(t, dir, "a.avi", 10)
		writeFile(t, dir, "c.mp4.part", 10)
		writeFile(t, dir, ".hidden.mp4", 10)
		writeFile(t, dir, "readme.md", 10)
		if err := os.Mkdir(filepath.Join(dir, "sub.mp4"), 0755); err != nil {
			t.Fatal(err)
		}

		videos, err := ListVideos(dir)
		if err != nil {
			t.Fatalf("ListVideos: %v", err)
		}
		if len(videos) != 2 {
			t.Fatalf("expected 2 videos, got %d", len(videos))
		}
		if videos[0].Name != "a.avi" || videos[1].Name != "b.mp4" {
			t.Errorf("unexpected order: %s, %s", videos[0].Name, videos[1].Name)
		}
		if videos[1].Size != 10 {
			t.Errorf("expected size 10, got %d", videos[1].Size)
		}
	})

	t.Run("should treat missing directory as empty", func(t *testing.T) {
		videos, err := ListVideos(filepath.Join(t.TempDir(), "missing"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(videos) != 0 {
			t.Errorf("expected no videos, got %d", len(videos))
		}
	})
}

func TestFindLargestFile(t *testing.T) {
	t.Run("should skip partial downloads", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "video.f137.mp4.part", 500)
		writeFile(t, dir, "video.mp4", 100)
		writeFile(t, dir, "video.info", 5)

		got, err := FindLargestFile(dir)
		if err != nil {
			t.Fatalf("FindLargestFile: %v", err)
		}
		if filepath.Base(got) != "video.mp4" {
			t.Errorf("expected video.mp4, got %s", got)
		}
	})

	t.Run("should fail on empty directory", func(t *testing.T) {
		if _, err := FindLargestFile(t.TempDir()); err == nil {
			t.Error("expected error for empty directory")
		}
	})
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"clip.mp4", "clip.mp4"},
		{"../../etc/passwd.MP4", "passwd.mp4"},
		{"my holiday (1).mov", "my_holiday_1.mov"},
		{"C:\\Users\\me\\cam.avi", "cam.avi"},
		{"???.mp4", "video.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeFileName(tt.in); got != tt.want {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	if got := UniquePath(dir, "a.mp4"); got != filepath.Join(dir, "a.mp4") {
		t.Errorf("unexpected path for free name: %s", got)
	}
	writeFile(t, dir, "a.mp4", 1)
	writeFile(t, dir, "a_1.mp4", 1)
	if got := UniquePath(dir, "a.mp4"); got != filepath.Join(dir, "a_2.mp4") {
		t.Errorf("expected a_2.mp4, got %s", got)
	}
}
