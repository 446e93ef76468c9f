package youtube

import (
	"errors"
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"should accept watch URL", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", false},
		{"should accept watch URL without scheme", "youtube.com/watch?v=dQw4w9WgXcQ", false},
		{"should accept watch URL with playlist", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL123", false},
		{"should accept short URL", "https://youtu.be/dQw4w9WgXcQ", false},
		{"should accept mobile URL", "https://m.youtube.com/watch?v=dQw4w9WgXcQ", false},
		{"should reject empty URL", "", true},
		{"should reject blank URL", "   ", true},
		{"should reject other hosts", "https://vimeo.com/12345", true},
		{"should reject channel pages", "https://www.youtube.com/@someone", true},
		{"should reject watch URL without id", "https://www.youtube.com/watch?x=1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidURL) {
				t.Errorf("expected ErrInvalidURL, got %v", err)
			}
		})
	}
}

func TestVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=abc123", "abc123"},
		{"https://youtube.com/watch?feature=share&v=abc123", "abc123"},
		{"https://youtu.be/abc123?t=42", "abc123"},
		{"youtu.be/abc123", "abc123"},
		{"https://example.com/watch?v=abc123", ""},
		{"not a url", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := VideoID(tt.url); got != tt.want {
				t.Errorf("VideoID(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestCanonicalURL(t *testing.T) {
	if got := CanonicalURL("https://youtu.be/abc123?t=3"); got != "https://www.youtube.com/watch?v=abc123" {
		t.Errorf("unexpected canonical URL: %s", got)
	}
}

func TestFormatChain(t *testing.T) {
	chain := FormatChain(0)
	want := []string{
		"best[ext=mp4][height<=720]",
		"best[height<=720]",
		"bestvideo[height<=720]+bestaudio/bestvideo+bestaudio",
		"best",
	}
	if len(chain) != len(want) {
		t.Fatalf("expected %d formats, got %d", len(want), len(chain))
	}
	for i, f := range chain {
		if f.Spec != want[i] {
			t.Errorf("format %d = %q, want %q", i, f.Spec, want[i])
		}
	}

	if got := FormatChain(480)[0].Spec; got != "best[ext=mp4][height<=480]" {
		t.Errorf("expected height cap 480, got %q", got)
	}
}
