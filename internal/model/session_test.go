package model

import (
	"image"
	"testing"
	"time"
)

func TestParseSourceKind(t *testing.T) {
	tests := []struct {
		input   string
		want    SourceKind
		wantErr bool
	}{
		{"youtube", SourceYouTube, false},
		{" RTSP ", SourceRTSP, false},
		{"webcam", SourceWebcam, false},
		{"stored", SourceStored, false},
		{"ftp", "", true},
		{"", "", true},
	}

	for _, test := range tests {
		got, err := ParseSourceKind(test.input)
		if (err != nil) != test.wantErr {
			t.Errorf("ParseSourceKind(%q) error = %v, wantErr %v", test.input, err, test.wantErr)
		}
		if got != test.want {
			t.Errorf("ParseSourceKind(%q) = %s, expected %s", test.input, got, test.want)
		}
	}
}

func TestParseTrackerType(t *testing.T) {
	tests := []struct {
		input   string
		want    TrackerType
		wantErr bool
	}{
		{"", TrackerNone, false},
		{"bytetrack.yaml", TrackerByteTrack, false},
		{"botsort", TrackerBoTSORT, false},
		{"deepsort.yaml", "", true},
	}

	for _, test := range tests {
		got, err := ParseTrackerType(test.input)
		if (err != nil) != test.wantErr {
			t.Errorf("ParseTrackerType(%q) error = %v, wantErr %v", test.input, err, test.wantErr)
		}
		if got != test.want {
			t.Errorf("ParseTrackerType(%q) = %q, expected %q", test.input, got, test.want)
		}
	}
}

func TestParseModelTask_DefaultsToDetect(t *testing.T) {
	task, err := ParseModelTask("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task != TaskDetect {
		t.Errorf("expected %s, got %s", TaskDetect, task)
	}
	if _, err := ParseModelTask("pose"); err == nil {
		t.Error("expected error for unsupported task")
	}
}

func TestSession_GetDisplayTitle(t *testing.T) {
	tests := []struct {
		session  Session
		expected string
	}{
		{Session{Title: "Traffic cam", Source: SourceYouTube, Target: "https://youtu.be/abc"}, "Traffic cam"},
		{Session{Source: SourceYouTube, Target: "https://youtu.be/abc"}, "https://youtu.be/abc"},
		{Session{Source: SourceStored, Target: "videos/video_1.mp4"}, "video_1"},
		{Session{Source: SourceVideo, Target: `C:\clips\beach.avi`}, "beach"},
		{Session{Source: SourceWebcam, Target: "0"}, "Webcam 0"},
	}

	for _, test := range tests {
		result := test.session.GetDisplayTitle()
		if result != test.expected {
			t.Errorf("GetDisplayTitle() = %s, expected %s", result, test.expected)
		}
	}
}

func TestSession_GetElapsedString(t *testing.T) {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		finished time.Time
		expected string
	}{
		{start.Add(30 * time.Second), "00:30"},
		{start.Add(90 * time.Second), "01:30"},
		{start.Add(3661 * time.Second), "01:01:01"},
	}

	for _, test := range tests {
		s := &Session{StartedAt: start, FinishedAt: test.finished}
		if got := s.GetElapsedString(time.Now()); got != test.expected {
			t.Errorf("GetElapsedString() = %s, expected %s", got, test.expected)
		}
	}

	empty := &Session{}
	if got := empty.GetElapsedString(time.Now()); got != "—" {
		t.Errorf("expected placeholder for unstarted session, got %s", got)
	}
}

func TestSession_CloneCopiesHints(t *testing.T) {
	s := &Session{ID: "session-1", Hints: []string{"try again"}}
	c := s.Clone()
	c.Hints[0] = "changed"

	if s.Hints[0] != "try again" {
		t.Error("Clone should not share the hints slice")
	}
}

func TestMask_At(t *testing.T) {
	m := &Mask{
		Rect: image.Rect(10, 10, 12, 12),
		Data: []byte{255, 0, 0, 255},
	}

	if !m.At(10, 10) || !m.At(11, 11) {
		t.Error("expected mask to cover diagonal pixels")
	}
	if m.At(11, 10) || m.At(9, 9) || m.At(12, 12) {
		t.Error("expected mask to not cover off-diagonal or outside pixels")
	}

	var nilMask *Mask
	if nilMask.At(0, 0) {
		t.Error("nil mask must cover nothing")
	}
}
