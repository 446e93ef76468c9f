package model

import "testing"

func TestSessionStatus_IsActive(t *testing.T) {
	tests := []struct {
		status   SessionStatus
		expected bool
	}{
		{StatusPending, false},
		{StatusStarting, true},
		{StatusStreaming, true},
		{StatusStopping, true},
		{StatusStopped, false},
		{StatusCompleted, false},
		{StatusError, false},
	}

	for _, test := range tests {
		result := test.status.IsActive()
		if result != test.expected {
			t.Errorf("SessionStatus(%s).IsActive() = %v, expected %v", test.status, result, test.expected)
		}
	}
}

func TestSessionStatus_IsFinished(t *testing.T) {
	tests := []struct {
		status   SessionStatus
		expected bool
	}{
		{StatusPending, false},
		{StatusStarting, false},
		{StatusStreaming, false},
		{StatusStopping, false},
		{StatusStopped, true},
		{StatusCompleted, true},
		{StatusError, true},
	}

	for _, test := range tests {
		result := test.status.IsFinished()
		if result != test.expected {
			t.Errorf("SessionStatus(%s).IsFinished() = %v, expected %v", test.status, result, test.expected)
		}
	}
}

func TestSessionStatus_String(t *testing.T) {
	status := StatusStreaming
	expected := "Streaming"
	result := status.String()

	if result != expected {
		t.Errorf("SessionStatus.String() = %s, expected %s", result, expected)
	}
}

func TestPreviewStatus(t *testing.T) {
	tests := []struct {
		status   PreviewStatus
		active   bool
		finished bool
	}{
		{PreviewPending, true, false},
		{PreviewTranscoding, true, false},
		{PreviewStopping, true, false},
		{PreviewStopped, false, true},
		{PreviewReady, false, true},
		{PreviewError, false, true},
	}

	for _, test := range tests {
		if got := test.status.IsActive(); got != test.active {
			t.Errorf("PreviewStatus(%s).IsActive() = %v, expected %v", test.status, got, test.active)
		}
		if got := test.status.IsFinished(); got != test.finished {
			t.Errorf("PreviewStatus(%s).IsFinished() = %v, expected %v", test.status, got, test.finished)
		}
	}
}
