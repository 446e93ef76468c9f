package model

// SessionStatus represents the status of a detection session
type SessionStatus string

const (
	// StatusPending means the session is queued but not started
	StatusPending SessionStatus = "Pending"

	// StatusStarting means the source is being opened (or resolved)
	StatusStarting SessionStatus = "Starting"

	// StatusStreaming means frames are being decoded and annotated
	StatusStreaming SessionStatus = "Streaming"

	// StatusStopping means the session is in the process of stopping
	StatusStopping SessionStatus = "Stopping"

	// StatusStopped means the session was stopped by user
	StatusStopped SessionStatus = "Stopped"

	// StatusCompleted means the source reached its end
	StatusCompleted SessionStatus = "Completed"

	// StatusError means the session failed with an error
	StatusError SessionStatus = "Error"
)

// String returns the string representation of SessionStatus
func (s SessionStatus) String() string {
	return string(s)
}

// IsActive returns true if the session is in an active state
func (s SessionStatus) IsActive() bool {
	return s == StatusStarting || s == StatusStreaming || s == StatusStopping
}

// IsFinished returns true if the session is in a finished state (completed, stopped, or error)
func (s SessionStatus) IsFinished() bool {
	return s == StatusCompleted || s == StatusStopped || s == StatusError
}
