// Package session runs detection sessions: it opens a frame source, runs the detector
// (and optionally a tracker) on every frame and publishes annotated JPEGs as an MJPEG stream.
package session
