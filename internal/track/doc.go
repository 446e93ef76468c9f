// Package track assigns persistent IDs to detections across frames. The
// association itself runs in ultralytics' BYTETracker or BOTSORT inside a
// Python worker process; this package maps the presets onto their configs,
// feeds the worker one frame at a time and writes the returned IDs back onto
// the detections.
package track
