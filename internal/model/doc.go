package model

// Package model defines domain data structures used across the app: detection
// sessions and their sources, per-frame detections, and YouTube playlists.
// Structures are serialized directly by the web layer and carry explicit
// state transitions.
