package platform

// Package platform contains filesystem glue shared by the video sources,
// the YouTube downloader and the upload handlers: directory creation, video
// file discovery that skips partial downloads, and upload name sanitising.
