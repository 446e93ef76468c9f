package video

// Package video opens the frame sources a detection session reads from:
// files, webcams and network URLs through OpenCV's VideoCapture, HTTPS
// streams through an ffmpeg raw-frame pipe, and RTSP endpoints which are
// checked with an RTSP DESCRIBE before capture starts.
