package youtube

// Package youtube turns a YouTube watch URL into something the frame decoder
// can open. It walks an ordered chain of yt-dlp format strings (via
// github.com/lrstanley/go-ytdlp) under a bounded timeout, narrows HLS master
// playlists to a variant the detector can keep up with, caches resolved URLs,
// and falls back to downloading into a temporary file that is removed on every
// exit path. Failures are reported as a ResolveError carrying one of a small
// set of categories the UI turns into hints.
