// Package preview transcodes uploaded videos into H.264/AAC MP4 files the browser can play.
package preview
