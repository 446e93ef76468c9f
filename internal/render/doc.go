// Package render draws detections onto frames and encodes them as JPEG for the browser.
package render
