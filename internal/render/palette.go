package render

import "image/color"

// palette is the per-class colour cycle, BGR order is handled by gocv
var palette = []color.RGBA{
	{R: 0xff, G: 0x38, B: 0x38, A: 0xff},
	{R: 0xff, G: 0x9d, B: 0x97, A: 0xff},
	{R: 0xff, G: 0x70, B: 0x1f, A: 0xff},
	{R: 0xff, G: 0xb2, B: 0x1d, A: 0xff},
	{R: 0xcf, G: 0xd2, B: 0x31, A: 0xff},
	{R: 0x48, G: 0xf9, B: 0x0a, A: 0xff},
	{R: 0x92, G: 0xcc, B: 0x17, A: 0xff},
	{R: 0x3d, G: 0xdb, B: 0x86, A: 0xff},
	{R: 0x1a, G: 0x93, B: 0x34, A: 0xff},
	{R: 0x00, G: 0xd4, B: 0xbb, A: 0xff},
	{R: 0x2c, G: 0x99, B: 0xa8, A: 0xff},
	{R: 0x00, G: 0xc2, B: 0xff, A: 0xff},
	{R: 0x34, G: 0x45, B: 0x93, A: 0xff},
	{R: 0x64, G: 0x73, B: 0xff, A: 0xff},
	{R: 0x00, G: 0x18, B: 0xec, A: 0xff},
	{R: 0x84, G: 0x38, B: 0xff, A: 0xff},
	{R: 0x52, G: 0x00, B: 0x85, A: 0xff},
	{R: 0xcb, G: 0x38, B: 0xff, A: 0xff},
	{R: 0xff, G: 0x95, B: 0xc8, A: 0xff},
	{R: 0xff, G: 0x37, B: 0xc7, A: 0xff},
}

// ColorFor returns the colour used for a class, or for a track when trackID > 0
func ColorFor(classID, trackID int) color.RGBA {
	idx := classID
	if trackID > 0 {
		idx = trackID
	}
	if idx < 0 {
		idx = -idx
	}
	return palette[idx%len(palette)]
}
