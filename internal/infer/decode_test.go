package infer

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLetterbox(t *testing.T) {
	lb := newLetterbox(720, 405, 640)
	assert.InDelta(t, 640.0/720.0, lb.Scale, 1e-9)
	assert.Equal(t, 640, lb.NewW)
	assert.Equal(t, 360, lb.NewH)
	assert.Equal(t, 0, lb.PadX)
	assert.Equal(t, 140, lb.PadY)

	t.Run("should map input boxes back to the frame", func(t *testing.T) {
		// a box covering the whole content area maps to the whole frame
		r := lb.toFrame(0, 140, 640, 500)
		assert.Equal(t, image.Rect(0, 0, 720, 405), r)
	})

	t.Run("should clip boxes in the padding", func(t *testing.T) {
		r := lb.toFrame(-20, 0, 100, 200)
		assert.Equal(t, 0, r.Min.X)
		assert.Equal(t, 0, r.Min.Y)
	})
}

// tensor builds a channel-major [channels, n] buffer from per-column values
func tensor(columns [][]float32) (data []float32, channels, n int) {
	n = len(columns)
	channels = len(columns[0])
	data = make([]float32, channels*n)
	for i, col := range columns {
		for c, v := range col {
			data[c*n+i] = v
		}
	}
	return data, channels, n
}

func TestDecodeOutput(t *testing.T) {
	// cx, cy, w, h, score class0, score class1, score class2
	data, channels, n := tensor([][]float32{
		{100, 100, 50, 40, 0.1, 0.9, 0.2},
		{300, 300, 20, 20, 0.3, 0.1, 0.2},
		{400, 200, 10, 60, 0.05, 0.1, 0.6},
	})

	t.Run("should keep the best class above confidence", func(t *testing.T) {
		cands := decodeOutput(data, channels, n, 0, Options{Confidence: 0.5})
		require.Len(t, cands, 2)
		assert.Equal(t, 1, cands[0].ClassID)
		assert.InDelta(t, 0.9, cands[0].Score, 1e-6)
		assert.Equal(t, [4]float32{75, 80, 125, 120}, cands[0].Box)
		assert.Equal(t, 2, cands[1].ClassID)
		assert.Nil(t, cands[0].Coeffs)
	})

	t.Run("should filter by class", func(t *testing.T) {
		cands := decodeOutput(data, channels, n, 0, Options{Confidence: 0.2, Classes: []int{0}})
		require.Len(t, cands, 1)
		assert.Equal(t, 0, cands[0].ClassID)
		assert.Equal(t, [4]float32{290, 290, 310, 310}, cands[0].Box)
	})

	t.Run("should read mask coefficients after the class scores", func(t *testing.T) {
		data, channels, n := tensor([][]float32{
			{10, 10, 4, 4, 0.8, 0.1, 1.5, -2},
		})
		cands := decodeOutput(data, channels, n, 2, Options{Confidence: 0.5})
		require.Len(t, cands, 1)
		assert.Equal(t, 0, cands[0].ClassID)
		assert.Equal(t, []float32{1.5, -2}, cands[0].Coeffs)
	})

	t.Run("should reject short buffers", func(t *testing.T) {
		assert.Nil(t, decodeOutput(data[:5], channels, n, 0, Options{Confidence: 0.1}))
		assert.Nil(t, decodeOutput(data, 4, n, 0, Options{Confidence: 0.1}))
	})
}

func TestSuppress(t *testing.T) {
	cands := []candidate{
		{ClassID: 0, Score: 0.9, Box: [4]float32{10, 10, 110, 110}},
		{ClassID: 0, Score: 0.8, Box: [4]float32{12, 12, 112, 112}},
		{ClassID: 1, Score: 0.7, Box: [4]float32{12, 12, 112, 112}},
		{ClassID: 0, Score: 0.6, Box: [4]float32{300, 300, 350, 350}},
	}

	kept := suppress(cands, Options{Confidence: 0.25, IoU: 0.7})
	require.Len(t, kept, 3)
	assert.InDelta(t, 0.9, kept[0].Score, 1e-6)
	assert.Equal(t, 1, kept[1].ClassID)
	assert.InDelta(t, 0.6, kept[2].Score, 1e-6)
}

func TestToDetections(t *testing.T) {
	lb := newLetterbox(640, 640, 640)
	dets := toDetections([]candidate{
		{ClassID: 0, Score: 0.9, Box: [4]float32{10, 20, 30, 40}},
		{ClassID: 99, Score: 0.8, Box: [4]float32{700, 700, 800, 800}},
	}, lb, COCOLabels)

	require.Len(t, dets, 1)
	assert.Equal(t, "person", dets[0].Label)
	assert.Equal(t, image.Rect(10, 20, 30, 40), dets[0].Box)
}

func TestBuildMask(t *testing.T) {
	// 1 prototype of 4x4 covering a 640 input: left half positive, right half negative
	const ph, pw = 4, 4
	proto := make([]float32, ph*pw)
	for y := 0; y < ph; y++ {
		for x := 0; x < pw; x++ {
			if x < 2 {
				proto[y*pw+x] = 5
			} else {
				proto[y*pw+x] = -5
			}
		}
	}
	lb := newLetterbox(640, 640, 640)
	box := image.Rect(0, 0, 640, 640)

	m := buildMask(candidate{Coeffs: []float32{1}}, box, proto, ph, pw, lb)
	require.NotNil(t, m)
	assert.Equal(t, box, m.Rect)
	assert.True(t, m.At(10, 10))
	assert.True(t, m.At(319, 600))
	assert.False(t, m.At(321, 10))
	assert.False(t, m.At(639, 639))

	t.Run("should skip candidates without coefficients", func(t *testing.T) {
		assert.Nil(t, buildMask(candidate{}, box, proto, ph, pw, lb))
	})
}

func TestLoadLabels(t *testing.T) {
	t.Run("should default to coco", func(t *testing.T) {
		labels, err := LoadLabels("")
		require.NoError(t, err)
		assert.Len(t, labels, 80)
		assert.Equal(t, "toothbrush", labels[79])
	})

	t.Run("should read one label per line", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "labels.txt")
		require.NoError(t, os.WriteFile(path, []byte("cat\n\n dog \n"), 0644))
		labels, err := LoadLabels(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"cat", "dog"}, labels)
	})

	t.Run("should reject empty files", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "labels.txt")
		require.NoError(t, os.WriteFile(path, nil, 0644))
		_, err := LoadLabels(path)
		assert.Error(t, err)
	})

	assert.Equal(t, "class 120", labelFor(COCOLabels, 120))
}
