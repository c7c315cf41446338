package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autonexit/FaceShield/internal/models"
)

func TestLetterboxLandscape(t *testing.T) {
	lb := newLetterbox(1280, 720, 640)

	assert.InDelta(t, 0.5, lb.scale, 1e-9)
	assert.Equal(t, 640, lb.width)
	assert.Equal(t, 360, lb.height)
	assert.Equal(t, 0, lb.padX)
	assert.Equal(t, 140, lb.padY)
}

func TestLetterboxRoundTrip(t *testing.T) {
	lb := newLetterbox(1920, 1080, 1280)

	// a 200x100 box at (100,50) in the frame
	s := lb.scale
	cx := (100+100)*s + float64(lb.padX)
	cy := (50+50)*s + float64(lb.padY)
	b := lb.toFrame(cx, cy, 200*s, 100*s)

	assert.InDelta(t, 100, b.X1, 1e-6)
	assert.InDelta(t, 50, b.Y1, 1e-6)
	assert.InDelta(t, 300, b.X2, 1e-6)
	assert.InDelta(t, 150, b.Y2, 1e-6)
}

func TestRoundImageSize(t *testing.T) {
	tests := map[int]int{1: 32, 32: 32, 33: 64, 640: 640, 1000: 1024, 1280: 1280}
	for in, want := range tests {
		assert.Equal(t, want, RoundImageSize(in), "size %d", in)
	}
	assert.Zero(t, RoundImageSize(0))
}

func TestAnchorCount(t *testing.T) {
	assert.Equal(t, 8400, anchorCount(640))
	assert.Equal(t, 33600, anchorCount(1280))
}

// head builds a channel-major [5, anchors] single class output.
func head(anchors [][5]float32) []float32 {
	n := len(anchors)
	out := make([]float32, 5*n)
	for a, v := range anchors {
		for c := 0; c < 5; c++ {
			out[c*n+a] = v[c]
		}
	}
	return out
}

func TestDecodeFiltersByScore(t *testing.T) {
	lb := newLetterbox(640, 640, 640)
	data := head([][5]float32{
		{100, 100, 40, 40, 0.9},
		{300, 300, 20, 20, 0.1},
		{500, 200, 60, 80, 0.5},
	})

	boxes, err := decode(data, 5, 3, lb, 0.2)
	require.NoError(t, err)
	require.Len(t, boxes, 2)
	assert.Equal(t, models.Box{X1: 80, Y1: 80, X2: 120, Y2: 120, Score: float64(float32(0.9))}, boxes[0])
	assert.InDelta(t, 470, boxes[1].X1, 1e-6)
	assert.InDelta(t, 240, boxes[1].Y2, 1e-6)
}

func TestDecodeTransposed(t *testing.T) {
	lb := newLetterbox(640, 640, 640)
	// [anchors, channels] with 6 anchors and 5 channels
	data := make([]float32, 6*5)
	copy(data[2*5:], []float32{320, 320, 100, 100, 0.8})

	boxes, err := decode(data, 6, 5, lb, 0.5)
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	assert.InDelta(t, 270, boxes[0].X1, 1e-6)
	assert.InDelta(t, 370, boxes[0].Y2, 1e-6)
}

func TestDecodeMultiClassUsesBestScore(t *testing.T) {
	lb := newLetterbox(640, 640, 640)
	// channel-major [6, 8]: box + two class scores, only anchor 0 set
	const anchors = 8
	data := make([]float32, 6*anchors)
	for c, v := range []float32{10, 10, 4, 4, 0.1, 0.7} {
		data[c*anchors] = v
	}

	boxes, err := decode(data, 6, anchors, lb, 0.5)
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	assert.InDelta(t, 0.7, boxes[0].Score, 1e-6)
}

func TestDecodeRejectsShortOutput(t *testing.T) {
	lb := newLetterbox(640, 640, 640)
	_, err := decode(make([]float32, 4), 5, 3, lb, 0.2)
	assert.Error(t, err)

	_, err = decode(make([]float32, 12), 4, 3, lb, 0.2)
	assert.Error(t, err)
}

func TestIoU(t *testing.T) {
	a := models.Box{X1: 0, Y1: 0, X2: 10, Y2: 10}
	assert.InDelta(t, 1.0, iou(a, a), 1e-9)
	assert.InDelta(t, 0.0, iou(a, models.Box{X1: 20, Y1: 20, X2: 30, Y2: 30}), 1e-9)
	assert.InDelta(t, 25.0/175.0, iou(a, models.Box{X1: 5, Y1: 5, X2: 15, Y2: 15}), 1e-9)
}

func TestNMSKeepsBestOfOverlappingBoxes(t *testing.T) {
	boxes := []models.Box{
		{X1: 0, Y1: 0, X2: 10, Y2: 10, Score: 0.6},
		{X1: 1, Y1: 1, X2: 11, Y2: 11, Score: 0.9},
		{X1: 50, Y1: 50, X2: 60, Y2: 60, Score: 0.4},
	}

	kept := nms(boxes, 0.45)
	require.Len(t, kept, 2)
	assert.Equal(t, 0.9, kept[0].Score)
	assert.Equal(t, 0.4, kept[1].Score)
}

func TestNMSThresholdOne(t *testing.T) {
	boxes := []models.Box{
		{X1: 0, Y1: 0, X2: 10, Y2: 10, Score: 0.6},
		{X1: 0, Y1: 0, X2: 10, Y2: 10, Score: 0.5},
	}
	assert.Len(t, nms(boxes, 1.0), 2)
}
