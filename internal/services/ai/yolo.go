package ai

import (
	"fmt"
	"math"
	"sort"

	"github.com/autonexit/FaceShield/internal/models"
)

// padValue is the grey used to fill letterbox borders.
const padValue = 114

// letterbox maps a frame onto a square model input, keeping aspect ratio
// and centring the scaled image.
type letterbox struct {
	size   int
	scale  float64
	width  int // scaled frame width
	height int // scaled frame height
	padX   int
	padY   int
}

func newLetterbox(frameW, frameH, size int) letterbox {
	scale := math.Min(float64(size)/float64(frameW), float64(size)/float64(frameH))
	w := int(math.Round(float64(frameW) * scale))
	h := int(math.Round(float64(frameH) * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if w > size {
		w = size
	}
	if h > size {
		h = size
	}
	return letterbox{
		size:   size,
		scale:  scale,
		width:  w,
		height: h,
		padX:   (size - w) / 2,
		padY:   (size - h) / 2,
	}
}

// toFrame converts a centre/size box in model input pixels to frame pixels.
// The result is not clamped.
func (l letterbox) toFrame(cx, cy, w, h float64) models.Box {
	return models.Box{
		X1: (cx - w/2 - float64(l.padX)) / l.scale,
		Y1: (cy - h/2 - float64(l.padY)) / l.scale,
		X2: (cx + w/2 - float64(l.padX)) / l.scale,
		Y2: (cy + h/2 - float64(l.padY)) / l.scale,
	}
}

// anchorCount is the number of predictions a three-stride YOLO head emits
// for a square input.
func anchorCount(size int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		g := size / stride
		n += g * g
	}
	return n
}

// RoundImageSize rounds size up to the next multiple of 32.
func RoundImageSize(size int) int {
	if size <= 0 {
		return 0
	}
	return (size + 31) / 32 * 32
}

// decode reads a YOLOv8 style head. The tensor is either [channels, anchors]
// or the transposed [anchors, channels]; channels is 4 box values followed
// by one score per class. The smaller dimension is taken as channels.
func decode(data []float32, rows, cols int, lb letterbox, minScore float64) ([]models.Box, error) {
	if rows <= 0 || cols <= 0 || len(data) < rows*cols {
		return nil, fmt.Errorf("unexpected output: %d values for %dx%d", len(data), rows, cols)
	}

	channels, anchors := rows, cols
	transposed := false
	if rows > cols {
		channels, anchors = cols, rows
		transposed = true
	}
	if channels < 5 {
		return nil, fmt.Errorf("unexpected output: %d channels", channels)
	}

	at := func(c, a int) float64 {
		if transposed {
			return float64(data[a*channels+c])
		}
		return float64(data[c*anchors+a])
	}

	boxes := make([]models.Box, 0, 16)
	for a := 0; a < anchors; a++ {
		score := 0.0
		for c := 4; c < channels; c++ {
			if s := at(c, a); s > score {
				score = s
			}
		}
		if score < minScore {
			continue
		}
		b := lb.toFrame(at(0, a), at(1, a), at(2, a), at(3, a))
		b.Score = score
		boxes = append(boxes, b)
	}
	return boxes, nil
}

// iou is the intersection over union of two boxes.
func iou(a, b models.Box) float64 {
	x1 := math.Max(a.X1, b.X1)
	y1 := math.Max(a.Y1, b.Y1)
	x2 := math.Min(a.X2, b.X2)
	y2 := math.Min(a.Y2, b.Y2)

	if x2 <= x1 || y2 <= y1 {
		return 0
	}

	intersection := (x2 - x1) * (y2 - y1)
	areaA := (a.X2 - a.X1) * (a.Y2 - a.Y1)
	areaB := (b.X2 - b.X1) * (b.Y2 - b.Y1)
	union := areaA + areaB - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// nms keeps the highest scoring box of every group overlapping above
// threshold. Input order is not preserved.
func nms(boxes []models.Box, threshold float64) []models.Box {
	if len(boxes) < 2 {
		return boxes
	}
	sort.SliceStable(boxes, func(i, j int) bool {
		return boxes[i].Score > boxes[j].Score
	})

	kept := make([]models.Box, 0, len(boxes))
	suppressed := make([]bool, len(boxes))
	for i := range boxes {
		if suppressed[i] {
			continue
		}
		kept = append(kept, boxes[i])
		for j := i + 1; j < len(boxes); j++ {
			if !suppressed[j] && iou(boxes[i], boxes[j]) > threshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}
