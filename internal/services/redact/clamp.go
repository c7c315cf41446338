package redact

import (
	"image"
	"math"

	"github.com/autonexit/FaceShield/internal/models"
)

// Clamp converts a raw detection into an in-bounds pixel rectangle.
//
// Coordinates are truncated toward zero, x is clamped to [0, width-1] and y
// to [0, height-1]. The box is rejected when the clamped rectangle has no
// area or any coordinate is not a finite number. Rejection is not an error;
// detectors routinely emit degenerate boxes.
func Clamp(b models.Box, width, height int) (image.Rectangle, bool) {
	if width <= 0 || height <= 0 {
		return image.Rectangle{}, false
	}
	for _, v := range [...]float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return image.Rectangle{}, false
		}
	}

	x1 := clampAxis(b.X1, width-1)
	y1 := clampAxis(b.Y1, height-1)
	x2 := clampAxis(b.X2, width-1)
	y2 := clampAxis(b.Y2, height-1)

	if x2 <= x1 || y2 <= y1 {
		return image.Rectangle{}, false
	}
	return image.Rectangle{Min: image.Pt(x1, y1), Max: image.Pt(x2, y2)}, true
}

// clampAxis limits v to [0, max] before truncating so that huge values
// never overflow the int conversion.
func clampAxis(v float64, max int) int {
	if v <= 0 {
		return 0
	}
	if v >= float64(max) {
		return max
	}
	return int(v)
}
