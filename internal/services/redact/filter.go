package redact

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/autonexit/FaceShield/internal/apperr"
	"github.com/autonexit/FaceShield/internal/models"
)

// MinKernel is the smallest blur kernel the filter accepts.
const MinKernel = 3

// NormalizeKernel coerces a blur kernel size to an odd value of at least
// MinKernel. Values below 1 are rejected.
func NormalizeKernel(k int) (int, error) {
	if k <= 0 {
		return 0, apperr.Invalid("blur_kernel", "must be positive, got %d", k)
	}
	if k < MinKernel {
		return MinKernel, nil
	}
	if k%2 == 0 {
		return k + 1, nil
	}
	return k, nil
}

// Blur smooths the pixels inside rect in place with a k x k Gaussian kernel.
// Pixels outside rect are left untouched and the Mat keeps its size and type.
func Blur(mat *gocv.Mat, rect image.Rectangle, k int) error {
	if mat == nil || mat.Empty() {
		return fmt.Errorf("blur: empty frame")
	}
	if k < MinKernel || k%2 == 0 {
		return fmt.Errorf("blur: kernel %d is not an odd value >= %d", k, MinKernel)
	}
	bounds := image.Rect(0, 0, mat.Cols(), mat.Rows())
	if rect.Empty() || !rect.In(bounds) {
		return fmt.Errorf("blur: region %v outside frame %v", rect, bounds)
	}

	roi := mat.Region(rect)
	defer roi.Close()

	if err := gocv.GaussianBlur(roi, &roi, image.Pt(k, k), 0, 0, gocv.BorderDefault); err != nil {
		return fmt.Errorf("blur: %w", err)
	}
	return nil
}

// Filter redacts detection boxes on frames with a fixed kernel.
type Filter struct {
	kernel int
}

// NewFilter returns a Filter using the normalized kernel size.
func NewFilter(kernel int) (*Filter, error) {
	k, err := NormalizeKernel(kernel)
	if err != nil {
		return nil, err
	}
	return &Filter{kernel: k}, nil
}

// Kernel returns the normalized kernel size.
func (f *Filter) Kernel() int {
	return f.kernel
}

// Result counts what Apply did to one frame.
type Result struct {
	Regions  []image.Rectangle
	Redacted int
	Rejected int
}

// Apply clamps every box to the frame and blurs the valid ones.
func (f *Filter) Apply(mat *gocv.Mat, boxes []models.Box) (Result, error) {
	var res Result
	if len(boxes) == 0 {
		return res, nil
	}

	w, h := mat.Cols(), mat.Rows()
	for _, b := range boxes {
		rect, ok := Clamp(b, w, h)
		if !ok {
			res.Rejected++
			continue
		}
		if err := Blur(mat, rect, f.kernel); err != nil {
			return res, err
		}
		res.Regions = append(res.Regions, rect)
		res.Redacted++
	}
	return res, nil
}
