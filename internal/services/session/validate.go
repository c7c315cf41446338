package session

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/autonexit/FaceShield/internal/apperr"
	"github.com/autonexit/FaceShield/internal/models"
	"github.com/autonexit/FaceShield/internal/services/ai"
	"github.com/autonexit/FaceShield/internal/services/redact"
)

// ValidateJob checks every field of job and returns a normalized copy: the
// blur kernel is made odd and at least 3, the inference size is rounded up to
// a multiple of 32 and an empty precision becomes full. No file is opened for
// decoding or encoding.
func ValidateJob(job models.JobConfig) (models.JobConfig, error) {
	if err := openUnit("confidence", job.Confidence); err != nil {
		return job, err
	}
	if err := openUnit("iou", job.IoU); err != nil {
		return job, err
	}
	if job.ImageSize <= 0 {
		return job, apperr.Invalid("image_size", "must be positive, got %d", job.ImageSize)
	}
	job.ImageSize = ai.RoundImageSize(job.ImageSize)

	kernel, err := redact.NormalizeKernel(job.BlurKernel)
	if err != nil {
		return job, err
	}
	job.BlurKernel = kernel

	switch job.Precision {
	case "":
		job.Precision = models.PrecisionFull
	case models.PrecisionFull, models.PrecisionHalf:
	default:
		return job, apperr.Invalid("precision", "must be %q or %q, got %q", models.PrecisionFull, models.PrecisionHalf, job.Precision)
	}

	if err := readableFile("input_path", job.InputPath); err != nil {
		return job, err
	}
	if err := readableFile("model_path", job.ModelPath); err != nil {
		return job, err
	}
	if err := writableOutput(job.InputPath, job.OutputPath); err != nil {
		return job, err
	}
	return job, nil
}

// openUnit requires v to lie strictly between 0 and 1.
func openUnit(field string, v float64) error {
	if math.IsNaN(v) || v <= 0 || v >= 1 {
		return apperr.Invalid(field, "must be in (0, 1), got %v", v)
	}
	return nil
}

func readableFile(field, path string) error {
	if path == "" {
		return apperr.Invalid(field, "is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return apperr.Invalid(field, "cannot be read: %v", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return apperr.Invalid(field, "cannot be read: %v", err)
	}
	if info.IsDir() {
		return apperr.Invalid(field, "%s is a directory", path)
	}
	return nil
}

// writableOutput checks that the output directory accepts new files and that
// the output would not overwrite the input.
func writableOutput(input, output string) error {
	const field = "output_path"
	if output == "" {
		return apperr.Invalid(field, "is required")
	}

	absIn, errIn := filepath.Abs(input)
	absOut, errOut := filepath.Abs(output)
	if errIn == nil && errOut == nil && absIn == absOut {
		return apperr.Invalid(field, "must differ from input_path")
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return apperr.Invalid(field, "%s is a directory", output)
	}

	dir := filepath.Dir(output)
	scratch, err := os.CreateTemp(dir, ".faceshield-*")
	if err != nil {
		return apperr.Invalid(field, "directory %s is not writable: %v", dir, err)
	}
	name := scratch.Name()
	scratch.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("remove scratch file: %w", err)
	}
	return nil
}
