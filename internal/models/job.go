package models

// Precision selects the numeric precision used for inference.
type Precision string

const (
	PrecisionFull Precision = "full"
	PrecisionHalf Precision = "half"
)

// JobConfig describes one redaction run. It is validated once before the
// run starts and never mutated afterwards.
type JobConfig struct {
	InputPath  string    `json:"input_path"`
	ModelPath  string    `json:"model_path"`
	OutputPath string    `json:"output_path"`
	Confidence float64   `json:"confidence"`
	IoU        float64   `json:"iou"`
	ImageSize  int       `json:"image_size"`
	BlurKernel int       `json:"blur_kernel"`
	Precision  Precision `json:"precision"`
	Preview    bool      `json:"preview"`
}
