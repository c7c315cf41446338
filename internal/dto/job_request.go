package dto

import (
	"github.com/autonexit/FaceShield/internal/config"
	"github.com/autonexit/FaceShield/internal/models"
)

// JobRequest is the body of POST /api/runs. Omitted fields take the
// service defaults.
type JobRequest struct {
	InputPath  string   `json:"input_path"`
	ModelPath  *string  `json:"model_path,omitempty"`
	OutputPath *string  `json:"output_path,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	IoU        *float64 `json:"iou,omitempty"`
	ImageSize  *int     `json:"image_size,omitempty"`
	BlurKernel *int     `json:"blur_kernel,omitempty"`
	Precision  *string  `json:"precision,omitempty"`
	Preview    *bool    `json:"preview,omitempty"`
}

// ToJob merges the request over defaults. The result is not validated.
func (r JobRequest) ToJob(d config.JobDefaults) models.JobConfig {
	job := models.JobConfig{
		InputPath:  r.InputPath,
		ModelPath:  d.ModelPath,
		OutputPath: d.OutputPath,
		Confidence: d.Confidence,
		IoU:        d.IoU,
		ImageSize:  d.ImageSize,
		BlurKernel: d.BlurKernel,
		Precision:  models.Precision(d.Precision),
		Preview:    d.Preview,
	}
	if r.ModelPath != nil {
		job.ModelPath = *r.ModelPath
	}
	if r.OutputPath != nil {
		job.OutputPath = *r.OutputPath
	}
	if r.Confidence != nil {
		job.Confidence = *r.Confidence
	}
	if r.IoU != nil {
		job.IoU = *r.IoU
	}
	if r.ImageSize != nil {
		job.ImageSize = *r.ImageSize
	}
	if r.BlurKernel != nil {
		job.BlurKernel = *r.BlurKernel
	}
	if r.Precision != nil {
		job.Precision = models.Precision(*r.Precision)
	}
	if r.Preview != nil {
		job.Preview = *r.Preview
	}
	return job
}

// StartRunResponse is returned when a run was accepted.
type StartRunResponse struct {
	RunID string `json:"run_id"`
}

// ErrorResponse carries a failed request's error.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
}
