package models

import "time"

// RunStatus is the terminal status persisted for a run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunStopped   RunStatus = "stopped"
	RunFailed    RunStatus = "failed"
)

// Run is one row of run history.
type Run struct {
	ID              string    `json:"id"`
	InputPath       string    `json:"input_path"`
	OutputPath      string    `json:"output_path"`
	ModelPath       string    `json:"model_path"`
	Backend         string    `json:"backend"`
	Status          RunStatus `json:"status"`
	FramesProcessed int64     `json:"frames_processed"`
	TotalFrames     int64     `json:"total_frames"`
	BoxesRedacted   int64     `json:"boxes_redacted"`
	BoxesRejected   int64     `json:"boxes_rejected"`
	Error           string    `json:"error,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// Duration is the wall-clock time the run took.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
