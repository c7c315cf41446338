package session

import (
	"encoding/json"
	"time"

	"github.com/autonexit/FaceShield/internal/models"
	"github.com/autonexit/FaceShield/internal/services/pipeline"
	"github.com/autonexit/FaceShield/internal/services/progress"
)

// RunState is the controller's lifecycle state.
type RunState int32

const (
	StateIdle RunState = iota
	StateRunning
	StateCancelling
	StateCompleted
	StateFailed
	StateStopped
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCancelling:
		return "cancelling"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON.
func (s RunState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func terminalState(status models.RunStatus) RunState {
	switch status {
	case models.RunCompleted:
		return StateCompleted
	case models.RunStopped:
		return StateStopped
	default:
		return StateFailed
	}
}

// Outcome is the terminal report of one run, delivered exactly once.
type Outcome struct {
	RunID      string            `json:"run_id"`
	Status     models.RunStatus  `json:"status"`
	OutputPath string            `json:"output_path,omitempty"`
	Err        error             `json:"-"`
	Final      progress.Snapshot `json:"final"`
	Stats      pipeline.Stats    `json:"stats"`
	Backend    string            `json:"backend,omitempty"`
	Job        models.JobConfig  `json:"job"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Error returns the failure message, empty unless the run failed.
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// MarshalJSON adds the failure message, which Err alone cannot carry.
func (o Outcome) MarshalJSON() ([]byte, error) {
	type alias Outcome
	return json.Marshal(struct {
		alias
		Error string `json:"error,omitempty"`
	}{
		alias: alias(o),
		Error: o.Error(),
	})
}

// Record converts the outcome into a run history row.
func (o Outcome) Record() *models.Run {
	return &models.Run{
		ID:              o.RunID,
		InputPath:       o.Job.InputPath,
		OutputPath:      o.Job.OutputPath,
		ModelPath:       o.Job.ModelPath,
		Backend:         o.Backend,
		Status:          o.Status,
		FramesProcessed: o.Stats.Frames,
		TotalFrames:     o.Final.Total,
		BoxesRedacted:   o.Stats.BoxesRedacted,
		BoxesRejected:   o.Stats.BoxesRejected,
		Error:           o.Error(),
		StartedAt:       o.StartedAt,
		FinishedAt:      o.FinishedAt,
	}
}

// Status is a point-in-time view of the controller.
type Status struct {
	State       RunState           `json:"state"`
	RunID       string             `json:"run_id,omitempty"`
	Progress    *progress.Snapshot `json:"progress,omitempty"`
	ETA         string             `json:"eta,omitempty"`
	LastOutcome *Outcome           `json:"last_outcome,omitempty"`
}
