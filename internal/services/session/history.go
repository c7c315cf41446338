package session

import (
	"fmt"

	"github.com/autonexit/FaceShield/internal/models"
	"github.com/autonexit/FaceShield/internal/services/progress"
)

// RunRecorder persists finished runs.
type RunRecorder interface {
	Insert(run *models.Run) error
}

// HistoryObserver stores one history row per run when its outcome arrives.
type HistoryObserver struct {
	repo RunRecorder
}

// NewHistoryObserver records outcomes in repo.
func NewHistoryObserver(repo RunRecorder) *HistoryObserver {
	return &HistoryObserver{repo: repo}
}

// OnProgress ignores progress; only outcomes are persisted.
func (h *HistoryObserver) OnProgress(string, progress.Snapshot) error {
	return nil
}

// OnTerminal writes the run record.
func (h *HistoryObserver) OnTerminal(o Outcome) error {
	if err := h.repo.Insert(o.Record()); err != nil {
		return fmt.Errorf("record run %s: %w", o.RunID, err)
	}
	return nil
}
