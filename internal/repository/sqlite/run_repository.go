package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/autonexit/FaceShield/internal/models"
)

const runColumns = `id, input_path, output_path, model_path, backend, status,
	frames_processed, total_frames, boxes_redacted, boxes_rejected, error, started_at, finished_at`

// RunRepository implements repository.RunRepository for SQLite.
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new SQLite run repository.
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Insert stores a finished run.
func (r *RunRepository) Insert(run *models.Run) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.InputPath, run.OutputPath, run.ModelPath, run.Backend, string(run.Status),
		run.FramesProcessed, run.TotalFrames, run.BoxesRedacted, run.BoxesRejected, run.Error,
		run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. It returns nil when no such run exists.
func (r *RunRepository) GetByID(id string) (*models.Run, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	run, err := scanRun(r.db.Conn().QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRecent returns up to limit runs, newest first.
func (r *RunRepository) ListRecent(limit int) ([]models.Run, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Conn().Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []models.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var run models.Run
	var status string
	err := row.Scan(&run.ID, &run.InputPath, &run.OutputPath, &run.ModelPath, &run.Backend, &status,
		&run.FramesProcessed, &run.TotalFrames, &run.BoxesRedacted, &run.BoxesRejected, &run.Error,
		&run.StartedAt, &run.FinishedAt)
	if err != nil {
		return nil, err
	}
	run.Status = models.RunStatus(status)
	return &run, nil
}
