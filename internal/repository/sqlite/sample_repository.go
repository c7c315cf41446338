package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/autonexit/FaceShield/internal/models"
)

// SampleRepository implements repository.SampleRepository for SQLite.
type SampleRepository struct {
	db *DB
}

// NewSampleRepository creates a new SQLite sample repository.
func NewSampleRepository(db *DB) *SampleRepository {
	return &SampleRepository{db: db}
}

// Insert adds a sample and its regions in a single transaction.
func (r *SampleRepository) Insert(s *models.Sample) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO samples (run_id, filename, frame_index, timestamp, filepath, filesize)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.RunID, s.Filename, s.FrameIndex, s.Timestamp.UTC(), s.FilePath, s.FileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to insert sample: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(s.Regions) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO sample_regions (sample_id, x, y, width, height)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return 0, fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, reg := range s.Regions {
			if _, err := stmt.Exec(id, reg.X, reg.Y, reg.Width, reg.Height); err != nil {
				return 0, fmt.Errorf("failed to insert region: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sample: %w", err)
	}
	s.ID = id
	return id, nil
}

// GetByFilename retrieves a sample with its regions. It returns nil when
// no such sample exists.
func (r *SampleRepository) GetByFilename(filename string) (*models.Sample, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var s models.Sample
	err := r.db.Conn().QueryRow(`
		SELECT id, run_id, filename, frame_index, timestamp, filepath, filesize
		FROM samples WHERE filename = ?
	`, filename).Scan(&s.ID, &s.RunID, &s.Filename, &s.FrameIndex, &s.Timestamp, &s.FilePath, &s.FileSize)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sample: %w", err)
	}

	regions, err := r.regions(s.ID)
	if err != nil {
		return nil, err
	}
	s.Regions = regions
	return &s, nil
}

// GetAll retrieves samples based on filter criteria, newest first. Regions
// are not loaded.
func (r *SampleRepository) GetAll(filter *models.SampleFilter) ([]models.Sample, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, run_id, filename, frame_index, timestamp, filepath, filesize
		FROM samples
		WHERE 1=1
	`
	args := []interface{}{}

	if filter != nil && filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}

	query += " ORDER BY timestamp DESC, frame_index DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	samples := []models.Sample{}
	for rows.Next() {
		var s models.Sample
		if err := rows.Scan(&s.ID, &s.RunID, &s.Filename, &s.FrameIndex, &s.Timestamp, &s.FilePath, &s.FileSize); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, s)
	}

	return samples, rows.Err()
}

// GetTotalCount returns the number of samples matching the filter.
func (r *SampleRepository) GetTotalCount(filter *models.SampleFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `SELECT COUNT(*) FROM samples WHERE 1=1`
	args := []interface{}{}
	if filter != nil && filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return count, nil
}

// DeleteAll removes all samples and their regions.
func (r *SampleRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM sample_regions`); err != nil {
		return fmt.Errorf("failed to delete regions: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM samples`); err != nil {
		return fmt.Errorf("failed to delete samples: %w", err)
	}

	return nil
}

// regions must be called with the read lock held.
func (r *SampleRepository) regions(sampleID int64) ([]models.Region, error) {
	rows, err := r.db.Conn().Query(`
		SELECT id, sample_id, x, y, width, height
		FROM sample_regions WHERE sample_id = ? ORDER BY id
	`, sampleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query regions: %w", err)
	}
	defer rows.Close()

	var regions []models.Region
	for rows.Next() {
		var reg models.Region
		if err := rows.Scan(&reg.ID, &reg.SampleID, &reg.X, &reg.Y, &reg.Width, &reg.Height); err != nil {
			return nil, fmt.Errorf("failed to scan region: %w", err)
		}
		regions = append(regions, reg)
	}
	return regions, rows.Err()
}
