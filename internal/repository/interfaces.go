package repository

import (
	"github.com/autonexit/FaceShield/internal/models"
)

// RunRepository defines the interface for run history operations.
type RunRepository interface {
	// Create operations
	Insert(run *models.Run) error

	// Read operations
	GetByID(id string) (*models.Run, error)
	ListRecent(limit int) ([]models.Run, error)
}

// SampleRepository defines the interface for preview sample operations.
// Samples are stored together with the regions that were blurred in them.
type SampleRepository interface {
	// Create operations
	Insert(sample *models.Sample) (int64, error)

	// Read operations
	GetByFilename(filename string) (*models.Sample, error)
	GetAll(filter *models.SampleFilter) ([]models.Sample, error)
	GetTotalCount(filter *models.SampleFilter) (int, error)

	// Delete operations
	DeleteAll() error
}
