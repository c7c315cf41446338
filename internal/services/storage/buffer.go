// Package storage keeps JPEG samples of redacted frames in memory and
// periodically writes them to the image directory and the sample index.
package storage

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/autonexit/FaceShield/internal/logger"
	"github.com/autonexit/FaceShield/internal/models"
	"github.com/autonexit/FaceShield/internal/repository"
)

type Image struct {
	RunID      string
	FrameIndex int64
	Timestamp  time.Time
	Data       []byte
	Regions    []image.Rectangle
}

type BufferService struct {
	imagesDir   string
	images      []Image
	bufferLimit int
	repo        repository.SampleRepository
	logger      *logger.Logger
	now         func() time.Time
	mu          sync.Mutex
}

// NewBufferService buffers at most bufferLimit samples between flushes.
// repo may be nil, in which case only files are written.
func NewBufferService(imagesDir string, bufferLimit int, repo repository.SampleRepository, log *logger.Logger) *BufferService {
	bufferLimit = max(bufferLimit, 0)
	return &BufferService{
		imagesDir:   imagesDir,
		bufferLimit: bufferLimit,
		images:      make([]Image, 0, bufferLimit),
		repo:        repo,
		logger:      logger.OrNop(log),
		now:         time.Now,
	}
}

// Run flushes the buffer every flushInterval until ctx is done, then flushes
// once more.
func (s *BufferService) Run(ctx context.Context, flushInterval time.Duration) error {
	if flushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive, got %s", flushInterval)
	}
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.FlushImages()
			return nil
		case <-ticker.C:
			s.FlushImages()
		}
	}
}

// AddImage queues a JPEG sample. It reports false when the buffer is full
// and the sample was dropped.
func (s *BufferService) AddImage(runID string, frameIndex int64, data []byte, regions []image.Rectangle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.images) >= s.bufferLimit {
		return false
	}
	s.images = append(s.images, Image{
		RunID:      runID,
		FrameIndex: frameIndex,
		Timestamp:  s.now(),
		Data:       data,
		Regions:    append([]image.Rectangle(nil), regions...),
	})
	return true
}

// HasRoom reports whether AddImage would currently accept a sample.
func (s *BufferService) HasRoom() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images) < s.bufferLimit
}

// Len is the number of buffered samples.
func (s *BufferService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images)
}

// FlushImages writes every buffered sample and returns how many were saved.
func (s *BufferService) FlushImages() int {
	s.mu.Lock()
	pending := s.images
	s.images = make([]Image, 0, s.bufferLimit)
	s.mu.Unlock()

	if len(pending) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		s.logger.Error("Error creating directory %s: %v", s.imagesDir, err)
		return 0
	}

	saved := 0
	for _, img := range pending {
		if err := s.save(img); err != nil {
			s.logger.Error("Error saving sample of run %s frame %d: %v", img.RunID, img.FrameIndex, err)
			continue
		}
		saved++
	}

	s.logger.Info("Flushed %d/%d samples to %s", saved, len(pending), s.imagesDir)
	return saved
}

func (s *BufferService) save(img Image) error {
	filename := SampleName(img.RunID, img.FrameIndex)
	fullpath := filepath.Join(s.imagesDir, filename)

	if err := os.WriteFile(fullpath, img.Data, 0644); err != nil {
		return err
	}
	if s.repo == nil {
		return nil
	}

	sample := &models.Sample{
		RunID:      img.RunID,
		Filename:   filename,
		FrameIndex: img.FrameIndex,
		Timestamp:  img.Timestamp,
		FilePath:   fullpath,
		FileSize:   int64(len(img.Data)),
	}
	for _, r := range img.Regions {
		sample.Regions = append(sample.Regions, models.Region{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()})
	}
	if _, err := s.repo.Insert(sample); err != nil {
		return fmt.Errorf("index sample: %w", err)
	}
	return nil
}

// SampleName is the file name used for a run's frame sample.
func SampleName(runID string, frameIndex int64) string {
	return fmt.Sprintf("%s_%06d.jpg", runID, frameIndex)
}
