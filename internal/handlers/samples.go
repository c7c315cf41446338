package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/autonexit/FaceShield/internal/dto"
	"github.com/autonexit/FaceShield/internal/logger"
	"github.com/autonexit/FaceShield/internal/models"
	"github.com/autonexit/FaceShield/internal/repository"
)

// ListSamplesHandler lists stored samples, optionally for one run, with
// pagination. Response is JSON of type dto.SamplesData.
func ListSamplesHandler(repo repository.SampleRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &models.SampleFilter{
			RunID:  q.Get("run"),
			Limit:  limit,
			Offset: (page - 1) * limit,
		}

		samples, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying samples: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		total, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting samples: %v", err)
			total = len(samples)
		}

		data := dto.SamplesData{
			Samples:     make([]dto.SampleInfo, 0, len(samples)),
			Length:      total,
			TotalPages:  (total + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}
		for _, s := range samples {
			data.Samples = append(data.Samples, sampleInfo(s))
		}

		if err := writeJSON(w, http.StatusOK, data); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// ViewSampleHandler serves a single sample specified via the "image" query parameter.
func ViewSampleHandler(imagesDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, ok := sampleName(w, r)
		if !ok {
			return
		}
		http.ServeFile(w, r, filepath.Join(imagesDir, name))
	}
}

// SampleDetailsHandler returns a sample's metadata and the rectangles that
// were blurred in it.
func SampleDetailsHandler(repo repository.SampleRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, ok := sampleName(w, r)
		if !ok {
			return
		}

		sample, err := repo.GetByFilename(name)
		if err != nil {
			logger.Error("Error querying sample %s: %v", name, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if sample == nil {
			http.Error(w, "Sample not found", http.StatusNotFound)
			return
		}

		details := dto.SampleDetails{
			SampleInfo: sampleInfo(*sample),
			Regions:    make([]dto.RegionInfo, 0, len(sample.Regions)),
		}
		for _, reg := range sample.Regions {
			details.Regions = append(details.Regions, dto.RegionInfo{X: reg.X, Y: reg.Y, Width: reg.Width, Height: reg.Height})
		}
		if err := writeJSON(w, http.StatusOK, details); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// sampleName reads the "image" query parameter and reduces it to a bare
// file name, writing a 400 when it is unusable.
func sampleName(w http.ResponseWriter, r *http.Request) (string, bool) {
	image := r.URL.Query().Get("image")
	if image == "" {
		http.Error(w, "Image parameter is required", http.StatusBadRequest)
		return "", false
	}
	name := filepath.Base(filepath.Clean("/" + image))
	if name == "/" || name == "." {
		http.Error(w, "Invalid image name", http.StatusBadRequest)
		return "", false
	}
	return name, true
}

func sampleInfo(s models.Sample) dto.SampleInfo {
	return dto.SampleInfo{
		Name:       s.Filename,
		RunID:      s.RunID,
		FrameIndex: s.FrameIndex,
		Date:       s.Timestamp.Format("02-01-2006 15:04:05"),
		Size:       s.FileSize,
	}
}

// ClearSamplesHandler deletes all sample files and their index rows.
func ClearSamplesHandler(repo repository.SampleRepository, imagesDir string, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		files, err := os.ReadDir(imagesDir)
		if err != nil && !os.IsNotExist(err) {
			logger.Error("Error reading samples directory: %v", err)
			http.Error(w, "Unable to read samples directory", http.StatusInternalServerError)
			return
		}

		for _, file := range files {
			if !file.IsDir() {
				if err := os.Remove(filepath.Join(imagesDir, file.Name())); err != nil {
					logger.Error("Error deleting file %s: %v", file.Name(), err)
				}
			}
		}

		if err := repo.DeleteAll(); err != nil {
			logger.Error("Error clearing sample index: %v", err)
		}

		logger.Info("All samples cleared from directory: %s", imagesDir)
		w.WriteHeader(http.StatusNoContent)
	}
}
