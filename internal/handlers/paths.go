package handlers

import (
	"path/filepath"
	"strings"

	"github.com/autonexit/FaceShield/internal/apperr"
	"github.com/autonexit/FaceShield/internal/config"
	"github.com/autonexit/FaceShield/internal/dto"
	"github.com/autonexit/FaceShield/internal/models"
)

// confineJob resolves the job's paths inside the configured roots. The model
// path is only confined when the request overrides the service default.
func confineJob(job models.JobConfig, req dto.JobRequest, roots config.Roots) (models.JobConfig, error) {
	var err error
	if job.InputPath, err = confine(roots.Input, job.InputPath, "input_path"); err != nil {
		return job, err
	}
	if job.OutputPath, err = confine(roots.Output, job.OutputPath, "output_path"); err != nil {
		return job, err
	}
	if req.ModelPath != nil {
		if job.ModelPath, err = confine(roots.Model, job.ModelPath, "model_path"); err != nil {
			return job, err
		}
	}
	return job, nil
}

// confine joins a relative path onto root and rejects anything that resolves
// outside it. Empty paths are left for job validation to report.
func confine(root, path, field string) (string, error) {
	if path == "" {
		return "", nil
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return "", apperr.Invalid(field, "cannot resolve root: %v", err)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperr.Invalid(field, "must be inside %s", root)
	}
	return path, nil
}
