package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/autonexit/FaceShield/internal/apperr"
	"github.com/autonexit/FaceShield/internal/config"
	"github.com/autonexit/FaceShield/internal/dto"
	"github.com/autonexit/FaceShield/internal/logger"
	"github.com/autonexit/FaceShield/internal/models"
	"github.com/autonexit/FaceShield/internal/services/session"
)

const maxRequestBody = 1 << 20

// RunController is the part of the session controller the API drives.
type RunController interface {
	Start(job models.JobConfig) (string, error)
	RequestStop()
	Status() session.Status
}

// RunLister reads run history.
type RunLister interface {
	GetByID(id string) (*models.Run, error)
	ListRecent(limit int) ([]models.Run, error)
}

// StartRunHandler validates a job request and starts it in the background.
// Request paths must stay inside roots. Responds 202 with the run ID, 400
// for an invalid job and 409 while another run is active.
func StartRunHandler(ctrl RunController, defaults config.JobDefaults, roots config.Roots, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.JobRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, apperr.Invalid("body", "malformed request: %v", err))
			return
		}

		job, err := confineJob(req.ToJob(defaults), req, roots)
		if err != nil {
			logger.Warning("Rejected run request: %v", err)
			writeError(w, http.StatusBadRequest, err)
			return
		}

		runID, err := ctrl.Start(job)
		if err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError {
				logger.Error("Starting run failed: %v", err)
			}
			writeError(w, status, err)
			return
		}

		logger.Info("Run %s accepted for %s", runID, job.InputPath)
		w.Header().Set("Location", fmt.Sprintf("/api/runs/%s", runID))
		writeJSON(w, http.StatusAccepted, dto.StartRunResponse{RunID: runID})
	}
}

// StopRunHandler asks the active run to stop. It is accepted even when no
// run is active.
func StopRunHandler(ctrl RunController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl.RequestStop()
		writeJSON(w, http.StatusAccepted, ctrl.Status())
	}
}

// RunStatusHandler reports the controller state and the latest progress.
func RunStatusHandler(ctrl RunController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ctrl.Status())
	}
}

// ListRunsHandler returns recent run history, newest first.
func ListRunsHandler(repo RunLister, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := atoiDefault(r.URL.Query().Get("limit"), 20)
		if limit > 200 {
			limit = 200
		}

		runs, err := repo.ListRecent(limit)
		if err != nil {
			logger.Error("Error querying runs: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

// GetRunHandler returns one run from history.
func GetRunHandler(repo RunLister, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		run, err := repo.GetByID(id)
		if err != nil {
			logger.Error("Error querying run %s: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if run == nil {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}
