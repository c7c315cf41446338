package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/autonexit/FaceShield/internal/apperr"
	"github.com/autonexit/FaceShield/internal/dto"
)

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := dto.ErrorResponse{Error: err.Error()}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		resp.Kind = ae.Kind.String()
		resp.Field = ae.Field
	}
	writeJSON(w, status, resp)
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInvalidConfiguration:
		return http.StatusBadRequest
	case apperr.KindAlreadyRunning:
		return http.StatusConflict
	case apperr.KindResourceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
