package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"FakeNewsScanner/internal/domain"
)

// MapHTTPStatus maps domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidDomain),
		errors.Is(err, domain.ErrInsufficientText):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyPredicted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrClassifierUnavailable),
		errors.Is(err, domain.ErrReasoningUnavailable),
		errors.Is(err, domain.ErrFetchFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := MapHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	}
	respondJSON(w, status, errorBody{Error: err.Error()})
}
