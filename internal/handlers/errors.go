package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"mathpractice/internal/logging"
	"mathpractice/internal/service"
	"mathpractice/internal/validation"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", logging.Err(err))
	}
}

func respondWithError(w http.ResponseWriter, logger *slog.Logger, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		logger.Error(logMsg, logging.Err(err))
	}

	respondJSON(w, status, errorResponse{Error: userMsg})
}

// respondServiceError maps an error returned by a service to a status code.
// Only validation messages reach the client verbatim.
func respondServiceError(w http.ResponseWriter, logger *slog.Logger, logMsg string, err error) {
	var ve validation.ValidationError
	switch {
	case errors.As(err, &ve):
		respondWithError(w, logger, http.StatusBadRequest, ve.Error(), "", nil)
	case errors.Is(err, service.ErrUnauthorized):
		respondWithError(w, logger, http.StatusUnauthorized, ErrUnauthorized, "", nil)
	case errors.Is(err, service.ErrRateLimited):
		respondWithError(w, logger, http.StatusTooManyRequests, ErrTooManyAttempts, "", nil)
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, logger, http.StatusNotFound, ErrNotFound, "", nil)
	default:
		respondWithError(w, logger, http.StatusInternalServerError, ErrInternalServerError, logMsg, err)
	}
}
