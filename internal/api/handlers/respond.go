package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hugh/projectflow/internal/api/dto"
	"github.com/hugh/projectflow/internal/api/validation"
	"github.com/hugh/projectflow/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, dto.ErrorResponse{Message: message})
}

// writeError maps err onto a status code. Detail of server-side failures is
// logged and never sent to the client.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Message: "Validation failed", Details: verr.Fields})
	case errors.Is(err, apperr.ErrValidation):
		writeMessage(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), apperr.ErrValidation.Error()+": "))
	case errors.Is(err, apperr.ErrAuthenticationRequired):
		writeMessage(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, apperr.ErrAccessDenied):
		writeMessage(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, apperr.ErrNotFound):
		writeMessage(w, http.StatusNotFound, notFoundMessage(err))
	case errors.Is(err, apperr.ErrConflict):
		writeMessage(w, http.StatusConflict, "Request conflicts with the current state")
	case errors.Is(err, apperr.ErrUpstream):
		logger.Error("upstream request failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "External service request failed")
	default:
		logger.Error("request failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

func notFoundMessage(err error) string {
	entity := apperr.EntityName(err)
	if entity == "" {
		return "Not found"
	}
	return strings.ToUpper(entity[:1]) + entity[1:] + " not found"
}

func decode(r *http.Request, v any) error {
	return validation.Decode(r.Body, v)
}
