package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	gridmiddleware "github.com/TBMCG/RSS-feed/internal/middleware"
	"github.com/TBMCG/RSS-feed/internal/repository"
)

// maxBodyBytes limits JSON request bodies.
const maxBodyBytes = 1 << 20

// errValidation marks request bodies that fail validation.
var errValidation = errors.New("validation failed")

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errValidation, fmt.Sprintf(format, args...))
}

// decodeJSON reads the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return validationError("invalid JSON body: %v", err)
	}
	return nil
}

// writeServiceError maps repository and validation errors to responses.
func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errValidation):
		gridmiddleware.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, repository.ErrNotFound):
		gridmiddleware.WriteError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, repository.ErrAlreadyExists):
		gridmiddleware.WriteError(w, http.StatusConflict, "already_exists", err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		gridmiddleware.WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
