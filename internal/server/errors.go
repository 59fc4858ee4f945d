package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/roach88/cowork/internal/engine"
	"github.com/roach88/cowork/internal/wire"
)

// writeError writes a JSON error response with the given HTTP status code.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeAPIError(w, status, wire.APIError{Code: code, Message: message})
}

func writeAPIError(w http.ResponseWriter, status int, apiErr wire.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(wire.ErrorResponse{Error: apiErr}); err != nil {
		slog.Error("write error response", "error", err)
	}
}

// writeJSON writes a JSON response with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write json response", "error", err)
	}
}

// classify maps a processing error to a status and wire error.
// Reducer failures are the caller's problem (422); anything else,
// including a cancelled request, is reported as internal.
func classify(err error) (int, wire.APIError) {
	apiErr := wire.APIError{Code: wire.CodeInternal, Message: err.Error()}

	var batchErr *engine.BatchError
	if errors.As(err, &batchErr) {
		idx := batchErr.Index
		apiErr.Index = &idx
	}

	var re *engine.ReducerError
	if errors.As(err, &re) {
		apiErr.Code = wire.CodeReducerFailed
		if re.Code == engine.ErrCodeReducerPanic {
			apiErr.Code = wire.CodeReducerPanic
		}
		return http.StatusUnprocessableEntity, apiErr
	}
	return http.StatusInternalServerError, apiErr
}
