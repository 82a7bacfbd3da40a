package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/deidaraiorek/expense-eagle-reporter/internal/receipt"
)

type errorResponse struct {
	Error  string               `json:"error"`
	Fields []receipt.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string, fields []receipt.FieldError) {
	writeJSON(w, status, errorResponse{Error: message, Fields: fields})
}

// writeError maps domain errors onto HTTP statuses
func writeError(w http.ResponseWriter, err error) {
	var ve *receipt.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSONError(w, http.StatusBadRequest, ve.Error(), ve.Fields)
	case errors.Is(err, receipt.ErrValidation):
		writeJSONError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, receipt.ErrForbidden):
		writeJSONError(w, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, receipt.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, receipt.ErrInvalidTransition), errors.Is(err, receipt.ErrConflict):
		writeJSONError(w, http.StatusConflict, err.Error(), nil)
	default:
		slog.Error("Internal server error", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return receipt.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return nil
}
