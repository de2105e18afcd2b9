package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// fieldErrors maps a request field to what is wrong with it. Rendered
// as the detail of every 400 validation response.
type fieldErrors map[string]string

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeValidationError(w http.ResponseWriter, fields fieldErrors) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":  "validation failed",
		"fields": fields,
	})
}

// writeNotFound uses one generic message for every missing row, so the
// response never reveals whether an id exists under another owner.
func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Expense not found"})
}

func writeInternalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
