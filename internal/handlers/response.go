package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the body of every JSON error
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse confirms a mutation; ID is set when something was created
type MessageResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id,omitempty"`
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes an error response in JSON format
func WriteError(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	WriteJSON(w, status, ErrorResponse{Error: message}, logger)
}

// writeDomainError logs err and writes the response errorStatus picks for it
func writeDomainError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger, msg string) {
	status, message := errorStatus(err)
	switch {
	case status >= http.StatusInternalServerError:
		logger.ErrorContext(r.Context(), msg, "error", err)
	default:
		logger.InfoContext(r.Context(), msg, "status", status, "error", err)
	}
	WriteError(w, status, message, logger)
}
