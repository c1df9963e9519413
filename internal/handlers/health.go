package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is implemented by backing stores that can report connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health check endpoint
type HealthHandler struct {
	version string
	pinger  Pinger
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler. pinger may be nil.
func NewHealthHandler(version string, pinger Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		version: version,
		pinger:  pinger,
		logger:  logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// ServeHTTP handles health check requests
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	}
	status := http.StatusOK

	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			h.logger.Warn("health check: storage unreachable", "error", err)
			response.Status = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	WriteJSON(w, status, response, h.logger)
}
