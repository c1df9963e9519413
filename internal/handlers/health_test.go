package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Lixing-Zhang/storefront/pkg/logger"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name           string
		pinger         Pinger
		expectedStatus int
		expectedBody   string
	}{
		{"no storage check", nil, http.StatusOK, "healthy"},
		{"storage reachable", stubPinger{}, http.StatusOK, "healthy"},
		{"storage down", stubPinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler("1.0.0", tt.pinger, logger.Discard())

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			var body HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Status != tt.expectedBody {
				t.Errorf("expected status %q, got %q", tt.expectedBody, body.Status)
			}
			if body.Version != "1.0.0" {
				t.Errorf("expected version 1.0.0, got %q", body.Version)
			}
		})
	}
}
