package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Lixing-Zhang/storefront/pkg/logger"
)

type staticAuthorizer struct {
	username, password string
	err                error
}

func (a staticAuthorizer) Authorize(ctx context.Context, username, password string) (bool, error) {
	if a.err != nil {
		return false, a.err
	}
	return username == a.username && password == a.password, nil
}

func TestBasicAuth(t *testing.T) {
	authorizer := staticAuthorizer{username: "admin", password: "admin123"}

	// Create a test handler that returns 200 OK
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("success"))
	})

	// Wrap with auth middleware
	authHandler := BasicAuth(authorizer, logger.Discard())(testHandler)

	tests := []struct {
		name           string
		setAuth        bool
		username       string
		password       string
		expectedStatus int
	}{
		{
			name:           "valid credentials",
			setAuth:        true,
			username:       "admin",
			password:       "admin123",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing credentials",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "wrong password",
			setAuth:        true,
			username:       "admin",
			password:       "wrong",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "unknown user",
			setAuth:        true,
			username:       "root",
			password:       "admin123",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "empty password",
			setAuth:        true,
			username:       "admin",
			password:       "",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/products", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.username, tt.password)
			}

			w := httptest.NewRecorder()
			authHandler.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectedStatus)
			}

			if tt.expectedStatus == http.StatusOK {
				if w.Body.String() != "success" {
					t.Errorf("body = %s, want success", w.Body.String())
				}
				return
			}

			if w.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header on 401")
			}
			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if body["error"] == "" {
				t.Error("expected error message in body")
			}
		})
	}
}

func TestBasicAuth_AuthorizerError(t *testing.T) {
	authorizer := staticAuthorizer{err: errors.New("store down")}
	called := false
	handler := BasicAuth(authorizer, logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodDelete, "/api/products/1", nil)
	req.SetBasicAuth("admin", "admin123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if called {
		t.Error("next handler must not run when authorization fails")
	}
}
