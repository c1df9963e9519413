package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Lixing-Zhang/storefront/internal/auth"
)

// BasicAuth middleware checks HTTP Basic credentials on every request.
// There are no sessions: each admin call presents the username and password.
func BasicAuth(authorizer auth.Authorizer, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok || username == "" || password == "" {
				unauthorized(w, "Authorization required")
				return
			}

			allowed, err := authorizer.Authorize(r.Context(), username, password)
			if err != nil {
				logger.ErrorContext(r.Context(), "authorization check failed", "error", err)
				writeJSONError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if !allowed {
				logger.WarnContext(r.Context(), "invalid admin credentials",
					"username", username,
					"remote_addr", r.RemoteAddr,
				)
				unauthorized(w, "Invalid credentials")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="storefront admin", charset="UTF-8"`)
	writeJSONError(w, http.StatusUnauthorized, message)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
