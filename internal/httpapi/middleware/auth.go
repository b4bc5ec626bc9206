package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rezkam/torque/internal/application/auth"
	"github.com/rezkam/torque/internal/domain"
	"github.com/rezkam/torque/internal/httpapi/response"
)

type contextKey int

const applicationIDKey contextKey = iota

// ApplicationID returns the authenticated caller's application ID, set by
// Auth.Validate. Panics-free: callers that run behind Auth.Validate always
// find one; callers that don't shouldn't be asking.
func ApplicationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(applicationIDKey).(string)
	return id, ok
}

// Auth is HTTP middleware for API key authentication.
type Auth struct {
	authenticator *auth.Authenticator
}

// NewAuth creates a new auth middleware.
func NewAuth(authenticator *auth.Authenticator) *Auth {
	return &Auth{authenticator: authenticator}
}

// Validate is a Chi middleware that validates API keys from the
// Authorization header. Expects "Authorization: Bearer <api-key>".
func (a *Auth) Validate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			slog.WarnContext(r.Context(), "authentication failed: missing Authorization header",
				"path", r.URL.Path, "method", r.Method)
			response.Unauthorized(w, "missing Authorization header")
			return
		}

		apiKey, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			slog.WarnContext(r.Context(), "authentication failed: invalid Authorization header format",
				"path", r.URL.Path, "method", r.Method)
			response.Unauthorized(w, "invalid Authorization header format, expected: Bearer <token>")
			return
		}

		applicationID, err := a.authenticator.ValidateAPIKey(r.Context(), apiKey)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthorized) {
				slog.WarnContext(r.Context(), "authentication failed: invalid or expired API key",
					"path", r.URL.Path, "method", r.Method)
			} else {
				slog.ErrorContext(r.Context(), "authentication failed: unexpected error",
					"path", r.URL.Path, "method", r.Method, "error", err)
			}
			response.Unauthorized(w, "invalid or expired API key")
			return
		}

		ctx := context.WithValue(r.Context(), applicationIDKey, applicationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
