package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/rezkam/torque/internal/application/auth"
	"github.com/rezkam/torque/internal/httpapi/middleware"
)

// DefaultMaxBodyBytes is the default maximum request body size (1MB).
const DefaultMaxBodyBytes = 1 << 20

// RouterConfig tunes the router's ambient middleware.
type RouterConfig struct {
	MaxBodyBytes int64
}

// NewRouter builds the chi router: request-scoped middleware, the
// unauthenticated health check, and the authenticated task surface.
func NewRouter(server *Server, authenticator *auth.Authenticator, cfg RouterConfig) *chi.Mux {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.MaxBodyBytes(cfg.MaxBodyBytes))

	r.Get("/health", healthHandler)

	r.Group(func(r chi.Router) {
		authMiddleware := middleware.NewAuth(authenticator)
		r.Use(authMiddleware.Validate)

		r.Post("/", server.Enqueue)
		r.Get("/tasks/{id}", server.Status)
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"torque installed and reporting for duty"}`)) //nolint:errcheck
}
