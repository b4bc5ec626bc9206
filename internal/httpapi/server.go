// Package httpapi is the HTTP ingress: it validates and frames inbound
// enqueue requests and serves task status, handing everything else off to
// internal/store and internal/broker. It never touches task execution.
package httpapi

import (
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rezkam/torque/internal/broker"
	"github.com/rezkam/torque/internal/domain"
	"github.com/rezkam/torque/internal/httpapi/middleware"
	"github.com/rezkam/torque/internal/httpapi/response"
	"github.com/rezkam/torque/internal/store"
)

// Default ambient values for enqueue requests that don't specify them,
// mirroring the original's CreateTask defaults.
const (
	DefaultEnctype           = "application/x-www-form-urlencoded"
	DefaultCharset           = "utf-8"
	DefaultProxyHeaderPrefix = "X-Torque-"
)

// Config tunes Server's request handling.
type Config struct {
	DefaultTimeout    int // seconds, used when the enqueue request omits ?timeout
	ProxyHeaderPrefix string
}

// Server implements the enqueue and status handlers mounted by NewRouter.
type Server struct {
	store  store.Store
	broker broker.Broker
	cfg    Config
}

// NewServer returns a Server wiring s and b together under cfg, applying
// defaults for any zero Config fields.
func NewServer(s store.Store, b broker.Broker, cfg Config) *Server {
	if cfg.ProxyHeaderPrefix == "" {
		cfg.ProxyHeaderPrefix = DefaultProxyHeaderPrefix
	}
	return &Server{store: s, broker: b, cfg: cfg}
}

// taskResponse is the JSON representation of a task returned by Status,
// mirroring the original view's full task repr.
type taskResponse struct {
	ID         string            `json:"id"`
	URL        string            `json:"url"`
	Enctype    string            `json:"enctype"`
	Charset    string            `json:"charset"`
	Headers    map[string]string `json:"headers"`
	Timeout    int               `json:"timeout"`
	Status     string            `json:"status"`
	RetryCount int               `json:"retry_count"`
	Due        time.Time         `json:"due"`
	Created    time.Time         `json:"created"`
	Modified   time.Time         `json:"modified"`
}

// Enqueue handles POST /: validate, persist a pending task owned by the
// caller's authenticated application, and push its first instruction.
func (s *Server) Enqueue(w http.ResponseWriter, r *http.Request) {
	applicationID, ok := middleware.ApplicationID(r.Context())
	if !ok {
		response.FromDomainError(w, r, domain.ErrUnauthorized)
		return
	}

	url, err := validateURL(r.URL.Query().Get("url"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	timeout, err := validateTimeout(r.URL.Query().Get("timeout"), s.cfg.DefaultTimeout)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.BadRequest(w, "failed to read request body")
		return
	}

	enctype := DefaultEnctype
	if contentType := r.Header.Get("Content-Type"); contentType != "" {
		enctype = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}

	charset := DefaultCharset
	if _, params, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil {
		if cs, ok := params["charset"]; ok {
			charset = cs
		}
	}

	headers := make(map[string]string)
	for key, values := range r.Header {
		if proxied, ok := strings.CutPrefix(key, s.cfg.ProxyHeaderPrefix); ok && len(values) > 0 {
			headers[proxied] = values[0]
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	now := time.Now().UTC()
	task := domain.Task{
		ID:            id.String(),
		ApplicationID: applicationID,
		URL:           url,
		Body:          body,
		Charset:       charset,
		Enctype:       enctype,
		Headers:       headers,
		Timeout:       timeout,
		Due:           now,
	}

	if err := s.store.Insert(r.Context(), task); err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	if err := s.broker.Push(r.Context(), task.ID+":0"); err != nil {
		// Best-effort rollback: the caller is told the enqueue failed, so
		// the row is removed rather than left for the due scanner to
		// deliver later.
		_ = s.store.Delete(r.Context(), task.ID)
		response.FromDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/tasks/"+task.ID)
	w.WriteHeader(http.StatusCreated)
}

// Status handles GET /tasks/{id}: return the task's JSON representation to
// the application that owns it.
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	applicationID, ok := middleware.ApplicationID(r.Context())
	if !ok {
		response.FromDomainError(w, r, domain.ErrUnauthorized)
		return
	}

	id := chi.URLParam(r, "id")
	task, err := s.store.Get(r.Context(), id)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	// Treat an unauthorized task the same as a missing one: revealing that
	// a task ID exists but belongs to someone else is its own disclosure.
	if !domain.Authorized(task, applicationID) {
		response.FromDomainError(w, r, domain.ErrTaskNotFound)
		return
	}

	response.OK(w, taskResponse{
		ID:         task.ID,
		URL:        task.URL,
		Enctype:    task.Enctype,
		Charset:    task.Charset,
		Headers:    task.Headers,
		Timeout:    task.Timeout,
		Status:     string(task.Status),
		RetryCount: task.RetryCount,
		Due:        task.Due,
		Created:    task.Created,
		Modified:   task.Modified,
	})
}
