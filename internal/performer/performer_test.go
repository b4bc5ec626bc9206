package performer_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rezkam/torque/internal/clock"
	"github.com/rezkam/torque/internal/domain"
	"github.com/rezkam/torque/internal/lifecycle"
	"github.com/rezkam/torque/internal/performer"
	"github.com/rezkam/torque/internal/store/memory"
	"github.com/stretchr/testify/require"
)

func newTask(t *testing.T, s *memory.Store, url string) {
	t.Helper()
	require.NoError(t, s.Insert(context.Background(), domain.Task{
		ID:            "task-1",
		ApplicationID: "app-1",
		URL:           url,
		Enctype:       "application/x-www-form-urlencoded",
		Charset:       "utf-8",
		Timeout:       5,
		Due:           time.Now().UTC(),
	}))
}

func TestPerform_CompletesOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := memory.New()
	newTask(t, s, srv.URL)
	mgr := lifecycle.New(s, clock.Real{}, lifecycle.Config{MaxTaskErrors: 100, MaxTaskDelay: 30 * time.Minute})
	p := performer.New(mgr, srv.Client())

	flag := performer.NewControlFlag(context.Background())
	require.NoError(t, p.Perform(context.Background(), "task-1:0", flag))

	got, err := s.Get(context.Background(), "task-1")
	require.NoError(t, err)
	require.Equal(t, domain.TaskStatusCompleted, got.Status)
}

func TestPerform_FailsOnClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := memory.New()
	newTask(t, s, srv.URL)
	mgr := lifecycle.New(s, clock.Real{}, lifecycle.Config{MaxTaskErrors: 100, MaxTaskDelay: 30 * time.Minute})
	p := performer.New(mgr, srv.Client())

	flag := performer.NewControlFlag(context.Background())
	require.NoError(t, p.Perform(context.Background(), "task-1:0", flag))

	got, err := s.Get(context.Background(), "task-1")
	require.NoError(t, err)
	require.Equal(t, domain.TaskStatusFailed, got.Status)
}

func TestPerform_ReschedulesOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := memory.New()
	newTask(t, s, srv.URL)
	mgr := lifecycle.New(s, clock.Real{}, lifecycle.Config{MaxTaskErrors: 100, MaxTaskDelay: 30 * time.Minute})
	p := performer.New(mgr, srv.Client())

	flag := performer.NewControlFlag(context.Background())
	require.NoError(t, p.Perform(context.Background(), "task-1:0", flag))

	got, err := s.Get(context.Background(), "task-1")
	require.NoError(t, err)
	require.Equal(t, domain.TaskStatusPending, got.Status)
	require.Equal(t, 1, got.RetryCount)
}

func TestPerform_MalformedInstructionIsDroppedNotErrored(t *testing.T) {
	s := memory.New()
	mgr := lifecycle.New(s, clock.Real{}, lifecycle.Config{})
	p := performer.New(mgr, http.DefaultClient)

	flag := performer.NewControlFlag(context.Background())
	require.NoError(t, p.Perform(context.Background(), "not-an-instruction", flag))
}

func TestPerform_AcquireMissIsNotAnError(t *testing.T) {
	s := memory.New()
	newTask(t, s, "http://example.invalid")
	mgr := lifecycle.New(s, clock.Real{}, lifecycle.Config{})
	p := performer.New(mgr, http.DefaultClient)

	flag := performer.NewControlFlag(context.Background())
	require.NoError(t, p.Perform(context.Background(), "task-1:99", flag))
}
