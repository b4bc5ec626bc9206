package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/rezkam/torque/internal/clock"
	"github.com/rezkam/torque/internal/domain"
	"github.com/rezkam/torque/internal/lifecycle"
	"github.com/rezkam/torque/internal/store/memory"
	"github.com/stretchr/testify/require"
)

func newTestTask(t *testing.T, s *memory.Store, due time.Time) domain.Task {
	t.Helper()
	task := domain.Task{
		ID:            "task-1",
		ApplicationID: "app-1",
		URL:           "https://example.com/hook",
		Timeout:       30,
		Due:           due,
	}
	require.NoError(t, s.Insert(context.Background(), task))
	return task
}

func TestAcquire_SucceedsOnMatchingRetryCount(t *testing.T) {
	s := memory.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newTestTask(t, s, now)

	mgr := lifecycle.New(s, clock.Fixed(now), lifecycle.Config{MaxTaskErrors: 100, MaxTaskDelay: 30 * time.Minute})

	snap, ok, err := mgr.Acquire(context.Background(), "task-1", 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, snap.RetryCount)
	require.Equal(t, domain.TaskStatusInProgress, snap.Status)
}

func TestAcquire_FailsOnRetryCountMismatch(t *testing.T) {
	s := memory.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newTestTask(t, s, now)

	mgr := lifecycle.New(s, clock.Fixed(now), lifecycle.Config{})

	_, ok, err := mgr.Acquire(context.Background(), "task-1", 5)
	require.NoError(t, err)
	require.False(t, ok, "CAS should not match a stale retry count")
}

func TestComplete_MarksTaskCompleted(t *testing.T) {
	s := memory.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newTestTask(t, s, now)

	mgr := lifecycle.New(s, clock.Fixed(now), lifecycle.Config{})
	snap, ok, err := mgr.Acquire(context.Background(), "task-1", 0)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, snap.Complete(context.Background()))

	got, err := s.Get(context.Background(), "task-1")
	require.NoError(t, err)
	require.Equal(t, domain.TaskStatusCompleted, got.Status)
}

func TestReschedule_ComputesNewDueDate(t *testing.T) {
	s := memory.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newTestTask(t, s, now)

	mgr := lifecycle.New(s, clock.Fixed(now), lifecycle.Config{MaxTaskErrors: 100, MaxTaskDelay: 30 * time.Minute})
	snap, ok, err := mgr.Acquire(context.Background(), "task-1", 0)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, snap.Reschedule(context.Background()))

	got, err := s.Get(context.Background(), "task-1")
	require.NoError(t, err)
	require.Equal(t, domain.TaskStatusPending, got.Status)
	require.True(t, got.Due.After(now))
}

func TestReschedule_FailsInsteadAtRetryCeiling(t *testing.T) {
	s := memory.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newTestTask(t, s, now)

	mgr := lifecycle.New(s, clock.Fixed(now), lifecycle.Config{MaxTaskErrors: 1, MaxTaskDelay: 30 * time.Minute})
	snap, ok, err := mgr.Acquire(context.Background(), "task-1", 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, snap.RetryCount)

	require.NoError(t, snap.Reschedule(context.Background()))

	got, err := s.Get(context.Background(), "task-1")
	require.NoError(t, err)
	require.Equal(t, domain.TaskStatusFailed, got.Status, "retry count reached the ceiling, so reschedule must fail the task")
}

func TestReschedule_ClampsDueDateAtMaxDelay(t *testing.T) {
	s := memory.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	task := newTestTask(t, s, now)
	_ = task

	mgr := lifecycle.New(s, clock.Fixed(now), lifecycle.Config{MaxTaskErrors: 100, MaxTaskDelay: time.Minute})
	snap, ok, err := mgr.Acquire(context.Background(), "task-1", 0)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, snap.Reschedule(context.Background()))

	got, err := s.Get(context.Background(), "task-1")
	require.NoError(t, err)
	require.False(t, got.Due.After(now.Add(time.Minute)), "due date must be clamped at MaxTaskDelay")
}
