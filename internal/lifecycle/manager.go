// Package lifecycle drives a task through pending -> in_progress ->
// completed | failed | pending, on top of store.Store's conditional
// operations.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/rezkam/torque/internal/clock"
	"github.com/rezkam/torque/internal/domain"
	"github.com/rezkam/torque/internal/due"
	"github.com/rezkam/torque/internal/store"
)

// Config bounds how long and how far apart retries can stretch.
type Config struct {
	// MaxTaskErrors caps retry_count: once a task has failed this many
	// times, Reschedule gives up and transitions it to failed instead.
	MaxTaskErrors int

	// MaxTaskDelay caps how far into the future a reschedule's computed
	// due date can land, regardless of how large retry_count has grown.
	MaxTaskDelay time.Duration
}

// Manager is the only thing in torque allowed to move a task between
// lifecycle states. It wraps a store.Store with the due-date and
// retry-ceiling policy so callers never see a raw conditional-update
// result, only a Snapshot they can act on.
type Manager struct {
	store store.Store
	clock clock.Clock
	cfg   Config
}

// New returns a Manager backed by s, using clk for its notion of "now".
func New(s store.Store, clk clock.Clock, cfg Config) *Manager {
	return &Manager{store: s, clock: clk, cfg: cfg}
}

// Snapshot is the task state as of a successful Acquire, plus enough of the
// owning Manager to commit whatever transition the caller decides on. It is
// a value, not a live handle: nothing about acquiring a snapshot locks the
// row beyond the single CAS statement that produced it, and letting a
// Snapshot go out of scope without calling one of its methods leaves the
// task in_progress for good: the due scanner only re-pushes pending tasks
// and Acquire only matches pending rows, so nothing picks it up again.
type Snapshot struct {
	domain.Task
	manager *Manager
}

// Acquire attempts to move a task from pending to in_progress. ok is false
// (with a nil error) when the CAS condition didn't hold: the expected,
// ordinary outcome of losing a race to acquire the same instruction twice.
func (m *Manager) Acquire(ctx context.Context, id string, expectedRetryCount int) (Snapshot, bool, error) {
	task, ok, err := m.store.Acquire(ctx, id, expectedRetryCount)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("acquiring task %s: %w", id, err)
	}
	if !ok {
		return Snapshot{}, false, nil
	}
	return Snapshot{Task: task, manager: m}, true, nil
}

// Complete transitions the task to completed. Called when the webhook
// responded 200 or 201.
func (s Snapshot) Complete(ctx context.Context) error {
	return s.commit(ctx, domain.TaskStatusCompleted, s.RetryCount, s.Due)
}

// Fail transitions the task to failed without scheduling a retry. Called
// when the webhook responded with a client error (202-499), or when
// Reschedule decides the retry ceiling has been reached.
func (s Snapshot) Fail(ctx context.Context) error {
	return s.commit(ctx, domain.TaskStatusFailed, s.RetryCount, s.Due)
}

// Reschedule transitions the task back to pending with a new due date,
// unless retry_count has reached MaxTaskErrors, in which case it fails the
// task instead: a webhook that cannot succeed after a hundred attempts is
// treated as permanently broken, not as something to keep retrying forever.
// Called when the webhook responded 500+, didn't respond at all, or the
// call was cancelled mid-flight by the worker pool shutting down.
func (s Snapshot) Reschedule(ctx context.Context) error {
	if s.manager.cfg.MaxTaskErrors > 0 && s.RetryCount >= s.manager.cfg.MaxTaskErrors {
		return s.Fail(ctx)
	}

	nextDue := due.At(s.manager.clock.Now(), 0, s.RetryCount)
	ceiling := s.manager.clock.Now().Add(s.manager.cfg.MaxTaskDelay)
	if s.manager.cfg.MaxTaskDelay > 0 && nextDue.After(ceiling) {
		nextDue = ceiling
	}

	return s.commit(ctx, domain.TaskStatusPending, s.RetryCount, nextDue)
}

func (s Snapshot) commit(ctx context.Context, status domain.TaskStatus, retryCount int, due time.Time) error {
	ok, err := s.manager.store.Commit(ctx, s.ID, s.RetryCount, status, retryCount, due)
	if err != nil {
		return fmt.Errorf("committing task %s: %w", s.ID, err)
	}
	if !ok {
		return fmt.Errorf("task %s: %w", s.ID, domain.ErrConflict)
	}
	return nil
}
