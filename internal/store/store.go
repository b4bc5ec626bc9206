// Package store defines the persistence contract for tasks, applications,
// and API keys. Concrete implementations live in subpackages: postgres for
// production, sqlite for a pure-Go single-binary deployment, and memory for
// tests.
package store

import (
	"context"
	"time"

	"github.com/rezkam/torque/internal/domain"
)

// Store is the durable backing for the task lifecycle. Every mutating
// method is a single conditional statement against the database rather
// than a read-then-write pair: the store itself is the only place that is
// allowed to race with concurrent workers, and it resolves that race with
// one round trip instead of a compare-then-update dance in Go.
type Store interface {
	// Insert creates a new task row. The caller sets ID, ApplicationID,
	// URL, Body, Charset, Enctype, Headers, Timeout, Due; Insert pins
	// Status to pending and RetryCount to 0.
	Insert(ctx context.Context, task domain.Task) error

	// Delete removes a task row outright. It exists for the enqueue
	// endpoint's compensating rollback: if the broker push that follows
	// Insert fails, the insert is undone so that an enqueue reported as
	// failed leaves no task behind for the due scanner to deliver later.
	Delete(ctx context.Context, id string) error

	// Get returns a task by ID. Returns domain.ErrTaskNotFound if absent.
	Get(ctx context.Context, id string) (domain.Task, error)

	// Acquire attempts to move a task from pending to in_progress,
	// incrementing retry_count, in one statement conditioned on the task's
	// current retry_count equalling expectedRetryCount and its status
	// being pending. ok is false (with a nil error) when the condition
	// didn't match: another worker already acquired it, it was deleted,
	// or it is not in a pending state. This is the normal, expected
	// outcome of losing a race, not a failure.
	Acquire(ctx context.Context, id string, expectedRetryCount int) (task domain.Task, ok bool, err error)

	// Commit finalizes an acquired task's outcome in one statement,
	// conditioned on retry_count still equalling expectedRetryCount (the
	// value Acquire returned, i.e. the post-increment count). ok is false
	// when that condition no longer holds.
	Commit(ctx context.Context, id string, expectedRetryCount int, status domain.TaskStatus, nextRetryCount int, due time.Time) (ok bool, err error)

	// ScanDue returns up to limit pending tasks whose due date is at or
	// before before, ordered by due date. It is the safety net that
	// recovers instructions lost by the broker (process crash between
	// Insert and Push, or a dropped Postgres NOTIFY) rather than the
	// primary dispatch path.
	ScanDue(ctx context.Context, before time.Time, limit int) ([]domain.Task, error)

	// CountPending reports how many tasks are still pending. It backs the
	// worker pool's finish-on-empty shutdown: the broker going quiet isn't
	// enough on its own, since a due task that hasn't been pushed yet
	// would otherwise be missed.
	CountPending(ctx context.Context) (int, error)
}

// ApplicationStore persists applications and their API keys. It is kept
// separate from Store because only cmd/apikey and the HTTP authentication
// middleware need it: the worker pool and due scanner never touch it.
type ApplicationStore interface {
	CreateApplication(ctx context.Context, app domain.Application) error
	Create(ctx context.Context, key *domain.APIKey) error
	FindByShortToken(ctx context.Context, shortToken string) (*domain.APIKey, error)
	UpdateLastUsed(ctx context.Context, keyID string, at time.Time) error
}
