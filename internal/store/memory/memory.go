// Package memory is an in-process Store used by tests; the cmd entry
// points default to the sqlite backend instead.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rezkam/torque/internal/domain"
)

// Store is a mutex-guarded map standing in for a real database. It
// implements both store.Store and store.ApplicationStore.
type Store struct {
	mu    sync.Mutex
	tasks map[string]domain.Task
	apps  map[string]domain.Application
	keys  map[string]*domain.APIKey // by short token
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		tasks: make(map[string]domain.Task),
		apps:  make(map[string]domain.Application),
		keys:  make(map[string]*domain.APIKey),
	}
}

func (s *Store) Insert(ctx context.Context, task domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task.Status = domain.TaskStatusPending
	task.RetryCount = 0
	s.tasks[task.ID] = task
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	return task, nil
}

func (s *Store) Acquire(ctx context.Context, id string, expectedRetryCount int) (domain.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.Status != domain.TaskStatusPending || task.RetryCount != expectedRetryCount {
		return domain.Task{}, false, nil
	}

	task.Status = domain.TaskStatusInProgress
	task.RetryCount = expectedRetryCount + 1
	task.Modified = time.Now().UTC()
	s.tasks[id] = task
	return task, true, nil
}

func (s *Store) Commit(ctx context.Context, id string, expectedRetryCount int, status domain.TaskStatus, nextRetryCount int, due time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok || task.RetryCount != expectedRetryCount {
		return false, nil
	}

	task.Status = status
	task.RetryCount = nextRetryCount
	task.Due = due
	task.Modified = time.Now().UTC()
	s.tasks[id] = task
	return true, nil
}

func (s *Store) ScanDue(ctx context.Context, before time.Time, limit int) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []domain.Task
	for _, task := range s.tasks {
		if task.Status == domain.TaskStatusPending && !task.Due.After(before) {
			due = append(due, task)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Due.Before(due[j].Due) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *Store) CountPending(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, task := range s.tasks {
		if task.Status == domain.TaskStatusPending {
			count++
		}
	}
	return count, nil
}

func (s *Store) CreateApplication(ctx context.Context, app domain.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[app.ID] = app
	return nil
}

func (s *Store) Create(ctx context.Context, key *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *key
	s.keys[key.ShortToken] = &cp
	return nil
}

func (s *Store) FindByShortToken(ctx context.Context, shortToken string) (*domain.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[shortToken]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *key
	return &cp, nil
}

func (s *Store) UpdateLastUsed(ctx context.Context, keyID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range s.keys {
		if key.ID == keyID {
			key.LastUsed = &at
			return nil
		}
	}
	return domain.ErrNotFound
}
