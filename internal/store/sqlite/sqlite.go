// Package sqlite implements store.Store and store.ApplicationStore on top
// of modernc.org/sqlite, a pure-Go SQLite driver. It targets local
// development and single-process deployments where running a Postgres
// instance is more ceremony than the job warrants.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rezkam/torque/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS applications (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS api_keys (
	id TEXT PRIMARY KEY,
	application_id TEXT NOT NULL REFERENCES applications(id),
	key_type TEXT NOT NULL,
	service TEXT NOT NULL,
	version TEXT NOT NULL,
	short_token TEXT NOT NULL UNIQUE,
	long_secret_hash TEXT NOT NULL,
	name TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL,
	last_used_at TIMESTAMP,
	expires_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	application_id TEXT NOT NULL REFERENCES applications(id),
	url TEXT NOT NULL,
	body BLOB NOT NULL DEFAULT '',
	charset TEXT NOT NULL DEFAULT 'utf-8',
	enctype TEXT NOT NULL DEFAULT 'application/x-www-form-urlencoded',
	headers TEXT NOT NULL DEFAULT '{}',
	timeout INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	retry_count INTEGER NOT NULL DEFAULT 0,
	due TIMESTAMP NOT NULL,
	created TIMESTAMP NOT NULL,
	modified TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due) WHERE status = 'pending';
`

// Store is a database/sql-backed implementation using the pure-Go sqlite driver.
type Store struct {
	db *sql.DB
}

// NewStore opens (and, if necessary, creates) a SQLite database at path and
// applies the schema. Use ":memory:" for an ephemeral database.
func NewStore(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; one connection avoids SQLITE_BUSY races

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Insert(ctx context.Context, task domain.Task) error {
	headers, err := json.Marshal(task.Headers)
	if err != nil {
		return fmt.Errorf("marshaling headers: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, application_id, url, body, charset, enctype, headers, timeout, status, retry_count, due, created, modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending', 0, ?, ?, ?)
	`, task.ID, task.ApplicationID, task.URL, task.Body, task.Charset, task.Enctype, headers, task.Timeout, task.Due, now, now)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, application_id, url, body, charset, enctype, headers, timeout, status, retry_count, due, created, modified
		FROM tasks WHERE id = ?
	`, id)
	return scanTask(row)
}

func (s *Store) Acquire(ctx context.Context, id string, expectedRetryCount int) (domain.Task, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = 'in_progress', retry_count = retry_count + 1, modified = ?
		WHERE id = ? AND retry_count = ? AND status = 'pending'
	`, time.Now().UTC(), id, expectedRetryCount)
	if err != nil {
		return domain.Task{}, false, fmt.Errorf("acquiring task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Task{}, false, fmt.Errorf("acquiring task: %w", err)
	}
	if affected == 0 {
		return domain.Task{}, false, nil
	}

	task, err := s.Get(ctx, id)
	if err != nil {
		return domain.Task{}, false, err
	}
	return task, true, nil
}

func (s *Store) Commit(ctx context.Context, id string, expectedRetryCount int, status domain.TaskStatus, nextRetryCount int, due time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, retry_count = ?, due = ?, modified = ?
		WHERE id = ? AND retry_count = ?
	`, string(status), nextRetryCount, due, time.Now().UTC(), id, expectedRetryCount)
	if err != nil {
		return false, fmt.Errorf("committing task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("committing task: %w", err)
	}
	return affected == 1, nil
}

func (s *Store) ScanDue(ctx context.Context, before time.Time, limit int) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, application_id, url, body, charset, enctype, headers, timeout, status, retry_count, due, created, modified
		FROM tasks WHERE status = 'pending' AND due <= ? ORDER BY due LIMIT ?
	`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("scanning due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (s *Store) CountPending(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM tasks WHERE status = 'pending'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting pending tasks: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var task domain.Task
	var status string
	var headers string

	err := row.Scan(
		&task.ID, &task.ApplicationID, &task.URL, &task.Body, &task.Charset, &task.Enctype,
		&headers, &task.Timeout, &status, &task.RetryCount, &task.Due, &task.Created, &task.Modified,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("scanning task row: %w", err)
	}

	taskStatus, err := domain.NewTaskStatus(status)
	if err != nil {
		return domain.Task{}, err
	}
	task.Status = taskStatus

	if headers != "" {
		if err := json.Unmarshal([]byte(headers), &task.Headers); err != nil {
			return domain.Task{}, fmt.Errorf("unmarshaling headers: %w", err)
		}
	}

	return task, nil
}

func (s *Store) CreateApplication(ctx context.Context, app domain.Application) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO applications (id, name, created_at) VALUES (?, ?, ?)`,
		app.ID, app.Name, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("inserting application: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, key *domain.APIKey) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, application_id, key_type, service, version, short_token, long_secret_hash, name, is_active, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, key.ID, key.ApplicationID, key.KeyType, key.Service, key.Version, key.ShortToken, key.LongSecretHash, key.Name, key.IsActive, key.CreatedAt, key.ExpiresAt)
	if err != nil {
		return fmt.Errorf("inserting API key: %w", err)
	}
	return nil
}

func (s *Store) FindByShortToken(ctx context.Context, shortToken string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := s.db.QueryRowContext(ctx, `
		SELECT id, application_id, key_type, service, version, short_token, long_secret_hash, name, is_active, created_at, last_used_at, expires_at
		FROM api_keys WHERE short_token = ?
	`, shortToken).Scan(
		&key.ID, &key.ApplicationID, &key.KeyType, &key.Service, &key.Version, &key.ShortToken,
		&key.LongSecretHash, &key.Name, &key.IsActive, &key.CreatedAt, &key.LastUsed, &key.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding API key: %w", err)
	}
	return &key, nil
}

func (s *Store) UpdateLastUsed(ctx context.Context, keyID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = ? WHERE id = ?`, at, keyID)
	if err != nil {
		return fmt.Errorf("updating API key last_used_at: %w", err)
	}
	return nil
}
