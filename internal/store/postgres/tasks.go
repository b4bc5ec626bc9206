package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rezkam/torque/internal/domain"
)

func (s *Store) Insert(ctx context.Context, task domain.Task) error {
	headers, err := json.Marshal(task.Headers)
	if err != nil {
		return fmt.Errorf("marshaling headers: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO tasks (id, application_id, url, body, charset, enctype, headers, timeout, status, retry_count, due)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', 0, $9)
	`, task.ID, task.ApplicationID, task.URL, task.Body, task.Charset, task.Enctype, headers, task.Timeout, task.Due)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.Task, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, application_id, url, body, charset, enctype, headers, timeout, status, retry_count, due, created, modified
		FROM tasks WHERE id = $1
	`, id)
	return scanTask(row)
}

func (s *Store) Acquire(ctx context.Context, id string, expectedRetryCount int) (domain.Task, bool, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE tasks
		SET status = 'in_progress', retry_count = retry_count + 1, modified = now()
		WHERE id = $1 AND retry_count = $2 AND status = 'pending'
		RETURNING id, application_id, url, body, charset, enctype, headers, timeout, status, retry_count, due, created, modified
	`, id, expectedRetryCount)

	task, err := scanTask(row)
	if errors.Is(err, domain.ErrTaskNotFound) {
		return domain.Task{}, false, nil
	}
	if err != nil {
		return domain.Task{}, false, fmt.Errorf("acquiring task: %w", err)
	}
	return task, true, nil
}

func (s *Store) Commit(ctx context.Context, id string, expectedRetryCount int, status domain.TaskStatus, nextRetryCount int, due time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tasks
		SET status = $3, retry_count = $4, due = $5, modified = now()
		WHERE id = $1 AND retry_count = $2
	`, id, expectedRetryCount, string(status), nextRetryCount, due)
	if err != nil {
		return false, fmt.Errorf("committing task: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ScanDue(ctx context.Context, before time.Time, limit int) ([]domain.Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, application_id, url, body, charset, enctype, headers, timeout, status, retry_count, due, created, modified
		FROM tasks
		WHERE status = 'pending' AND due <= $1
		ORDER BY due
		LIMIT $2
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
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM tasks WHERE status = 'pending'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting pending tasks: %w", err)
	}
	return count, nil
}

// rowScanner is satisfied by both pgx.Row (QueryRow) and pgx.Rows (Query),
// letting scanTask serve Get/Acquire (single row) and ScanDue (many rows)
// alike.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var task domain.Task
	var status string
	var headers []byte

	err := row.Scan(
		&task.ID, &task.ApplicationID, &task.URL, &task.Body, &task.Charset, &task.Enctype,
		&headers, &task.Timeout, &status, &task.RetryCount, &task.Due, &task.Created, &task.Modified,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Task{}, domain.ErrTaskNotFound
		}
		return domain.Task{}, fmt.Errorf("scanning task row: %w", err)
	}

	taskStatus, err := domain.NewTaskStatus(status)
	if err != nil {
		return domain.Task{}, err
	}
	task.Status = taskStatus

	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &task.Headers); err != nil {
			return domain.Task{}, fmt.Errorf("unmarshaling headers: %w", err)
		}
	}

	return task, nil
}
