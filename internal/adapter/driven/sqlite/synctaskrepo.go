package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tastenmo/spienx-hub/internal/domain/model"
	"github.com/tastenmo/spienx-hub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SyncTaskStore = (*SyncTaskRepo)(nil)

// SyncTaskRepo is the SQLite implementation of the SyncTaskStore port
// interface.
type SyncTaskRepo struct {
	db *DB
}

// NewSyncTaskRepo creates a new SyncTaskRepo backed by the given DB.
func NewSyncTaskRepo(db *DB) *SyncTaskRepo {
	return &SyncTaskRepo{db: db}
}

// Add inserts a new sync task record and returns its ID.
func (r *SyncTaskRepo) Add(ctx context.Context, task model.SyncTask) (int64, error) {
	const query = `
		INSERT INTO sync_tasks (repository_id, status, started_at, completed_at, commits_synced, error_message, task_handle, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := task.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	status := task.Status
	if status == "" {
		status = model.SyncStatusPending
	}

	res, err := r.db.Writer.ExecContext(ctx, query,
		task.RepositoryID, string(status), nullTime(task.StartedAt), nullTime(task.CompletedAt),
		task.CommitsSynced, task.ErrorMessage, task.TaskHandle, createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("add sync task repo=%d: %w", task.RepositoryID, err)
	}

	return res.LastInsertId()
}

// Update persists a task's progress fields.
func (r *SyncTaskRepo) Update(ctx context.Context, task model.SyncTask) error {
	const query = `
		UPDATE sync_tasks SET
			status = ?, started_at = ?, completed_at = ?, commits_synced = ?, error_message = ?, task_handle = ?
		WHERE id = ?
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		string(task.Status), nullTime(task.StartedAt), nullTime(task.CompletedAt),
		task.CommitsSynced, task.ErrorMessage, task.TaskHandle, task.ID,
	)
	if err != nil {
		return fmt.Errorf("update sync task %d: %w", task.ID, err)
	}

	return nil
}

// GetByID retrieves a sync task by ID. Returns nil, nil if it does not exist.
func (r *SyncTaskRepo) GetByID(ctx context.Context, id int64) (*model.SyncTask, error) {
	const query = `
		SELECT id, repository_id, status, started_at, completed_at, commits_synced, error_message, task_handle, created_at
		FROM sync_tasks WHERE id = ?
	`

	task, err := scanSyncTask(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync task %d: %w", id, err)
	}
	return task, nil
}

// ListByRepository returns the sync task audit trail for a repository, newest
// first.
func (r *SyncTaskRepo) ListByRepository(ctx context.Context, repositoryID int64) ([]model.SyncTask, error) {
	const query = `
		SELECT id, repository_id, status, started_at, completed_at, commits_synced, error_message, task_handle, created_at
		FROM sync_tasks WHERE repository_id = ? ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("list sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.SyncTask
	for rows.Next() {
		task, err := scanSyncTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync task: %w", err)
		}
		tasks = append(tasks, *task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync tasks: %w", err)
	}

	return tasks, nil
}

func scanSyncTask(s scanner) (*model.SyncTask, error) {
	var task model.SyncTask
	var status, createdAt string
	var startedAt, completedAt sql.NullString

	err := s.Scan(&task.ID, &task.RepositoryID, &status, &startedAt, &completedAt,
		&task.CommitsSynced, &task.ErrorMessage, &task.TaskHandle, &createdAt)
	if err != nil {
		return nil, err
	}

	task.Status = model.SyncStatus(status)
	task.StartedAt, err = parseNullTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	task.CompletedAt, err = parseNullTime(completedAt)
	if err != nil {
		return nil, fmt.Errorf("parse completed_at: %w", err)
	}
	task.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &task, nil
}
