package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tastenmo/spienx-hub/internal/domain/model"
	"github.com/tastenmo/spienx-hub/internal/domain/port/driven"
)

// SyncTracker records the lifecycle of individual synchronization attempts.
// Each attempt gets its own record, created before dispatch and thereafter
// written only by the worker processing it. Records are an append-only audit
// trail: a task's final status is independent of the repository's own status.
type SyncTracker struct {
	tasks  driven.SyncTaskStore
	logger *slog.Logger
	now    func() time.Time
}

// NewSyncTracker creates a SyncTracker.
func NewSyncTracker(tasks driven.SyncTaskStore, logger *slog.Logger) *SyncTracker {
	return &SyncTracker{tasks: tasks, logger: logger, now: time.Now}
}

// Create records a pending sync attempt for the repository and returns the
// task ID. Callers create the task before dispatching the work.
func (t *SyncTracker) Create(ctx context.Context, repositoryID int64) (int64, error) {
	id, err := t.tasks.Add(ctx, model.SyncTask{
		RepositoryID: repositoryID,
		Status:       model.SyncStatusPending,
	})
	if err != nil {
		return 0, fmt.Errorf("create sync task: %w", err)
	}
	return id, nil
}

// AttachHandle records the dispatcher's correlation handle on the task.
func (t *SyncTracker) AttachHandle(ctx context.Context, taskID int64, handle string) error {
	task, err := t.load(ctx, taskID)
	if err != nil {
		return err
	}
	task.TaskHandle = handle
	return t.tasks.Update(ctx, *task)
}

// Begin transitions the task to running. started_at is set exactly once, on
// the first Begin; a retried attempt keeps the original start time.
func (t *SyncTracker) Begin(ctx context.Context, taskID int64) error {
	task, err := t.load(ctx, taskID)
	if err != nil {
		return err
	}
	task.Status = model.SyncStatusRunning
	if task.StartedAt == nil {
		startedAt := t.now().UTC()
		task.StartedAt = &startedAt
	}
	return t.tasks.Update(ctx, *task)
}

// Complete marks the task completed with the number of commits synced.
func (t *SyncTracker) Complete(ctx context.Context, taskID int64, commitsSynced int) error {
	task, err := t.load(ctx, taskID)
	if err != nil {
		return err
	}
	task.Status = model.SyncStatusCompleted
	task.CommitsSynced = commitsSynced
	task.ErrorMessage = ""
	if task.CompletedAt == nil {
		completedAt := t.now().UTC()
		task.CompletedAt = &completedAt
	}
	return t.tasks.Update(ctx, *task)
}

// Fail marks the task failed with the error message.
func (t *SyncTracker) Fail(ctx context.Context, taskID int64, message string) error {
	task, err := t.load(ctx, taskID)
	if err != nil {
		return err
	}
	task.Status = model.SyncStatusFailed
	task.ErrorMessage = message
	if task.CompletedAt == nil {
		completedAt := t.now().UTC()
		task.CompletedAt = &completedAt
	}
	return t.tasks.Update(ctx, *task)
}

// History returns the repository's sync attempts, newest first.
func (t *SyncTracker) History(ctx context.Context, repositoryID int64) ([]model.SyncTask, error) {
	return t.tasks.ListByRepository(ctx, repositoryID)
}

func (t *SyncTracker) load(ctx context.Context, taskID int64) (*model.SyncTask, error) {
	task, err := t.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load sync task %d: %w", taskID, err)
	}
	if task == nil {
		return nil, fmt.Errorf("sync task %d not found", taskID)
	}
	return task, nil
}
