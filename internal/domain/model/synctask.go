package model

import "time"

// SyncTask records one synchronization attempt for a repository. Tasks are
// an append-only audit trail: each dispatch creates its own task, a task is
// only ever written by the worker processing it, and its status is
// independent of the repository's own status field.
type SyncTask struct {
	ID            int64
	RepositoryID  int64
	Status        SyncStatus
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CommitsSynced int
	ErrorMessage  string
	TaskHandle    string // Opaque handle from the task dispatcher.
	CreatedAt     time.Time
}
