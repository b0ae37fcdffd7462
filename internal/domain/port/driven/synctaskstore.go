package driven

import (
	"context"

	"github.com/tastenmo/spienx-hub/internal/domain/model"
)

// SyncTaskStore defines the driven port for the sync attempt audit trail.
// Tasks are append-only: created once per dispatch and thereafter written
// only by the worker processing them.
type SyncTaskStore interface {
	Add(ctx context.Context, task model.SyncTask) (int64, error)
	Update(ctx context.Context, task model.SyncTask) error
	GetByID(ctx context.Context, id int64) (*model.SyncTask, error)
	ListByRepository(ctx context.Context, repositoryID int64) ([]model.SyncTask, error)
}
