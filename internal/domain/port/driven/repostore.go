package driven

import (
	"context"
	"errors"

	"github.com/tastenmo/spienx-hub/internal/domain/model"
)

// Sentinel errors returned by RepoStore implementations.
var (
	// ErrRepoNotFound indicates the requested repository does not exist.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrRepoAlreadyExists indicates a repository with the same
	// (organisation, name) or local path already exists.
	ErrRepoAlreadyExists = errors.New("repository already exists")
)

// RepoStore defines the driven port for repository persistence. Add returns
// ErrRepoAlreadyExists when the (organisation, name) pair or the local path
// is taken. Lookups return nil, nil when the repository does not exist.
type RepoStore interface {
	Add(ctx context.Context, repo model.Repository) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.Repository, error)
	GetByName(ctx context.Context, organisationID int64, name string) (*model.Repository, error)
	ListByOrganisation(ctx context.Context, organisationID int64) ([]model.Repository, error)

	// Update persists mutable repository fields (status, error message, git
	// metadata, organisation and local path after a migration).
	Update(ctx context.Context, repo model.Repository) error

	// Delete removes the repository record and, via cascade, its branches,
	// sync tasks, and access policies.
	Delete(ctx context.Context, id int64) error

	// SetMirrorSettings inserts or replaces the mirror side record.
	SetMirrorSettings(ctx context.Context, settings model.MirrorSettings) error
	GetMirror(ctx context.Context, repositoryID int64) (*model.Mirror, error)

	// ListAutoSyncMirrors returns active mirrors with auto-sync enabled.
	ListAutoSyncMirrors(ctx context.Context) ([]model.Mirror, error)

	// ReplaceBranches replaces the branch snapshot for a repository.
	ReplaceBranches(ctx context.Context, repositoryID int64, branches []model.Branch) error
	ListBranches(ctx context.Context, repositoryID int64) ([]model.Branch, error)
}
