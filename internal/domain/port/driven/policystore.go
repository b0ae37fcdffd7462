package driven

import (
	"context"

	"github.com/tastenmo/spienx-hub/internal/domain/model"
)

// PolicyStore defines the driven port for repository access policies.
// Implementations must reject policies that fail model.AccessPolicy.Validate
// and enforce at most one policy per (repository, team) and per
// (repository, role).
type PolicyStore interface {
	// Upsert inserts the policy or updates the permission of an existing
	// policy with the same (repository, team) or (repository, role) key.
	Upsert(ctx context.Context, policy model.AccessPolicy) error

	// GetRolePolicy returns the role-scoped policy for the repository, or
	// nil, nil if none exists.
	GetRolePolicy(ctx context.Context, repositoryID int64, role model.Permission) (*model.AccessPolicy, error)

	// ListTeamPolicies returns all team-scoped policies for the repository.
	ListTeamPolicies(ctx context.Context, repositoryID int64) ([]model.AccessPolicy, error)
}
