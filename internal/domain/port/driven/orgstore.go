package driven

import (
	"context"

	"github.com/tastenmo/spienx-hub/internal/domain/model"
)

// OrgStore defines the driven port for organisation, user, membership, and
// team persistence. Lookups return nil, nil (or an empty slice) when the
// record does not exist; access resolution treats absence as "no grant".
type OrgStore interface {
	AddOrganisation(ctx context.Context, org model.Organisation) (int64, error)
	GetOrganisation(ctx context.Context, id int64) (*model.Organisation, error)

	AddUser(ctx context.Context, user model.User) (int64, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)

	AddMembership(ctx context.Context, m model.Membership) (int64, error)

	// GetMembership returns the user's membership in the organisation,
	// active or not.
	GetMembership(ctx context.Context, userID, organisationID int64) (*model.Membership, error)

	AddTeam(ctx context.Context, team model.Team) (int64, error)
	AddTeamMember(ctx context.Context, tm model.TeamMembership) (int64, error)

	// ListUserTeams returns the active teams within the organisation that the
	// user actively belongs to.
	ListUserTeams(ctx context.Context, userID, organisationID int64) ([]model.Team, error)
}
