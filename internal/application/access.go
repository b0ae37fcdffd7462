package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tastenmo/spienx-hub/internal/domain/model"
	"github.com/tastenmo/spienx-hub/internal/domain/port/driven"
)

// AccessResolver computes a user's effective permission on a repository from
// organisation membership, team membership, and per-repository policies.
type AccessResolver struct {
	orgs     driven.OrgStore
	policies driven.PolicyStore
	logger   *slog.Logger
}

// NewAccessResolver creates an AccessResolver.
func NewAccessResolver(orgs driven.OrgStore, policies driven.PolicyStore, logger *slog.Logger) *AccessResolver {
	return &AccessResolver{orgs: orgs, policies: policies, logger: logger}
}

// accessFacts are the inputs to effective-permission computation, gathered
// up front so the computation itself is pure.
type accessFacts struct {
	superuser      bool
	publicRepo     bool
	membershipRole *model.Permission
	rolePolicy     *model.Permission
	teamPolicies   []model.Permission
}

// effectivePermission is bump-up-only: the result is the maximum permission
// any single source grants, and a later, lower-ranked source never lowers an
// already established floor.
func effectivePermission(facts accessFacts) model.Permission {
	if facts.superuser {
		return model.PermissionAdmin
	}

	result := model.PermissionNone
	if facts.publicRepo {
		result = model.MaxPermission(result, model.PermissionRead)
	}
	if facts.membershipRole != nil {
		result = model.MaxPermission(result, *facts.membershipRole)
	}
	if facts.rolePolicy != nil {
		result = model.MaxPermission(result, *facts.rolePolicy)
	}
	for _, p := range facts.teamPolicies {
		result = model.MaxPermission(result, p)
	}
	return result
}

// Resolve returns the user's effective permission on the repository. A nil
// or inactive user is unauthenticated and resolves against the public floor
// only; a nil repository resolves to none.
func (r *AccessResolver) Resolve(ctx context.Context, user *model.User, repo *model.Repository) (model.Permission, error) {
	if repo == nil {
		return model.PermissionNone, nil
	}
	if user == nil || !user.IsActive {
		return effectivePermission(accessFacts{publicRepo: repo.IsPublic}), nil
	}
	if user.IsSuperuser {
		return model.PermissionAdmin, nil
	}

	facts := accessFacts{publicRepo: repo.IsPublic}

	membership, err := r.orgs.GetMembership(ctx, user.ID, repo.OrganisationID)
	if err != nil {
		return model.PermissionNone, fmt.Errorf("resolve membership: %w", err)
	}
	if membership != nil && membership.IsActive {
		role := membership.Role
		facts.membershipRole = &role

		policy, err := r.policies.GetRolePolicy(ctx, repo.ID, role)
		if err != nil {
			return model.PermissionNone, fmt.Errorf("resolve role policy: %w", err)
		}
		if policy != nil {
			facts.rolePolicy = &policy.Permission
		}
	}

	teams, err := r.orgs.ListUserTeams(ctx, user.ID, repo.OrganisationID)
	if err != nil {
		return model.PermissionNone, fmt.Errorf("resolve teams: %w", err)
	}
	if len(teams) > 0 {
		teamPolicies, err := r.policies.ListTeamPolicies(ctx, repo.ID)
		if err != nil {
			return model.PermissionNone, fmt.Errorf("resolve team policies: %w", err)
		}
		byTeam := make(map[int64]model.Permission, len(teamPolicies))
		for _, p := range teamPolicies {
			if p.TeamID != nil {
				byTeam[*p.TeamID] = p.Permission
			}
		}
		for _, team := range teams {
			if p, ok := byTeam[team.ID]; ok {
				facts.teamPolicies = append(facts.teamPolicies, p)
			}
		}
	}

	result := effectivePermission(facts)
	r.logger.Debug("resolved access",
		"user", user.ID, "repository", repo.ID, "permission", string(result))
	return result, nil
}
