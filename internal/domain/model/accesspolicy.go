package model

import "errors"

// Validation errors for AccessPolicy.
var (
	// ErrPolicySubjectMissing indicates neither a team nor a role is set.
	ErrPolicySubjectMissing = errors.New("access policy must bind a team or a role")

	// ErrPolicySubjectAmbiguous indicates both a team and a role are set.
	ErrPolicySubjectAmbiguous = errors.New("access policy must bind a team or a role, not both")
)

// AccessPolicy grants a permission level on a repository to exactly one of
// a team or an organisation-membership role. At most one policy exists per
// (repository, team) and per (repository, role).
type AccessPolicy struct {
	ID           int64
	RepositoryID int64
	TeamID       *int64
	Role         *Permission
	Permission   Permission
}

// Validate enforces the subject exclusivity invariant at write time:
// exactly one of TeamID and Role must be set.
func (p AccessPolicy) Validate() error {
	hasTeam := p.TeamID != nil
	hasRole := p.Role != nil

	switch {
	case hasTeam && hasRole:
		return ErrPolicySubjectAmbiguous
	case !hasTeam && !hasRole:
		return ErrPolicySubjectMissing
	}
	return nil
}
