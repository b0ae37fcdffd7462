package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tastenmo/spienx-hub/internal/domain/model"
	"github.com/tastenmo/spienx-hub/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PolicyStore = (*PolicyRepo)(nil)

// PolicyRepo is the SQLite implementation of the PolicyStore port interface.
// The subject exclusivity invariant is enforced twice: by Validate before
// any write, and by a CHECK constraint in the schema.
type PolicyRepo struct {
	db *DB
}

// NewPolicyRepo creates a new PolicyRepo backed by the given DB.
func NewPolicyRepo(db *DB) *PolicyRepo {
	return &PolicyRepo{db: db}
}

// Upsert inserts the policy or updates the permission of the existing policy
// with the same (repository, team) or (repository, role) key. Policies that
// fail validation are rejected before touching the database.
func (r *PolicyRepo) Upsert(ctx context.Context, policy model.AccessPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}

	if policy.TeamID != nil {
		const query = `
			INSERT INTO access_policies (repository_id, team_id, role, permission) VALUES (?, ?, NULL, ?)
			ON CONFLICT(repository_id, team_id) DO UPDATE SET permission = excluded.permission
		`
		_, err := r.db.Writer.ExecContext(ctx, query, policy.RepositoryID, *policy.TeamID, string(policy.Permission))
		if err != nil {
			return fmt.Errorf("upsert team policy repo=%d team=%d: %w", policy.RepositoryID, *policy.TeamID, err)
		}
		return nil
	}

	const query = `
		INSERT INTO access_policies (repository_id, team_id, role, permission) VALUES (?, NULL, ?, ?)
		ON CONFLICT(repository_id, role) DO UPDATE SET permission = excluded.permission
	`
	_, err := r.db.Writer.ExecContext(ctx, query, policy.RepositoryID, string(*policy.Role), string(policy.Permission))
	if err != nil {
		return fmt.Errorf("upsert role policy repo=%d role=%s: %w", policy.RepositoryID, *policy.Role, err)
	}
	return nil
}

// GetRolePolicy returns the role-scoped policy for the repository, or
// nil, nil if none exists.
func (r *PolicyRepo) GetRolePolicy(ctx context.Context, repositoryID int64, role model.Permission) (*model.AccessPolicy, error) {
	const query = `
		SELECT id, repository_id, team_id, role, permission
		FROM access_policies WHERE repository_id = ? AND role = ?
	`

	policy, err := scanPolicy(r.db.Reader.QueryRowContext(ctx, query, repositoryID, string(role)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get role policy repo=%d role=%s: %w", repositoryID, role, err)
	}
	return policy, nil
}

// ListTeamPolicies returns all team-scoped policies for the repository.
func (r *PolicyRepo) ListTeamPolicies(ctx context.Context, repositoryID int64) ([]model.AccessPolicy, error) {
	const query = `
		SELECT id, repository_id, team_id, role, permission
		FROM access_policies WHERE repository_id = ? AND team_id IS NOT NULL
		ORDER BY team_id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("list team policies: %w", err)
	}
	defer rows.Close()

	var policies []model.AccessPolicy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		policies = append(policies, *policy)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policies: %w", err)
	}

	return policies, nil
}

func scanPolicy(s scanner) (*model.AccessPolicy, error) {
	var policy model.AccessPolicy
	var teamID sql.NullInt64
	var role sql.NullString
	var permission string

	if err := s.Scan(&policy.ID, &policy.RepositoryID, &teamID, &role, &permission); err != nil {
		return nil, err
	}

	if teamID.Valid {
		policy.TeamID = &teamID.Int64
	}
	if role.Valid {
		r := model.Permission(role.String)
		policy.Role = &r
	}
	policy.Permission = model.Permission(permission)

	return &policy, nil
}
