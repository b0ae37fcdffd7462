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
var _ driven.OrgStore = (*OrgRepo)(nil)

// OrgRepo is the SQLite implementation of the OrgStore port interface.
type OrgRepo struct {
	db *DB
}

// NewOrgRepo creates a new OrgRepo backed by the given DB.
func NewOrgRepo(db *DB) *OrgRepo {
	return &OrgRepo{db: db}
}

// AddOrganisation inserts a new organisation and returns its ID.
func (r *OrgRepo) AddOrganisation(ctx context.Context, org model.Organisation) (int64, error) {
	const query = `INSERT INTO organisations (name, slug, is_active, created_at) VALUES (?, ?, ?, ?)`

	createdAt := org.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := r.db.Writer.ExecContext(ctx, query, org.Name, org.Slug, boolToInt(org.IsActive), createdAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("add organisation %s: %w", org.Name, err)
	}
	return res.LastInsertId()
}

// GetOrganisation retrieves an organisation by ID. Returns nil, nil if it
// does not exist.
func (r *OrgRepo) GetOrganisation(ctx context.Context, id int64) (*model.Organisation, error) {
	const query = `SELECT id, name, slug, is_active, created_at FROM organisations WHERE id = ?`

	var org model.Organisation
	var createdAt string
	err := r.db.Reader.QueryRowContext(ctx, query, id).Scan(&org.ID, &org.Name, &org.Slug, &org.IsActive, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organisation %d: %w", id, err)
	}

	org.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &org, nil
}

// AddUser inserts a new user and returns its ID.
func (r *OrgRepo) AddUser(ctx context.Context, user model.User) (int64, error) {
	const query = `INSERT INTO users (username, is_superuser, is_active) VALUES (?, ?, ?)`

	res, err := r.db.Writer.ExecContext(ctx, query, user.Username, boolToInt(user.IsSuperuser), boolToInt(user.IsActive))
	if err != nil {
		return 0, fmt.Errorf("add user %s: %w", user.Username, err)
	}
	return res.LastInsertId()
}

// GetUser retrieves a user by ID. Returns nil, nil if the user does not exist.
func (r *OrgRepo) GetUser(ctx context.Context, id int64) (*model.User, error) {
	const query = `SELECT id, username, is_superuser, is_active FROM users WHERE id = ?`

	var user model.User
	err := r.db.Reader.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Username, &user.IsSuperuser, &user.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &user, nil
}

// AddMembership inserts a new organisation membership and returns its ID.
func (r *OrgRepo) AddMembership(ctx context.Context, m model.Membership) (int64, error) {
	const query = `INSERT INTO memberships (user_id, organisation_id, role, is_active, created_at) VALUES (?, ?, ?, ?, ?)`

	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := r.db.Writer.ExecContext(ctx, query, m.UserID, m.OrganisationID, string(m.Role), boolToInt(m.IsActive), createdAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("add membership user=%d org=%d: %w", m.UserID, m.OrganisationID, err)
	}
	return res.LastInsertId()
}

// GetMembership retrieves a user's membership in an organisation. Returns
// nil, nil if none exists.
func (r *OrgRepo) GetMembership(ctx context.Context, userID, organisationID int64) (*model.Membership, error) {
	const query = `
		SELECT id, user_id, organisation_id, role, is_active, created_at
		FROM memberships
		WHERE user_id = ? AND organisation_id = ?
	`

	var m model.Membership
	var role, createdAt string
	err := r.db.Reader.QueryRowContext(ctx, query, userID, organisationID).
		Scan(&m.ID, &m.UserID, &m.OrganisationID, &role, &m.IsActive, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get membership user=%d org=%d: %w", userID, organisationID, err)
	}

	m.Role = model.Permission(role)
	m.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &m, nil
}

// AddTeam inserts a new team and returns its ID.
func (r *OrgRepo) AddTeam(ctx context.Context, team model.Team) (int64, error) {
	const query = `INSERT INTO teams (organisation_id, name, slug, is_active, created_at) VALUES (?, ?, ?, ?, ?)`

	createdAt := team.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := r.db.Writer.ExecContext(ctx, query, team.OrganisationID, team.Name, team.Slug, boolToInt(team.IsActive), createdAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("add team %s: %w", team.Slug, err)
	}
	return res.LastInsertId()
}

// AddTeamMember inserts a new team membership and returns its ID.
func (r *OrgRepo) AddTeamMember(ctx context.Context, tm model.TeamMembership) (int64, error) {
	const query = `INSERT INTO team_memberships (team_id, user_id, is_active) VALUES (?, ?, ?)`

	res, err := r.db.Writer.ExecContext(ctx, query, tm.TeamID, tm.UserID, boolToInt(tm.IsActive))
	if err != nil {
		return 0, fmt.Errorf("add team member team=%d user=%d: %w", tm.TeamID, tm.UserID, err)
	}
	return res.LastInsertId()
}

// ListUserTeams returns the active teams in the organisation that the user
// actively belongs to, ordered by slug.
func (r *OrgRepo) ListUserTeams(ctx context.Context, userID, organisationID int64) ([]model.Team, error) {
	const query = `
		SELECT t.id, t.organisation_id, t.name, t.slug, t.is_active, t.created_at
		FROM teams t
		JOIN team_memberships tm ON tm.team_id = t.id
		WHERE tm.user_id = ? AND t.organisation_id = ? AND t.is_active = 1 AND tm.is_active = 1
		ORDER BY t.slug
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, userID, organisationID)
	if err != nil {
		return nil, fmt.Errorf("list user teams: %w", err)
	}
	defer rows.Close()

	var teams []model.Team
	for rows.Next() {
		var team model.Team
		var createdAt string
		if err := rows.Scan(&team.ID, &team.OrganisationID, &team.Name, &team.Slug, &team.IsActive, &createdAt); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		team.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		teams = append(teams, team)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate teams: %w", err)
	}

	return teams, nil
}
