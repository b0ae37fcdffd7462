package model

import "time"

// Organisation is the tenant boundary. Repositories, teams, and memberships
// all hang off an organisation and are cascade-deleted with it.
type Organisation struct {
	ID        int64
	Name      string
	Slug      string
	IsActive  bool
	CreatedAt time.Time
}

// User is the minimal identity the core needs for access resolution.
type User struct {
	ID          int64
	Username    string
	IsSuperuser bool
	IsActive    bool
}

// Membership binds a user to an organisation with a role. The role maps
// directly onto a permission level.
type Membership struct {
	ID             int64
	UserID         int64
	OrganisationID int64
	Role           Permission
	IsActive       bool
	CreatedAt      time.Time
}

// Team is a named group of users within one organisation.
type Team struct {
	ID             int64
	OrganisationID int64
	Name           string
	Slug           string
	IsActive       bool
	CreatedAt      time.Time
}

// TeamMembership binds a user to a team.
type TeamMembership struct {
	ID       int64
	TeamID   int64
	UserID   int64
	IsActive bool
}
