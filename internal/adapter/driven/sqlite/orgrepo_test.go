package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastenmo/spienx-hub/internal/domain/model"
)

func TestOrgRepo_OrganisationRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	orgs := NewOrgRepo(db)
	ctx := context.Background()

	id, err := orgs.AddOrganisation(ctx, model.Organisation{Name: "Acme Corp", Slug: "acme", IsActive: true})
	require.NoError(t, err)

	got, err := orgs.GetOrganisation(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme Corp", got.Name)
	assert.Equal(t, "acme", got.Slug)
	assert.True(t, got.IsActive)
	assert.False(t, got.CreatedAt.IsZero())

	missing, err := orgs.GetOrganisation(ctx, id+1)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrgRepo_Membership(t *testing.T) {
	db := setupTestDB(t)
	orgs := NewOrgRepo(db)
	ctx := context.Background()
	orgID := seedOrg(t, db, "acme")

	userID, err := orgs.AddUser(ctx, model.User{Username: "carol", IsActive: true})
	require.NoError(t, err)

	_, err = orgs.AddMembership(ctx, model.Membership{
		UserID:         userID,
		OrganisationID: orgID,
		Role:           model.PermissionWrite,
		IsActive:       true,
	})
	require.NoError(t, err)

	m, err := orgs.GetMembership(ctx, userID, orgID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, model.PermissionWrite, m.Role)
	assert.True(t, m.IsActive)

	// A user with no membership in the organisation yields nil, nil.
	outsiderID, err := orgs.AddUser(ctx, model.User{Username: "mallory", IsActive: true})
	require.NoError(t, err)
	none, err := orgs.GetMembership(ctx, outsiderID, orgID)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestOrgRepo_ListUserTeams_FiltersInactive(t *testing.T) {
	db := setupTestDB(t)
	orgs := NewOrgRepo(db)
	ctx := context.Background()
	orgID := seedOrg(t, db, "acme")
	otherOrgID := seedOrg(t, db, "globex")

	userID, err := orgs.AddUser(ctx, model.User{Username: "carol", IsActive: true})
	require.NoError(t, err)

	addTeam := func(orgID int64, slug string, teamActive, memberActive bool) {
		teamID, err := orgs.AddTeam(ctx, model.Team{OrganisationID: orgID, Name: slug, Slug: slug, IsActive: teamActive})
		require.NoError(t, err)
		_, err = orgs.AddTeamMember(ctx, model.TeamMembership{TeamID: teamID, UserID: userID, IsActive: memberActive})
		require.NoError(t, err)
	}

	addTeam(orgID, "core", true, true)
	addTeam(orgID, "disbanded", false, true)
	addTeam(orgID, "former", true, false)
	addTeam(otherOrgID, "elsewhere", true, true)

	teams, err := orgs.ListUserTeams(ctx, userID, orgID)
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, "core", teams[0].Slug)
}
