package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/switchboard/internal/auth/domain"
	"github.com/smallbiznis/switchboard/internal/clock"
	"github.com/smallbiznis/switchboard/internal/organization/domain"
	"github.com/smallbiznis/switchboard/internal/organization/repository"
	"github.com/smallbiznis/switchboard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&authdomain.User{},
		&domain.Organization{},
		&domain.OrgSettings{},
		&domain.Member{},
		&domain.ManagerPermissions{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		Repo:  repository.NewRepository(conn),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
	})
	return svc, conn
}

func TestCreateOrganizationMakesCreatorOrgAdmin(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	creator := snowflake.ID(7)

	org, err := svc.Create(ctx, creator, domain.CreateOrganizationRequest{Name: "Acme Support"})
	require.NoError(t, err)
	assert.Equal(t, "acme-support", org.Slug)
	assert.Equal(t, "UTC", org.Timezone)
	assert.Equal(t, 80, org.SLATargetPercent)

	var settings int64
	require.NoError(t, conn.Model(&domain.OrgSettings{}).Where("org_id = ?", org.ID).Count(&settings).Error)
	assert.EqualValues(t, 1, settings)

	orgs, err := svc.ListForUser(ctx, creator)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, domain.RoleOrgAdmin, orgs[0].Role)

	second, err := svc.Create(ctx, creator, domain.CreateOrganizationRequest{Name: "Acme Support"})
	require.NoError(t, err)
	assert.NotEqual(t, org.Slug, second.Slug)
}

func TestCreateOrganizationValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, 0, domain.CreateOrganizationRequest{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)

	_, err = svc.Create(ctx, 1, domain.CreateOrganizationRequest{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, 1, domain.CreateOrganizationRequest{Name: "x", Timezone: "Mars/Olympus"})
	assert.ErrorIs(t, err, domain.ErrInvalidTimezone)
}

func TestUpsertMemberKeepsOneRowPerUser(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	org, err := svc.Create(ctx, 1, domain.CreateOrganizationRequest{Name: "Call Co"})
	require.NoError(t, err)

	first, err := svc.UpsertMember(ctx, domain.UpsertMemberRequest{OrgID: org.ID, UserID: 2, Role: "agent"})
	require.NoError(t, err)
	second, err := svc.UpsertMember(ctx, domain.UpsertMemberRequest{OrgID: org.ID, UserID: 2, Role: "org_manager"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.RoleOrgManager, second.Role)

	var count int64
	require.NoError(t, conn.Model(&domain.Member{}).Where("org_id = ? AND user_id = ?", org.ID, 2).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	_, err = svc.UpsertMember(ctx, domain.UpsertMemberRequest{OrgID: org.ID, UserID: 3, Role: "supervisor"})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)

	require.NoError(t, svc.RemoveMember(ctx, org.ID, 2))
	assert.ErrorIs(t, svc.RemoveMember(ctx, org.ID, 2), domain.ErrMemberNotFound)
}

func TestManagerPermissions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	org, err := svc.Create(ctx, 1, domain.CreateOrganizationRequest{Name: "Perm Co"})
	require.NoError(t, err)
	manager, err := svc.UpsertMember(ctx, domain.UpsertMemberRequest{OrgID: org.ID, UserID: 2, Role: "manager"})
	require.NoError(t, err)
	agent, err := svc.UpsertMember(ctx, domain.UpsertMemberRequest{OrgID: org.ID, UserID: 3, Role: "agent"})
	require.NoError(t, err)

	perms, err := svc.GetManagerPermissions(ctx, org.ID, manager.ID)
	require.NoError(t, err)
	assert.False(t, perms.CanManagePhoneNumbers)

	yes := true
	perms, err = svc.SetManagerPermissions(ctx, org.ID, manager.ID, domain.ManagerPermissionsRequest{CanManagePhoneNumbers: &yes})
	require.NoError(t, err)
	assert.True(t, perms.CanManagePhoneNumbers)

	perms, err = svc.GetManagerPermissions(ctx, org.ID, manager.ID)
	require.NoError(t, err)
	assert.True(t, perms.CanManagePhoneNumbers)
	assert.False(t, perms.CanViewBilling)

	_, err = svc.SetManagerPermissions(ctx, org.ID, agent.ID, domain.ManagerPermissionsRequest{CanViewBilling: &yes})
	assert.ErrorIs(t, err, domain.ErrNotManager)
}

func TestUpdateOrganization(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	org, err := svc.Create(ctx, 1, domain.CreateOrganizationRequest{Name: "Update Co"})
	require.NoError(t, err)

	tz := "America/New_York"
	pct := 90
	email := "ops@example.com"
	updated, err := svc.Update(ctx, org.ID, domain.UpdateOrganizationRequest{
		Timezone:         &tz,
		SLATargetPercent: &pct,
		EscalationEmail:  &email,
	})
	require.NoError(t, err)
	assert.Equal(t, tz, updated.Timezone)

	got, err := svc.Get(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, 90, got.SLATargetPercent)
	require.NotNil(t, got.EscalationEmail)
	assert.Equal(t, email, *got.EscalationEmail)

	bad := 120
	_, err = svc.Update(ctx, org.ID, domain.UpdateOrganizationRequest{SLATargetPercent: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidSLATarget)

	_, err = svc.Get(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrganizationLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, domain.Organization{Timezone: "Nowhere/Land"}.Location())
	assert.Equal(t, time.UTC, domain.Organization{}.Location())
	assert.Equal(t, "Europe/Berlin", domain.Organization{Timezone: "Europe/Berlin"}.Location().String())
}
