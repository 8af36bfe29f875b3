package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleAgent      = "agent"
	RoleOrgManager = "org_manager"
	RoleOrgAdmin   = "org_admin"
	RoleManager    = "manager"
	RoleAdmin      = "admin"
	RoleOwner      = "owner"
)

var validRoles = map[string]struct{}{
	RoleAgent:      {},
	RoleOrgManager: {},
	RoleOrgAdmin:   {},
	RoleManager:    {},
	RoleAdmin:      {},
	RoleOwner:      {},
}

func IsValidRole(role string) bool {
	_, ok := validRoles[role]
	return ok
}

func IsManagerRole(role string) bool {
	return role == RoleOrgManager || role == RoleManager
}

type Service interface {
	Create(ctx context.Context, creatorID snowflake.ID, req CreateOrganizationRequest) (*Organization, error)
	Get(ctx context.Context, orgID snowflake.ID) (*Organization, error)
	List(ctx context.Context) ([]Organization, error)
	ListForUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListItem, error)
	Update(ctx context.Context, orgID snowflake.ID, req UpdateOrganizationRequest) (*Organization, error)

	UpsertMember(ctx context.Context, req UpsertMemberRequest) (*Member, error)
	RemoveMember(ctx context.Context, orgID, userID snowflake.ID) error
	ListMembers(ctx context.Context, orgID *snowflake.ID) ([]MemberView, error)

	GetManagerPermissions(ctx context.Context, orgID, memberID snowflake.ID) (*ManagerPermissions, error)
	SetManagerPermissions(ctx context.Context, orgID, memberID snowflake.ID, req ManagerPermissionsRequest) (*ManagerPermissions, error)
}

type CreateOrganizationRequest struct {
	Name     string
	Timezone string
}

type UpdateOrganizationRequest struct {
	Name             *string
	Timezone         *string
	SLATargetPercent *int
	SLATargetSeconds *int
	BusinessHours    map[string]any
	EscalationEmail  *string
}

type UpsertMemberRequest struct {
	OrgID     snowflake.ID
	UserID    snowflake.ID
	Role      string
	// Extension nil keeps the stored extension; a blank value clears it.
	Extension *string
}

type ManagerPermissionsRequest struct {
	CanManageAgents       *bool `json:"can_manage_agents"`
	CanManagePhoneNumbers *bool `json:"can_manage_phone_numbers"`
	CanEditServiceTargets *bool `json:"can_edit_service_targets"`
	CanViewBilling        *bool `json:"can_view_billing"`
}

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidTimezone     = errors.New("invalid_timezone")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrInvalidSLATarget    = errors.New("invalid_sla_target")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrNotFound            = errors.New("organization_not_found")
	ErrMemberNotFound      = errors.New("member_not_found")
	ErrNotManager          = errors.New("member_not_manager")
)
