package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/switchboard/internal/auth/domain"
)

type Service interface {
	List(ctx context.Context) ([]UserSummary, error)
	Create(ctx context.Context, req CreateRequest) (*authdomain.User, error)
	UpdateMembership(ctx context.Context, userID, orgID snowflake.ID, role string) error
	SetGlobalRole(ctx context.Context, userID snowflake.ID, role string) error
	GetPlatformPermissions(ctx context.Context, userID snowflake.ID) (*PlatformPermissions, error)
	SetPlatformPermissions(ctx context.Context, userID snowflake.ID, req PlatformPermissionsRequest) (*PlatformPermissions, error)
	// ListAgents returns agents of the given orgs, or of every org when orgIDs is nil.
	ListAgents(ctx context.Context, orgIDs []snowflake.ID) ([]Agent, error)
}

type CreateRequest struct {
	Email       string
	Password    string
	DisplayName string
	GlobalRole  string
	OrgID       *snowflake.ID
	Role        string
}

type PlatformPermissionsRequest struct {
	CanManagePhoneNumbersGlobal *bool `json:"can_manage_phone_numbers_global"`
	CanManageAgentsGlobal       *bool `json:"can_manage_agents_global"`
	CanManageOrgs               *bool `json:"can_manage_orgs"`
	CanViewBillingGlobal        *bool `json:"can_view_billing_global"`
}

var (
	ErrInvalidUser     = errors.New("invalid_user")
	ErrUserNotFound    = errors.New("user_not_found")
	ErrNotPlatformRole = errors.New("user_not_platform_manager")
)
