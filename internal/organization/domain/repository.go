package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrganization(ctx context.Context, org Organization) error
	CreateSettings(ctx context.Context, settings OrgSettings) error
	GetOrganization(ctx context.Context, id snowflake.ID) (*Organization, error)
	ListOrganizations(ctx context.Context) ([]Organization, error)
	ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListItem, error)
	UpdateOrganization(ctx context.Context, org Organization) error
	SlugExists(ctx context.Context, slug string) (bool, error)

	// UpsertMember inserts or updates the (org, user) row. The stored
	// extension is only rewritten when setExtension is true.
	UpsertMember(ctx context.Context, member Member, setExtension bool) error
	GetMember(ctx context.Context, orgID, userID snowflake.ID) (*Member, error)
	GetMemberByID(ctx context.Context, orgID, memberID snowflake.ID) (*Member, error)
	RemoveMember(ctx context.Context, orgID, userID snowflake.ID) (int64, error)
	ListMembers(ctx context.Context, orgID *snowflake.ID) ([]MemberView, error)

	GetManagerPermissions(ctx context.Context, memberID snowflake.ID) (*ManagerPermissions, error)
	UpsertManagerPermissions(ctx context.Context, perms ManagerPermissions) error
}
