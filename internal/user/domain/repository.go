package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	ListUsers(ctx context.Context) ([]UserSummary, error)
	ListMemberships(ctx context.Context, userIDs []snowflake.ID) ([]Membership, error)
	UpdateGlobalRole(ctx context.Context, userID snowflake.ID, role string) (int64, error)
	GetPlatformPermissions(ctx context.Context, userID snowflake.ID) (*PlatformPermissions, error)
	UpsertPlatformPermissions(ctx context.Context, perms PlatformPermissions) error
	ListAgents(ctx context.Context, orgIDs []snowflake.ID) ([]Agent, error)
}
