package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Get(ctx context.Context, orgID snowflake.ID, integrationType string) (*OrgIntegration, error)
	Upsert(ctx context.Context, row *OrgIntegration) error
	Delete(ctx context.Context, orgID snowflake.ID, integrationType string) (bool, error)
}
