package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	List(ctx context.Context, orgID *snowflake.ID, limit int) ([]Recording, error)
	Get(ctx context.Context, id snowflake.ID) (*Recording, error)
}
