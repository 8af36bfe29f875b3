package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *APIKey) error
	FindByID(ctx context.Context, db *gorm.DB, id string) (*APIKey, error)
	FindByHash(ctx context.Context, db *gorm.DB, hash string) (*APIKey, error)
	List(ctx context.Context, db *gorm.DB, scope string, orgID *snowflake.ID) ([]APIKey, error)
	Revoke(ctx context.Context, db *gorm.DB, id string, at time.Time) error
	TouchLastUsed(ctx context.Context, db *gorm.DB, id string, at time.Time) error
}
