package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/switchboard/internal/apikey/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() apikeydomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, key *apikeydomain.APIKey) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO api_keys (id, scope, org_id, name, key_hash, key_prefix, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID,
		key.Scope,
		key.OrgID,
		key.Name,
		key.KeyHash,
		key.KeyPrefix,
		key.CreatedBy,
		key.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*apikeydomain.APIKey, error) {
	return r.first(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByHash(ctx context.Context, db *gorm.DB, hash string) (*apikeydomain.APIKey, error) {
	return r.first(db.WithContext(ctx).Where("key_hash = ?", hash))
}

func (r *repo) first(stmt *gorm.DB) (*apikeydomain.APIKey, error) {
	var key apikeydomain.APIKey
	err := stmt.First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, scope string, orgID *snowflake.ID) ([]apikeydomain.APIKey, error) {
	var keys []apikeydomain.APIKey
	stmt := db.WithContext(ctx).Where("scope = ?", scope)
	if orgID != nil {
		stmt = stmt.Where("org_id = ?", *orgID)
	}
	if err := stmt.Order("created_at DESC").Find(&keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *repo) Revoke(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE api_keys SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		at,
		id,
	).Error
}

func (r *repo) TouchLastUsed(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE api_keys SET last_used_at = ? WHERE id = ?`,
		at,
		id,
	).Error
}
