package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/integration/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, orgID snowflake.ID, integrationType string) (*domain.OrgIntegration, error) {
	var row domain.OrgIntegration
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND integration_type = ?", orgID, integrationType).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) Upsert(ctx context.Context, row *domain.OrgIntegration) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "org_id"}, {Name: "integration_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"encrypted_credentials", "updated_at"}),
	}).Create(row).Error
}

func (r *repository) Delete(ctx context.Context, orgID snowflake.ID, integrationType string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("org_id = ? AND integration_type = ?", orgID, integrationType).
		Delete(&domain.OrgIntegration{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
