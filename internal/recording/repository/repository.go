package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/recording/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, orgID *snowflake.ID, limit int) ([]domain.Recording, error) {
	stmt := r.db.WithContext(ctx).Model(&domain.Recording{})
	if orgID != nil {
		stmt = stmt.Where("org_id = ?", *orgID)
	}
	var out []domain.Recording
	err := stmt.Order("recording_date DESC").Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}

func (r *repository) Get(ctx context.Context, id snowflake.ID) (*domain.Recording, error) {
	var rec domain.Recording
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
