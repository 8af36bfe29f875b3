package repository

import (
	"context"

	"github.com/smallbiznis/switchboard/internal/call/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Call, error) {
	stmt := r.db.WithContext(ctx).Model(&domain.Call{})
	if filter.OrgID != nil {
		stmt = stmt.Where("org_id = ?", *filter.OrgID)
	}
	if !filter.Since.IsZero() {
		stmt = stmt.Where("started_at >= ?", filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		stmt = stmt.Where("started_at < ?", filter.Until.UTC())
	}
	if filter.Ascending {
		stmt = stmt.Order("started_at ASC").Order("id ASC")
	} else {
		stmt = stmt.Order("started_at DESC").Order("id DESC")
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	var calls []domain.Call
	if err := stmt.Find(&calls).Error; err != nil {
		return nil, err
	}
	return calls, nil
}

func (r *repository) Insert(ctx context.Context, call *domain.Call) error {
	return r.db.WithContext(ctx).Create(call).Error
}

func (r *repository) ExtensionNames(ctx context.Context, extensions []string) (map[string]string, error) {
	out := make(map[string]string, len(extensions))
	if len(extensions) == 0 {
		return out, nil
	}
	var rows []domain.Extension
	if err := r.db.WithContext(ctx).Where("extension IN ?", extensions).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.DisplayName != nil && *row.DisplayName != "" {
			out[row.Extension] = *row.DisplayName
		}
	}

	missing := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		if _, ok := out[ext]; !ok {
			missing = append(missing, ext)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	var members []struct {
		Extension string
		Email     string
	}
	err := r.db.WithContext(ctx).
		Table("org_users AS m").
		Select("m.mightycall_extension AS extension, u.email AS email").
		Joins("JOIN users u ON u.id = m.user_id").
		Where("m.mightycall_extension IN ?", missing).
		Order("m.created_at ASC").
		Scan(&members).Error
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if _, ok := out[m.Extension]; !ok && m.Email != "" {
			out[m.Extension] = m.Email
		}
	}
	return out, nil
}

func (r *repository) ListExtensions(ctx context.Context) ([]domain.Extension, error) {
	var rows []domain.Extension
	if err := r.db.WithContext(ctx).Order("extension ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
