package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	calldomain "github.com/smallbiznis/switchboard/internal/call/domain"
	"github.com/smallbiznis/switchboard/internal/reconcile/domain"
	recordingdomain "github.com/smallbiznis/switchboard/internal/recording/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const batchSize = 500

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) ReplaceCalls(ctx context.Context, orgID snowflake.ID, from, to time.Time, rows []calldomain.Call) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("org_id = ? AND started_at >= ? AND started_at <= ?", orgID, from, to).
			Delete(&calldomain.Call{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, batchSize).Error
	})
}

func (r *repository) ReplaceRecordings(ctx context.Context, orgID snowflake.ID, from, to time.Time, rows []recordingdomain.Recording) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("org_id = ? AND recording_date >= ? AND recording_date <= ?", orgID, from, to).
			Delete(&recordingdomain.Recording{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, batchSize).Error
	})
}

func (r *repository) ReplaceReports(ctx context.Context, orgID snowflake.ID, reportType string, from, to time.Time, rows []domain.Report) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("org_id = ? AND report_type = ? AND report_date >= ? AND report_date <= ?", orgID, reportType, from, to).
			Delete(&domain.Report{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, batchSize).Error
	})
}

func (r *repository) UpsertExtensions(ctx context.Context, rows []calldomain.Extension) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "extension"}},
		DoUpdates: clause.AssignmentColumns([]string{"external_id", "display_name", "metadata", "updated_at"}),
	}).CreateInBatches(rows, batchSize)
	return res.RowsAffected, res.Error
}

func (r *repository) UpsertSMS(ctx context.Context, rows []domain.SMSMessage) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "org_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"phone_number_id", "from_number", "to_number", "message_text",
			"direction", "status", "message_date", "metadata",
		}),
	}).CreateInBatches(rows, batchSize)
	return res.RowsAffected, res.Error
}
