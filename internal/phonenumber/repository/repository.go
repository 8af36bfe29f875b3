package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/config"
	"github.com/smallbiznis/switchboard/internal/phonenumber/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewRepository selects the ownership layout configured for this deployment.
func NewRepository(db *gorm.DB, cfg config.Config) domain.Repository {
	if cfg.Schema.PhoneAssignment == config.SchemaMapped {
		return &mappedRepository{base{db: db}}
	}
	return &directRepository{base{db: db}}
}

type base struct {
	db *gorm.DB
}

func (b base) Upsert(ctx context.Context, numbers []domain.PhoneNumber) (int64, error) {
	if len(numbers) == 0 {
		return 0, nil
	}
	res := b.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"number",
				"e164",
				"number_digits",
				"label",
				"is_active",
				"metadata",
				"updated_at",
			}),
		}).
		Omit("org_id").
		Create(&numbers)
	return res.RowsAffected, res.Error
}

func (b base) CountExisting(ctx context.Context, ids []snowflake.ID) (int64, error) {
	var count int64
	err := b.db.WithContext(ctx).
		Model(&domain.PhoneNumber{}).
		Where("id IN ?", ids).
		Count(&count).Error
	return count, err
}

type directRepository struct {
	base
}

func (r *directRepository) ListAll(ctx context.Context, unassignedOnly bool) ([]domain.PhoneNumber, error) {
	var numbers []domain.PhoneNumber
	stmt := r.db.WithContext(ctx).Model(&domain.PhoneNumber{})
	if unassignedOnly {
		stmt = stmt.Where("org_id IS NULL")
	}
	if err := stmt.Order("number ASC").Find(&numbers).Error; err != nil {
		return nil, err
	}
	return numbers, nil
}

func (r *directRepository) ListForOrg(ctx context.Context, orgID snowflake.ID) ([]domain.PhoneNumber, error) {
	var numbers []domain.PhoneNumber
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("number ASC").
		Find(&numbers).Error
	if err != nil {
		return nil, err
	}
	return numbers, nil
}

func (r *directRepository) Assign(ctx context.Context, orgID snowflake.ID, ids []snowflake.ID, _ time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.PhoneNumber{}).
		Where("id IN ?", ids).
		UpdateColumn("org_id", orgID).Error
}

func (r *directRepository) Unassign(ctx context.Context, orgID, id snowflake.ID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.PhoneNumber{}).
		Where("id = ? AND org_id = ?", id, orgID).
		UpdateColumn("org_id", nil)
	return res.RowsAffected, res.Error
}

func (r *directRepository) OrgIDsWithNumbers(ctx context.Context) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).Raw(
		`SELECT DISTINCT org_id FROM phone_numbers WHERE org_id IS NOT NULL ORDER BY org_id`,
	).Scan(&ids).Error
	return ids, err
}

type mappedRepository struct {
	base
}

const mappedSelect = `SELECT p.id, p.external_id, p.number, p.e164, p.number_digits, p.label,
	m.org_id, p.is_active, p.metadata, p.created_at, p.updated_at
	FROM phone_numbers p
	LEFT JOIN org_phone_numbers m ON m.phone_number_id = p.id`

func (r *mappedRepository) ListAll(ctx context.Context, unassignedOnly bool) ([]domain.PhoneNumber, error) {
	query := mappedSelect
	if unassignedOnly {
		query += ` WHERE m.org_id IS NULL`
	}
	var numbers []domain.PhoneNumber
	if err := r.db.WithContext(ctx).Raw(query + ` ORDER BY p.number ASC`).Scan(&numbers).Error; err != nil {
		return nil, err
	}
	return numbers, nil
}

func (r *mappedRepository) ListForOrg(ctx context.Context, orgID snowflake.ID) ([]domain.PhoneNumber, error) {
	var numbers []domain.PhoneNumber
	err := r.db.WithContext(ctx).Raw(
		mappedSelect+` WHERE m.org_id = ? ORDER BY p.number ASC`,
		orgID,
	).Scan(&numbers).Error
	if err != nil {
		return nil, err
	}
	return numbers, nil
}

func (r *mappedRepository) Assign(ctx context.Context, orgID snowflake.ID, ids []snowflake.ID, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("phone_number_id IN ?", ids).Delete(&domain.OrgPhoneNumber{}).Error; err != nil {
			return err
		}
		rows := make([]domain.OrgPhoneNumber, 0, len(ids))
		for _, id := range ids {
			rows = append(rows, domain.OrgPhoneNumber{OrgID: orgID, PhoneNumberID: id, CreatedAt: at})
		}
		return tx.Create(&rows).Error
	})
}

func (r *mappedRepository) Unassign(ctx context.Context, orgID, id snowflake.ID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("org_id = ? AND phone_number_id = ?", orgID, id).
		Delete(&domain.OrgPhoneNumber{})
	return res.RowsAffected, res.Error
}

func (r *mappedRepository) OrgIDsWithNumbers(ctx context.Context) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).Raw(
		`SELECT DISTINCT org_id FROM org_phone_numbers ORDER BY org_id`,
	).Scan(&ids).Error
	return ids, err
}
