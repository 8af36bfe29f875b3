package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/organization/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateOrganization(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Create(&org).Error
}

func (r *repository) CreateSettings(ctx context.Context, settings domain.OrgSettings) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&settings).Error
}

func (r *repository) GetOrganization(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) ListOrganizations(ctx context.Context) ([]domain.Organization, error) {
	var orgs []domain.Organization
	if err := r.db.WithContext(ctx).Order("name ASC, id ASC").Find(&orgs).Error; err != nil {
		return nil, err
	}
	return orgs, nil
}

func (r *repository) ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListItem, error) {
	var items []domain.OrganizationListItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.id, o.name, o.slug, o.timezone, m.role, o.created_at
		 FROM organizations o
		 JOIN org_users m ON m.org_id = o.id
		 WHERE m.user_id = ?
		 ORDER BY o.created_at ASC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *repository) UpdateOrganization(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).
		Model(&domain.Organization{}).
		Where("id = ?", org.ID).
		Updates(map[string]any{
			"name":               org.Name,
			"timezone":           org.Timezone,
			"sla_target_percent": org.SLATargetPercent,
			"sla_target_seconds": org.SLATargetSeconds,
			"business_hours":     org.BusinessHours,
			"escalation_email":   org.EscalationEmail,
			"updated_at":         org.UpdatedAt,
		}).Error
}

func (r *repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Organization{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) UpsertMember(ctx context.Context, member domain.Member, setExtension bool) error {
	columns := []string{"role"}
	if setExtension {
		columns = append(columns, "mightycall_extension")
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "org_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(&member).Error
}

func (r *repository) GetMember(ctx context.Context, orgID, userID snowflake.ID) (*domain.Member, error) {
	var member domain.Member
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) GetMemberByID(ctx context.Context, orgID, memberID snowflake.ID) (*domain.Member, error) {
	var member domain.Member
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, memberID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) RemoveMember(ctx context.Context, orgID, userID snowflake.ID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		Delete(&domain.Member{})
	return res.RowsAffected, res.Error
}

func (r *repository) ListMembers(ctx context.Context, orgID *snowflake.ID) ([]domain.MemberView, error) {
	var members []domain.MemberView
	stmt := r.db.WithContext(ctx).
		Table("org_users AS m").
		Select(`m.id, m.org_id, m.user_id, m.role, m.mightycall_extension, m.created_at,
			COALESCE(u.email, '') AS email, COALESCE(u.display_name, '') AS display_name`).
		Joins("LEFT JOIN users u ON u.id = m.user_id")
	if orgID != nil {
		stmt = stmt.Where("m.org_id = ?", *orgID)
	}
	if err := stmt.Order("m.created_at ASC, m.id ASC").Scan(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repository) GetManagerPermissions(ctx context.Context, memberID snowflake.ID) (*domain.ManagerPermissions, error) {
	var perms domain.ManagerPermissions
	err := r.db.WithContext(ctx).First(&perms, "org_member_id = ?", memberID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.ManagerPermissions{OrgMemberID: memberID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &perms, nil
}

func (r *repository) UpsertManagerPermissions(ctx context.Context, perms domain.ManagerPermissions) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "org_member_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"can_manage_agents",
				"can_manage_phone_numbers",
				"can_edit_service_targets",
				"can_view_billing",
				"updated_at",
			}),
		}).
		Create(&perms).Error
}
