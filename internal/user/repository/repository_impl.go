package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/user/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) ListUsers(ctx context.Context) ([]domain.UserSummary, error) {
	var users []domain.UserSummary
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, email, display_name, global_role, created_at
		 FROM users
		 ORDER BY created_at DESC, id DESC`,
	).Scan(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repository) ListMemberships(ctx context.Context, userIDs []snowflake.ID) ([]domain.Membership, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var memberships []domain.Membership
	err := r.db.WithContext(ctx).Raw(
		`SELECT m.user_id, m.org_id, COALESCE(o.name, '') AS org_name, m.role
		 FROM org_users m
		 LEFT JOIN organizations o ON o.id = m.org_id
		 WHERE m.user_id IN ?
		 ORDER BY m.created_at ASC`,
		userIDs,
	).Scan(&memberships).Error
	if err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *repository) UpdateGlobalRole(ctx context.Context, userID snowflake.ID, role string) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE users SET global_role = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		role,
		userID,
	)
	return res.RowsAffected, res.Error
}

func (r *repository) GetPlatformPermissions(ctx context.Context, userID snowflake.ID) (*domain.PlatformPermissions, error) {
	var perms domain.PlatformPermissions
	err := r.db.WithContext(ctx).First(&perms, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.PlatformPermissions{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &perms, nil
}

func (r *repository) UpsertPlatformPermissions(ctx context.Context, perms domain.PlatformPermissions) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"can_manage_phone_numbers_global",
				"can_manage_agents_global",
				"can_manage_orgs",
				"can_view_billing_global",
				"updated_at",
			}),
		}).
		Create(&perms).Error
}

func (r *repository) ListAgents(ctx context.Context, orgIDs []snowflake.ID) ([]domain.Agent, error) {
	var agents []domain.Agent
	stmt := r.db.WithContext(ctx).
		Table("org_users AS m").
		Select(`m.id AS member_id, m.user_id, m.org_id, COALESCE(o.name, '') AS org_name,
			COALESCE(u.email, '') AS email, COALESCE(u.display_name, '') AS display_name,
			m.role, m.mightycall_extension AS extension`).
		Joins("LEFT JOIN users u ON u.id = m.user_id").
		Joins("LEFT JOIN organizations o ON o.id = m.org_id").
		Where("m.role = ?", "agent")
	if orgIDs != nil {
		if len(orgIDs) == 0 {
			return []domain.Agent{}, nil
		}
		stmt = stmt.Where("m.org_id IN ?", orgIDs)
	}
	if err := stmt.Order("u.display_name ASC, m.id ASC").Scan(&agents).Error; err != nil {
		return nil, err
	}
	return agents, nil
}
