package authorization

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	platformAdminRoles = []string{"platform_admin", "admin"}
	orgAdminRoles      = []string{"org_admin", "admin", "owner"}
	orgManagerRoles    = []string{"org_manager", "manager"}
)

var orgPermissionColumns = map[string]struct{}{
	PermManageAgents:       {},
	PermManagePhoneNumbers: {},
	PermEditServiceTargets: {},
	PermViewBilling:        {},
}

var platformPermissionColumns = map[string]struct{}{
	PermManagePhoneNumbersGlobal: {},
	PermManageAgentsGlobal:       {},
	PermManageOrgs:               {},
	PermViewBillingGlobal:        {},
}

// Checker answers the boolean authorization predicates directly from the
// database.
type Checker struct {
	db *gorm.DB
}

func NewChecker(db *gorm.DB) *Checker {
	return &Checker{db: db}
}

func (c *Checker) GlobalRole(ctx context.Context, userID snowflake.ID) (string, error) {
	var row struct {
		GlobalRole string `gorm:"column:global_role"`
	}
	if err := c.db.WithContext(ctx).Raw(
		`SELECT global_role FROM users WHERE id = ? LIMIT 1`,
		userID,
	).Scan(&row).Error; err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(row.GlobalRole)), nil
}

func (c *Checker) OrgRole(ctx context.Context, userID, orgID snowflake.ID) (string, error) {
	var row struct {
		Role string `gorm:"column:role"`
	}
	if err := c.db.WithContext(ctx).Raw(
		`SELECT role FROM org_users WHERE org_id = ? AND user_id = ? LIMIT 1`,
		orgID,
		userID,
	).Scan(&row).Error; err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(row.Role)), nil
}

func (c *Checker) IsPlatformAdmin(ctx context.Context, userID snowflake.ID) (bool, error) {
	role, err := c.GlobalRole(ctx, userID)
	if err != nil {
		return false, err
	}
	return contains(platformAdminRoles, role), nil
}

func (c *Checker) IsPlatformManagerWith(ctx context.Context, userID snowflake.ID, perm string) (bool, error) {
	if _, ok := platformPermissionColumns[perm]; !ok {
		return false, ErrUnknownPermission
	}
	role, err := c.GlobalRole(ctx, userID)
	if err != nil {
		return false, err
	}
	if role != "platform_manager" {
		return false, nil
	}

	var count int64
	query := fmt.Sprintf(
		`SELECT COUNT(1) FROM platform_manager_permissions WHERE user_id = ? AND %s = ?`,
		perm,
	)
	if err := c.db.WithContext(ctx).Raw(query, userID, true).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (c *Checker) IsOrgAdmin(ctx context.Context, userID, orgID snowflake.ID) (bool, error) {
	role, err := c.OrgRole(ctx, userID, orgID)
	if err != nil {
		return false, err
	}
	return contains(orgAdminRoles, role), nil
}

func (c *Checker) IsOrgManagerWith(ctx context.Context, userID, orgID snowflake.ID, perm string) (bool, error) {
	if _, ok := orgPermissionColumns[perm]; !ok {
		return false, ErrUnknownPermission
	}

	var count int64
	query := fmt.Sprintf(
		`SELECT COUNT(1)
		 FROM org_users ou
		 JOIN org_manager_permissions p ON p.org_member_id = ou.id
		 WHERE ou.org_id = ? AND ou.user_id = ? AND ou.role IN ? AND p.%s = ?`,
		perm,
	)
	if err := c.db.WithContext(ctx).Raw(query, orgID, userID, orgManagerRoles, true).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (c *Checker) IsOrgMember(ctx context.Context, userID, orgID snowflake.ID) (bool, error) {
	role, err := c.OrgRole(ctx, userID, orgID)
	if err != nil {
		return false, err
	}
	return role != "", nil
}

// MemberOrgIDs lists the organizations the user belongs to, oldest membership first.
func (c *Checker) MemberOrgIDs(ctx context.Context, userID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	if err := c.db.WithContext(ctx).Raw(
		`SELECT org_id FROM org_users WHERE user_id = ? ORDER BY created_at ASC, id ASC`,
		userID,
	).Scan(&ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
