// Package domain contains persistence models for the org service.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Organization represents a tenant call center.
type Organization struct {
	ID               snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name             string            `gorm:"type:text;not null" json:"name"`
	Slug             string            `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	Timezone         string            `gorm:"type:text;not null;default:'UTC'" json:"timezone"`
	SLATargetPercent int               `gorm:"column:sla_target_percent;not null;default:80" json:"sla_target_percent"`
	SLATargetSeconds int               `gorm:"column:sla_target_seconds;not null;default:20" json:"sla_target_seconds"`
	BusinessHours    datatypes.JSONMap `gorm:"column:business_hours" json:"business_hours,omitempty"`
	EscalationEmail  *string           `gorm:"column:escalation_email;type:text" json:"escalation_email,omitempty"`
	CreatedAt        time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// Location resolves the org's timezone, falling back to UTC when unset or unknown.
func (o Organization) Location() *time.Location {
	name := strings.TrimSpace(o.Timezone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

type OrgSettings struct {
	OrgID     snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"org_id"`
	Settings  datatypes.JSONMap `gorm:"not null" json:"settings"`
	UpdatedAt time.Time         `gorm:"not null" json:"updated_at"`
}

func (OrgSettings) TableName() string { return "org_settings" }

// Member is a user's membership in an organization. At most one row exists
// per (org_id, user_id).
type Member struct {
	ID                  snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	OrgID               snowflake.ID `gorm:"not null;uniqueIndex:uq_org_users_org_user,priority:1" json:"org_id"`
	UserID              snowflake.ID `gorm:"not null;index;uniqueIndex:uq_org_users_org_user,priority:2" json:"user_id"`
	Role                string       `gorm:"type:text;not null" json:"role"`
	MightycallExtension *string      `gorm:"column:mightycall_extension;type:text" json:"mightycall_extension,omitempty"`
	CreatedAt           time.Time    `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (Member) TableName() string { return "org_users" }

// MemberView is a membership joined with its user.
type MemberView struct {
	ID                  snowflake.ID `json:"id"`
	OrgID               snowflake.ID `json:"org_id"`
	UserID              snowflake.ID `json:"user_id"`
	Role                string       `json:"role"`
	MightycallExtension *string      `json:"mightycall_extension,omitempty"`
	Email               string       `json:"email"`
	DisplayName         string       `json:"display_name"`
	CreatedAt           time.Time    `json:"created_at"`
}

type ManagerPermissions struct {
	OrgMemberID           snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"org_member_id"`
	CanManageAgents       bool         `gorm:"not null;default:false" json:"can_manage_agents"`
	CanManagePhoneNumbers bool         `gorm:"not null;default:false" json:"can_manage_phone_numbers"`
	CanEditServiceTargets bool         `gorm:"not null;default:false" json:"can_edit_service_targets"`
	CanViewBilling        bool         `gorm:"not null;default:false" json:"can_view_billing"`
	UpdatedAt             time.Time    `gorm:"not null" json:"updated_at"`
}

func (ManagerPermissions) TableName() string { return "org_manager_permissions" }

type OrganizationListItem struct {
	ID        snowflake.ID `json:"id"`
	Name      string       `json:"name"`
	Slug      string       `json:"slug"`
	Timezone  string       `json:"timezone"`
	Role      string       `json:"role"`
	CreatedAt time.Time    `json:"created_at"`
}
