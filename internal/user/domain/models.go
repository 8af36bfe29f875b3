package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PlatformPermissions are the named grants of a platform manager.
type PlatformPermissions struct {
	UserID                      snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CanManagePhoneNumbersGlobal bool         `gorm:"column:can_manage_phone_numbers_global;not null;default:false" json:"can_manage_phone_numbers_global"`
	CanManageAgentsGlobal       bool         `gorm:"column:can_manage_agents_global;not null;default:false" json:"can_manage_agents_global"`
	CanManageOrgs               bool         `gorm:"column:can_manage_orgs;not null;default:false" json:"can_manage_orgs"`
	CanViewBillingGlobal        bool         `gorm:"column:can_view_billing_global;not null;default:false" json:"can_view_billing_global"`
	UpdatedAt                   time.Time    `gorm:"not null" json:"updated_at"`
}

func (PlatformPermissions) TableName() string { return "platform_manager_permissions" }

type Membership struct {
	UserID  snowflake.ID `json:"-"`
	OrgID   snowflake.ID `json:"org_id"`
	OrgName string       `json:"org_name"`
	Role    string       `json:"role"`
}

type UserSummary struct {
	ID          snowflake.ID `json:"id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"display_name"`
	GlobalRole  string       `json:"global_role"`
	CreatedAt   time.Time    `json:"created_at"`
	Memberships []Membership `json:"memberships" gorm:"-"`
}

type Agent struct {
	MemberID    snowflake.ID `json:"member_id"`
	UserID      snowflake.ID `json:"user_id"`
	OrgID       snowflake.ID `json:"org_id"`
	OrgName     string       `json:"org_name"`
	Email       string       `json:"email"`
	DisplayName string       `json:"display_name"`
	Role        string       `json:"role"`
	Extension   *string      `json:"extension,omitempty"`
}
