// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Global roles stored on users.global_role.
const (
	GlobalRolePlatformAdmin   = "platform_admin"
	GlobalRoleAdmin           = "admin"
	GlobalRolePlatformManager = "platform_manager"
	GlobalRoleUser            = "user"
)

func IsValidGlobalRole(role string) bool {
	switch role {
	case GlobalRolePlatformAdmin, GlobalRoleAdmin, GlobalRolePlatformManager, GlobalRoleUser:
		return true
	}
	return false
}

// User represents a login account together with its platform-wide role.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Email        string       `gorm:"column:email;type:text;not null;uniqueIndex" json:"email"`
	PasswordHash string       `gorm:"column:password_hash;type:text;not null" json:"-"`
	DisplayName  string       `gorm:"column:display_name;type:text;not null;default:''" json:"display_name"`
	GlobalRole   string       `gorm:"column:global_role;type:text;not null;default:'user'" json:"global_role"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Session represents a persisted login session. Only the token hash is stored.
type Session struct {
	ID               snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UserID           snowflake.ID `gorm:"column:user_id;not null;index" json:"user_id"`
	SessionTokenHash string       `gorm:"column:session_token_hash;type:text;not null;uniqueIndex" json:"token_hash"`
	UserAgent        string       `gorm:"column:user_agent;type:text" json:"user_agent,omitempty"`
	IPAddress        string       `gorm:"column:ip_address;type:text" json:"ip_address,omitempty"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null" json:"expires_at"`
	RevokedAt        *time.Time   `gorm:"column:revoked_at" json:"revoked_at,omitempty"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null" json:"created_at"`
	LastSeenAt       *time.Time   `gorm:"column:last_seen_at" json:"last_seen_at,omitempty"`
}

func (Session) TableName() string { return "sessions" }
