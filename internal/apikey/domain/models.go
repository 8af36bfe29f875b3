package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	ScopePlatform = "platform"
	ScopeOrg      = "org"
)

// APIKey stores hashed API credentials scoped to the platform or one organization.
type APIKey struct {
	ID         string        `gorm:"primaryKey;type:text"`
	Scope      string        `gorm:"type:text;not null"`
	OrgID      *snowflake.ID `gorm:"column:org_id;index"`
	Name       string        `gorm:"type:text;not null"`
	KeyHash    string        `gorm:"column:key_hash;type:text;not null;uniqueIndex"`
	KeyPrefix  string        `gorm:"column:key_prefix;type:text;not null"`
	CreatedBy  *snowflake.ID `gorm:"column:created_by"`
	CreatedAt  time.Time     `gorm:"not null"`
	LastUsedAt *time.Time    `gorm:"column:last_used_at"`
	RevokedAt  *time.Time    `gorm:"column:revoked_at"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }

func (k APIKey) Active() bool {
	return k.RevokedAt == nil
}
