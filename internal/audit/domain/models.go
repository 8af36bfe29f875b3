package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeAPIKey ActorType = "api_key"
	ActorTypeSystem ActorType = "system"
)

// AuditLog records an admin mutation or an authorization denial.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	OrgID      *snowflake.ID     `gorm:"column:org_id;index" json:"org_id,omitempty"`
	ActorType  string            `gorm:"column:actor_type;type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"column:actor_id;type:text" json:"actor_id,omitempty"`
	Action     string            `gorm:"column:action;type:text;not null" json:"action"`
	TargetType *string           `gorm:"column:target_type;type:text" json:"target_type,omitempty"`
	TargetID   *string           `gorm:"column:target_id;type:text" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"column:created_at;not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	OrgID  *snowflake.ID
	Action string
	Cursor *AuditCursor
	Limit  int
}
