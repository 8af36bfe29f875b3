package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const TypeMightyCall = "mightycall"

// OrgIntegration holds one org's sealed provider credentials.
type OrgIntegration struct {
	OrgID                snowflake.ID `gorm:"column:org_id;not null;uniqueIndex:uq_org_integrations,priority:1"`
	IntegrationType      string       `gorm:"column:integration_type;type:text;not null;uniqueIndex:uq_org_integrations,priority:2"`
	EncryptedCredentials string       `gorm:"column:encrypted_credentials;type:text;not null"`
	CreatedAt            time.Time    `gorm:"not null"`
	UpdatedAt            time.Time    `gorm:"not null"`
}

func (OrgIntegration) TableName() string { return "org_integrations" }

type View struct {
	OrgID           snowflake.ID `json:"org_id"`
	IntegrationType string       `json:"integration_type"`
	Configured      bool         `json:"configured"`
	ClientID        string       `json:"client_id,omitempty"`
	UpdatedAt       *time.Time   `json:"updated_at,omitempty"`
}
