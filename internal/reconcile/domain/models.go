// Package domain holds the rows written by provider syncs that no other
// package owns, and the sync job audit record.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const ReportTypeCalls = "calls"

// Report is a per-day, per-number call rollup.
type Report struct {
	ID            snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	OrgID         snowflake.ID      `gorm:"column:org_id;not null;index:idx_reports_org_date,priority:1" json:"org_id"`
	PhoneNumberID *snowflake.ID     `gorm:"column:phone_number_id" json:"phone_number_id"`
	ReportType    string            `gorm:"column:report_type;type:text;not null" json:"report_type"`
	ReportDate    time.Time         `gorm:"column:report_date;type:date;not null;index:idx_reports_org_date,priority:2" json:"report_date"`
	Data          datatypes.JSONMap `gorm:"column:data" json:"data"`
}

func (Report) TableName() string { return "mightycall_reports" }

type SMSMessage struct {
	ID            snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	OrgID         snowflake.ID      `gorm:"column:org_id;not null;uniqueIndex:uq_sms_org_external,priority:1" json:"org_id"`
	PhoneNumberID *snowflake.ID     `gorm:"column:phone_number_id" json:"phone_number_id"`
	ExternalID    string            `gorm:"column:external_id;type:text;not null;uniqueIndex:uq_sms_org_external,priority:2" json:"external_id"`
	FromNumber    *string           `gorm:"column:from_number;type:text" json:"from_number"`
	ToNumber      *string           `gorm:"column:to_number;type:text" json:"to_number"`
	MessageText   *string           `gorm:"column:message_text;type:text" json:"message_text"`
	Direction     string            `gorm:"type:text" json:"direction"`
	Status        string            `gorm:"type:text" json:"status"`
	MessageDate   time.Time         `gorm:"column:message_date" json:"message_date"`
	Metadata      datatypes.JSONMap `gorm:"column:metadata" json:"-"`
}

func (SMSMessage) TableName() string { return "mightycall_sms_messages" }

const (
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

type SyncJob struct {
	ID               snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	OrgID            *snowflake.ID     `gorm:"column:org_id;index" json:"org_id"`
	IntegrationType  string            `gorm:"column:integration_type;type:text;not null" json:"integration_type"`
	Status           string            `gorm:"type:text;not null" json:"status"`
	StartedAt        time.Time         `gorm:"not null" json:"started_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	RecordsProcessed int               `gorm:"column:records_processed;not null;default:0" json:"records_processed"`
	ErrorMessage     *string           `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	Metadata         datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
}

func (SyncJob) TableName() string { return "sync_jobs" }
