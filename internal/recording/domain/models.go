package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Recording struct {
	ID              snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	OrgID           snowflake.ID      `gorm:"column:org_id;not null;index:idx_recordings_org_date,priority:1" json:"org_id"`
	PhoneNumberID   *snowflake.ID     `gorm:"column:phone_number_id" json:"phone_number_id"`
	CallID          *string           `gorm:"column:call_id;type:text" json:"call_id"`
	RecordingURL    string            `gorm:"column:recording_url;type:text;not null" json:"recording_url"`
	DurationSeconds int               `gorm:"column:duration_seconds;not null;default:0" json:"duration"`
	RecordingDate   time.Time         `gorm:"column:recording_date;not null;index:idx_recordings_org_date,priority:2" json:"recording_date"`
	FromNumber      *string           `gorm:"column:from_number;type:text" json:"from_number"`
	ToNumber        *string           `gorm:"column:to_number;type:text" json:"to_number"`
	Metadata        datatypes.JSONMap `gorm:"column:metadata" json:"-"`
}

func (Recording) TableName() string { return "mightycall_recordings" }

type View struct {
	Recording
	DisplayName string `json:"display_name"`
}

// DisplayName renders "from → to", with Unknown for missing ends.
func (r Recording) DisplayName() string {
	from, to := "Unknown", "Unknown"
	if r.FromNumber != nil && *r.FromNumber != "" {
		from = *r.FromNumber
	}
	if r.ToNumber != nil && *r.ToNumber != "" {
		to = *r.ToNumber
	}
	return from + " → " + to
}
