package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type PhoneNumber struct {
	ID           snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	ExternalID   string            `gorm:"column:external_id;type:text;not null;uniqueIndex" json:"external_id"`
	Number       string            `gorm:"type:text;not null" json:"number"`
	E164         string            `gorm:"column:e164;type:text" json:"e164"`
	NumberDigits string            `gorm:"column:number_digits;type:text" json:"number_digits"`
	Label        string            `gorm:"type:text" json:"label"`
	OrgID        *snowflake.ID     `gorm:"column:org_id;index" json:"org_id,omitempty"`
	IsActive     bool              `gorm:"column:is_active;not null" json:"is_active"`
	Metadata     datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null" json:"updated_at"`
}

func (PhoneNumber) TableName() string { return "phone_numbers" }

// OrgPhoneNumber links a number to an org when the mapped schema is in use.
type OrgPhoneNumber struct {
	OrgID         snowflake.ID `gorm:"not null;uniqueIndex:uq_org_phone_numbers,priority:1"`
	PhoneNumberID snowflake.ID `gorm:"not null;uniqueIndex:uq_org_phone_numbers,priority:2;index"`
	CreatedAt     time.Time    `gorm:"not null"`
}

func (OrgPhoneNumber) TableName() string { return "org_phone_numbers" }

// MatchSet answers "is this number one of ours" by last ten digits.
type MatchSet struct {
	ids map[string]snowflake.ID
}

func NewMatchSet(numbers []PhoneNumber) MatchSet {
	set := MatchSet{ids: make(map[string]snowflake.ID, len(numbers)*2)}
	for _, n := range numbers {
		for _, candidate := range []string{n.Number, n.NumberDigits, n.E164} {
			if key := Last10(candidate); key != "" {
				set.ids[key] = n.ID
			}
		}
	}
	return set
}

func (s MatchSet) Empty() bool {
	return len(s.ids) == 0
}

func (s MatchSet) Contains(raw string) bool {
	_, ok := s.Lookup(raw)
	return ok
}

// Lookup returns the phone number id matching raw.
func (s MatchSet) Lookup(raw string) (snowflake.ID, bool) {
	key := Last10(raw)
	if key == "" {
		return 0, false
	}
	id, ok := s.ids[key]
	return id, ok
}
