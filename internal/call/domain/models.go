package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Call is a mirrored provider call. Rows are replaced per sync window and
// never edited in place.
type Call struct {
	ID              snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	OrgID           snowflake.ID `gorm:"column:org_id;not null;index:idx_calls_org_started,priority:1" json:"org_id"`
	ExternalID      *string      `gorm:"column:external_id;type:text" json:"external_id,omitempty"`
	Direction       *string      `gorm:"type:text" json:"direction"`
	Status          *string      `gorm:"type:text" json:"status"`
	FromNumber      *string      `gorm:"column:from_number;type:text" json:"from_number"`
	ToNumber        *string      `gorm:"column:to_number;type:text" json:"to_number"`
	ToNumberDigits  *string      `gorm:"column:to_number_digits;type:text" json:"to_number_digits,omitempty"`
	QueueName       *string      `gorm:"column:queue_name;type:text" json:"queue_name"`
	AgentExtension  *string      `gorm:"column:agent_extension;type:text" json:"agent_extension,omitempty"`
	StartedAt       time.Time    `gorm:"column:started_at;not null;index:idx_calls_org_started,priority:2" json:"started_at"`
	AnsweredAt      *time.Time   `gorm:"column:answered_at" json:"answered_at"`
	EndedAt         *time.Time   `gorm:"column:ended_at" json:"ended_at"`
	DurationSeconds int          `gorm:"column:duration_seconds;not null;default:0" json:"duration_seconds"`
	CreatedAt       time.Time    `gorm:"not null" json:"created_at"`
}

func (Call) TableName() string { return "calls" }

func (c Call) StatusValue() string {
	if c.Status == nil {
		return ""
	}
	return strings.ToLower(*c.Status)
}

func (c Call) ToNumberValue() string {
	if c.ToNumber == nil {
		return ""
	}
	return *c.ToNumber
}

// dedupeKey identifies the same provider call mirrored into several orgs.
func (c Call) dedupeKey() string {
	return c.StartedAt.UTC().Format(time.RFC3339Nano) + "::" + c.ToNumberValue()
}

// Extension maps an agent extension to a display name.
type Extension struct {
	ID          snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Extension   string            `gorm:"type:text;not null;uniqueIndex" json:"extension"`
	ExternalID  *string           `gorm:"column:external_id;type:text" json:"external_id,omitempty"`
	DisplayName *string           `gorm:"column:display_name;type:text" json:"display_name"`
	Metadata    datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
	UpdatedAt   time.Time         `gorm:"not null" json:"updated_at"`
}

func (Extension) TableName() string { return "mightycall_extensions" }

func IsAnswered(status string) bool {
	s := strings.ToLower(status)
	return s == "answered" || s == "completed"
}

func IsMissed(status string) bool {
	return strings.ToLower(status) == "missed"
}

// DedupeCalls drops repeats by started_at + to_number, keeping order.
func DedupeCalls(calls []Call) []Call {
	seen := make(map[string]struct{}, len(calls))
	out := make([]Call, 0, len(calls))
	for _, c := range calls {
		key := c.dedupeKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// AnswerRate is answered/total as a rounded percentage.
func AnswerRate(answered, total int) int {
	if total <= 0 {
		return 0
	}
	return int(float64(answered)*100/float64(total) + 0.5)
}

type Stats struct {
	TotalCalls    int `json:"total_calls"`
	AnsweredCalls int `json:"answered_calls"`
	MissedCalls   int `json:"missed_calls"`
	AnswerRatePct int `json:"answer_rate_pct"`
}

func Summarize(calls []Call) Stats {
	var s Stats
	for _, c := range calls {
		s.TotalCalls++
		switch st := c.StatusValue(); {
		case IsAnswered(st):
			s.AnsweredCalls++
		case IsMissed(st):
			s.MissedCalls++
		}
	}
	s.AnswerRatePct = AnswerRate(s.AnsweredCalls, s.TotalCalls)
	return s
}

type RecentCall struct {
	ID         snowflake.ID `json:"id"`
	Direction  *string      `json:"direction"`
	Status     *string      `json:"status"`
	FromNumber *string      `json:"fromNumber"`
	ToNumber   *string      `json:"toNumber"`
	QueueName  *string      `json:"queueName"`
	StartedAt  time.Time    `json:"startedAt"`
	AnsweredAt *time.Time   `json:"answeredAt"`
	EndedAt    *time.Time   `json:"endedAt"`
	AgentName  *string      `json:"agentName"`
}

type QueueSummary struct {
	Name       string `json:"name"`
	TotalCalls int    `json:"totalCalls"`
	Answered   int    `json:"answered"`
	Missed     int    `json:"missed"`
}

type SeriesPoint struct {
	BucketLabel string `json:"bucketLabel"`
	TotalCalls  int    `json:"totalCalls"`
	Answered    int    `json:"answered"`
	Missed      int    `json:"missed"`
}

type CallStats struct {
	TotalCalls           int `json:"totalCalls"`
	AnsweredCalls        int `json:"answeredCalls"`
	MissedCalls          int `json:"missedCalls"`
	AnswerRate           int `json:"answerRate"`
	TotalDurationSeconds int `json:"totalDurationSeconds"`
	AvgDurationSeconds   int `json:"avgDurationSeconds"`
}

type CallStatsResponse struct {
	Stats CallStats `json:"stats"`
	Calls []Call    `json:"calls"`
}

type Metrics struct {
	OrgID          *snowflake.ID `json:"org_id,omitempty"`
	TotalCalls     int           `json:"total_calls"`
	AnsweredCalls  int           `json:"answered_calls"`
	AnswerRatePct  int           `json:"answer_rate_pct"`
	AvgWaitSeconds int           `json:"avg_wait_seconds"`
}

type OrgMetrics struct {
	ID             snowflake.ID `json:"id"`
	Name           string       `json:"name"`
	TotalCalls     int          `json:"total_calls"`
	AnsweredCalls  int          `json:"answered_calls"`
	AnswerRatePct  int          `json:"answer_rate_pct"`
	AvgWaitSeconds int          `json:"avg_wait_seconds"`
}

// ComputeMetrics folds calls into answer-rate and average wait. Wait is
// answered_at - started_at over answered calls that carry both.
func ComputeMetrics(calls []Call) Metrics {
	var (
		m        Metrics
		waitSum  float64
		waitSeen int
	)
	for _, c := range calls {
		m.TotalCalls++
		if !IsAnswered(c.StatusValue()) {
			continue
		}
		m.AnsweredCalls++
		if c.AnsweredAt != nil && !c.StartedAt.IsZero() {
			diff := c.AnsweredAt.Sub(c.StartedAt).Seconds()
			if diff < 0 {
				diff = 0
			}
			waitSum += diff
			waitSeen++
		}
	}
	m.AnswerRatePct = AnswerRate(m.AnsweredCalls, m.TotalCalls)
	if waitSeen > 0 {
		m.AvgWaitSeconds = int(waitSum/float64(waitSeen) + 0.5)
	}
	return m
}
