package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	RangeDay   = "day"
	RangeWeek  = "week"
	RangeMonth = "month"
	RangeYear  = "year"
)

type Service interface {
	// TodayStats counts today's calls to the org's assigned numbers.
	TodayStats(ctx context.Context, orgID snowflake.ID) (Stats, error)
	// OrgStats counts today's calls stored under the org.
	OrgStats(ctx context.Context, orgID snowflake.ID) (Stats, error)
	Recent(ctx context.Context, orgID *snowflake.ID, limit int) ([]RecentCall, error)
	QueueSummary(ctx context.Context, orgID *snowflake.ID) ([]QueueSummary, error)
	Series(ctx context.Context, orgID *snowflake.ID, rng string) ([]SeriesPoint, error)
	CallStats(ctx context.Context, req CallStatsRequest) (*CallStatsResponse, error)
	ClientMetrics(ctx context.Context, orgID *snowflake.ID) (*Metrics, error)
	OrgMetrics(ctx context.Context) ([]OrgMetrics, error)
	ListExtensions(ctx context.Context) ([]Extension, error)
	SeedCall(ctx context.Context, req SeedCallRequest) (*Call, error)
}

type CallStatsRequest struct {
	OrgID     snowflake.ID
	StartDate string
	EndDate   string
	// AssignedNumbersOnly restricts results to calls to the org's numbers.
	AssignedNumbersOnly bool
}

type SeedCallRequest struct {
	OrgID      snowflake.ID `json:"org_id"`
	Direction  string       `json:"direction"`
	Status     string       `json:"status"`
	FromNumber string       `json:"from_number"`
	ToNumber   string       `json:"to_number"`
	QueueName  string       `json:"queue_name"`
	StartedAt  *time.Time   `json:"started_at"`
	AnsweredAt *time.Time   `json:"answered_at"`
	EndedAt    *time.Time   `json:"ended_at"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidRange        = errors.New("invalid_range")
	ErrInvalidDate         = errors.New("invalid_date")
)
