package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	calldomain "github.com/smallbiznis/switchboard/internal/call/domain"
	recordingdomain "github.com/smallbiznis/switchboard/internal/recording/domain"
)

// Repository writes synced rows. The Replace* methods delete the org's rows
// in [from, to] and insert the new set in one transaction.
type Repository interface {
	ReplaceCalls(ctx context.Context, orgID snowflake.ID, from, to time.Time, rows []calldomain.Call) error
	ReplaceRecordings(ctx context.Context, orgID snowflake.ID, from, to time.Time, rows []recordingdomain.Recording) error
	ReplaceReports(ctx context.Context, orgID snowflake.ID, reportType string, from, to time.Time, rows []Report) error
	UpsertExtensions(ctx context.Context, rows []calldomain.Extension) (int64, error)
	UpsertSMS(ctx context.Context, rows []SMSMessage) (int64, error)
}
