package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/pkg/db/pagination"
)

// Entry is a single audit event. Actor fields fall back to the request context.
type Entry struct {
	OrgID      *snowflake.ID
	ActorType  ActorType
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type ListRequest struct {
	pagination.Pagination
	OrgID  *snowflake.ID
	Action string
}

type ListResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
