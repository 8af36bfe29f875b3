package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type ListFilter struct {
	OrgID *snowflake.ID
	Since time.Time
	Until time.Time
	Limit int
	// Ascending orders by started_at ascending; the default is newest first.
	Ascending bool
}

type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Call, error)
	Insert(ctx context.Context, call *Call) error
	// ExtensionNames maps extensions to the synced display name, falling back
	// to the email of the member the extension is assigned to.
	ExtensionNames(ctx context.Context, extensions []string) (map[string]string, error)
	ListExtensions(ctx context.Context) ([]Extension, error)
}
