package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type InvoiceCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type InvoiceFilter struct {
	OrgID  *snowflake.ID
	Cursor *InvoiceCursor
	Limit  int
}

type Repository interface {
	ListPlans(ctx context.Context, activeOnly bool) ([]Plan, error)
	GetPlan(ctx context.Context, id snowflake.ID) (*Plan, error)
	InsertPlan(ctx context.Context, plan *Plan) error
	UpdatePlan(ctx context.Context, plan *Plan) error

	ListSubscriptions(ctx context.Context, orgID *snowflake.ID) ([]Subscription, error)
	GetSubscription(ctx context.Context, id snowflake.ID) (*Subscription, error)
	ActiveSubscription(ctx context.Context, orgID snowflake.ID) (*Subscription, error)
	InsertSubscription(ctx context.Context, sub *Subscription) error
	UpdateSubscription(ctx context.Context, sub *Subscription) error

	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
	GetInvoice(ctx context.Context, id snowflake.ID) (*Invoice, error)
	ListInvoiceItems(ctx context.Context, invoiceID snowflake.ID) ([]InvoiceItem, error)
	CountInvoicesWithPrefix(ctx context.Context, prefix string) (int64, error)
	InsertInvoice(ctx context.Context, invoice *Invoice) error
	UpdateInvoice(ctx context.Context, invoice *Invoice) error
}
