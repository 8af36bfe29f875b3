package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/pkg/db/pagination"
)

type Service interface {
	ListPlans(ctx context.Context, activeOnly bool) ([]Plan, error)
	CreatePlan(ctx context.Context, req CreatePlanRequest) (*Plan, error)
	UpdatePlan(ctx context.Context, id snowflake.ID, req UpdatePlanRequest) (*Plan, error)

	ListSubscriptions(ctx context.Context, orgID *snowflake.ID) ([]Subscription, error)
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*Subscription, error)
	CancelSubscription(ctx context.Context, id snowflake.ID) (*Subscription, error)

	ListInvoices(ctx context.Context, req ListInvoicesRequest) (ListInvoicesResponse, error)
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error)
	GetInvoice(ctx context.Context, id snowflake.ID) (*Invoice, error)
	SetInvoiceStatus(ctx context.Context, id snowflake.ID, status string) (*Invoice, error)
	// RenderInvoicePDF renders a receipt for paid invoices and an invoice otherwise.
	RenderInvoicePDF(ctx context.Context, id snowflake.ID) (*Document, error)

	OrgBilling(ctx context.Context, orgID snowflake.ID) (*OrgBilling, error)
}

type CreatePlanRequest struct {
	Name            string  `json:"name"`
	Description     *string `json:"description"`
	PriceCents      int64   `json:"price_cents"`
	Currency        string  `json:"currency"`
	BillingInterval string  `json:"billing_interval"`
	IncludedMinutes int     `json:"included_minutes"`
	IncludedNumbers int     `json:"included_numbers"`
	IsActive        *bool   `json:"is_active"`
}

type UpdatePlanRequest struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	PriceCents      *int64  `json:"price_cents"`
	Currency        *string `json:"currency"`
	BillingInterval *string `json:"billing_interval"`
	IncludedMinutes *int    `json:"included_minutes"`
	IncludedNumbers *int    `json:"included_numbers"`
	IsActive        *bool   `json:"is_active"`
}

type CreateSubscriptionRequest struct {
	OrgID     snowflake.ID
	PlanID    snowflake.ID
	StartedAt *time.Time
}

type ListInvoicesRequest struct {
	pagination.Pagination
	OrgID *snowflake.ID
}

type ListInvoicesResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type InvoiceItemInput struct {
	Description    string `json:"description"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type CreateInvoiceRequest struct {
	OrgID       snowflake.ID
	Currency    string
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	DueAt       *time.Time
	Items       []InvoiceItemInput
}

type Document struct {
	FileName string
	Body     []byte
}

var (
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidPrice         = errors.New("invalid_price")
	ErrInvalidCurrency      = errors.New("invalid_currency")
	ErrInvalidInterval      = errors.New("invalid_billing_interval")
	ErrInvalidQuantity      = errors.New("invalid_quantity")
	ErrInvalidItems         = errors.New("invalid_items")
	ErrInvalidPeriod        = errors.New("invalid_period")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrInvalidTransition    = errors.New("invalid_status_transition")
	ErrInvalidPageToken     = errors.New("invalid_page_token")
	ErrPlanNotFound         = errors.New("plan_not_found")
	ErrPlanInactive         = errors.New("plan_inactive")
	ErrSubscriptionExists   = errors.New("subscription_already_active")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrAlreadyCancelled     = errors.New("subscription_already_cancelled")
	ErrInvoiceNotFound      = errors.New("invoice_not_found")
)
