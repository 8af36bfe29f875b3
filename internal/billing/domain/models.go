package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	IntervalMonthly = "monthly"
	IntervalYearly  = "yearly"
)

const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
)

const (
	InvoiceDraft  = "draft"
	InvoiceIssued = "issued"
	InvoicePaid   = "paid"
	InvoiceVoid   = "void"
)

type Plan struct {
	ID              snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name            string       `gorm:"type:text;not null" json:"name"`
	Description     *string      `gorm:"type:text" json:"description,omitempty"`
	PriceCents      int64        `gorm:"not null;default:0" json:"price_cents"`
	Currency        string       `gorm:"type:text;not null;default:'USD'" json:"currency"`
	BillingInterval string       `gorm:"type:text;not null;default:'monthly'" json:"billing_interval"`
	IncludedMinutes int          `gorm:"not null;default:0" json:"included_minutes"`
	IncludedNumbers int          `gorm:"not null;default:0" json:"included_numbers"`
	IsActive        bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null" json:"updated_at"`
}

func (Plan) TableName() string { return "billing_plans" }

type Subscription struct {
	ID              snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	OrgID           snowflake.ID `gorm:"not null;index" json:"org_id"`
	PlanID          snowflake.ID `gorm:"not null" json:"plan_id"`
	Status          string       `gorm:"type:text;not null;default:'active'" json:"status"`
	StartedAt       time.Time    `gorm:"not null" json:"started_at"`
	NextBillingDate time.Time    `gorm:"not null" json:"next_billing_date"`
	CancelledAt     *time.Time   `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time    `gorm:"not null" json:"created_at"`
}

func (Subscription) TableName() string { return "org_subscriptions" }

type Invoice struct {
	ID            snowflake.ID  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	OrgID         snowflake.ID  `gorm:"not null;index" json:"org_id"`
	InvoiceNumber string        `gorm:"type:text;not null;uniqueIndex" json:"invoice_number"`
	Status        string        `gorm:"type:text;not null;default:'draft'" json:"status"`
	Currency      string        `gorm:"type:text;not null;default:'USD'" json:"currency"`
	SubtotalCents int64         `gorm:"not null;default:0" json:"subtotal_cents"`
	TotalCents    int64         `gorm:"not null;default:0" json:"total_cents"`
	PeriodStart   *time.Time    `json:"period_start,omitempty"`
	PeriodEnd     *time.Time    `json:"period_end,omitempty"`
	IssuedAt      *time.Time    `json:"issued_at,omitempty"`
	DueAt         *time.Time    `json:"due_at,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	CreatedAt     time.Time     `gorm:"not null" json:"created_at"`
	Items         []InvoiceItem `gorm:"-" json:"items,omitempty"`
}

func (Invoice) TableName() string { return "invoices" }

type InvoiceItem struct {
	ID             snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	InvoiceID      snowflake.ID `gorm:"not null;index" json:"invoice_id"`
	Description    string       `gorm:"type:text;not null" json:"description"`
	Quantity       int          `gorm:"not null;default:1" json:"quantity"`
	UnitPriceCents int64        `gorm:"not null;default:0" json:"unit_price_cents"`
	AmountCents    int64        `gorm:"not null;default:0" json:"amount_cents"`
}

func (InvoiceItem) TableName() string { return "invoice_items" }

// OrgBilling is the billing overview shown to an org.
type OrgBilling struct {
	Subscription *Subscription `json:"subscription"`
	Plan         *Plan         `json:"plan"`
	Invoices     []Invoice     `json:"invoices"`
}

// AddInterval advances t by one billing interval. Days past the end of the
// target month are clamped to its last day, so Jan 31 becomes Feb 28 (or 29).
func AddInterval(t time.Time, interval string) (time.Time, error) {
	switch interval {
	case IntervalMonthly:
		return addMonthsClamped(t, 1), nil
	case IntervalYearly:
		return addMonthsClamped(t, 12), nil
	default:
		return time.Time{}, ErrInvalidInterval
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, months, 0)
	last := target.AddDate(0, 1, -1).Day()
	return target.AddDate(0, 0, min(t.Day(), last)-1)
}

// InvoiceNumberPrefix is the INV-YYYYMM- prefix for invoices created at t.
func InvoiceNumberPrefix(t time.Time) string {
	return fmt.Sprintf("INV-%04d%02d-", t.Year(), int(t.Month()))
}

func FormatInvoiceNumber(t time.Time, seq int) string {
	return fmt.Sprintf("%s%04d", InvoiceNumberPrefix(t), seq)
}

var invoiceTransitions = map[string][]string{
	InvoiceDraft:  {InvoiceIssued, InvoiceVoid},
	InvoiceIssued: {InvoicePaid, InvoiceVoid},
}

// CanTransition reports whether an invoice may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range invoiceTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// FormatCents renders an amount as "USD 12.34".
func FormatCents(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s %s%d.%02d", currency, sign, cents/100, cents%100)
}
