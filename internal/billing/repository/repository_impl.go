package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/billing/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func first[T any](q *gorm.DB) (*T, error) {
	var row T
	err := q.First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) ListPlans(ctx context.Context, activeOnly bool) ([]domain.Plan, error) {
	q := r.db.WithContext(ctx).Model(&domain.Plan{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var plans []domain.Plan
	if err := q.Order("price_cents ASC").Order("id ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repository) GetPlan(ctx context.Context, id snowflake.ID) (*domain.Plan, error) {
	return first[domain.Plan](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) InsertPlan(ctx context.Context, plan *domain.Plan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *repository) UpdatePlan(ctx context.Context, plan *domain.Plan) error {
	return r.db.WithContext(ctx).Save(plan).Error
}

func (r *repository) ListSubscriptions(ctx context.Context, orgID *snowflake.ID) ([]domain.Subscription, error) {
	q := r.db.WithContext(ctx).Model(&domain.Subscription{})
	if orgID != nil {
		q = q.Where("org_id = ?", *orgID)
	}
	var subs []domain.Subscription
	if err := q.Order("created_at DESC").Order("id DESC").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) GetSubscription(ctx context.Context, id snowflake.ID) (*domain.Subscription, error) {
	return first[domain.Subscription](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) ActiveSubscription(ctx context.Context, orgID snowflake.ID) (*domain.Subscription, error) {
	return first[domain.Subscription](r.db.WithContext(ctx).
		Where("org_id = ? AND status = ?", orgID, domain.SubscriptionActive).
		Order("created_at DESC"))
}

func (r *repository) InsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) UpdateSubscription(ctx context.Context, sub *domain.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *repository) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	q := r.db.WithContext(ctx).Model(&domain.Invoice{})
	if filter.OrgID != nil {
		q = q.Where("org_id = ?", *filter.OrgID)
	}
	if filter.Cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit + 1)
	}

	var invoices []domain.Invoice
	if err := q.Order("created_at DESC").Order("id DESC").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repository) GetInvoice(ctx context.Context, id snowflake.ID) (*domain.Invoice, error) {
	return first[domain.Invoice](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) ListInvoiceItems(ctx context.Context, invoiceID snowflake.ID) ([]domain.InvoiceItem, error) {
	var items []domain.InvoiceItem
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) CountInvoicesWithPrefix(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("invoice_number LIKE ?", prefix+"%").
		Count(&n).Error
	return n, err
}

func (r *repository) InsertInvoice(ctx context.Context, invoice *domain.Invoice) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(invoice).Error; err != nil {
			return err
		}
		if len(invoice.Items) == 0 {
			return nil
		}
		return tx.Create(&invoice.Items).Error
	})
}

func (r *repository) UpdateInvoice(ctx context.Context, invoice *domain.Invoice) error {
	return r.db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("id = ?", invoice.ID).
		Updates(map[string]any{
			"status":    invoice.Status,
			"issued_at": invoice.IssuedAt,
			"due_at":    invoice.DueAt,
			"paid_at":   invoice.PaidAt,
		}).Error
}
