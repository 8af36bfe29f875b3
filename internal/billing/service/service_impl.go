package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/switchboard/internal/audit/domain"
	"github.com/smallbiznis/switchboard/internal/billing/domain"
	"github.com/smallbiznis/switchboard/internal/clock"
	orgdomain "github.com/smallbiznis/switchboard/internal/organization/domain"
	"github.com/smallbiznis/switchboard/internal/providers/pdf"
	"github.com/smallbiznis/switchboard/pkg/db"
	"github.com/smallbiznis/switchboard/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultInvoiceLimit = 50
	maxInvoiceLimit     = 200
	invoiceNumberTries  = 5
	defaultPaymentTerms = 30 * 24 * time.Hour
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Repo     domain.Repository
	OrgSvc   orgdomain.Service
	PDF      pdf.Provider
	GenID    *snowflake.Node
	Clock    clock.Clock
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	repo     domain.Repository
	orgSvc   orgdomain.Service
	pdf      pdf.Provider
	genID    *snowflake.Node
	clock    clock.Clock
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("billing.service"),
		repo:     p.Repo,
		orgSvc:   p.OrgSvc,
		pdf:      p.PDF,
		genID:    p.GenID,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) ListPlans(ctx context.Context, activeOnly bool) ([]domain.Plan, error) {
	return s.repo.ListPlans(ctx, activeOnly)
}

func (s *Service) CreatePlan(ctx context.Context, req domain.CreatePlanRequest) (*domain.Plan, error) {
	now := s.clock.Now()
	plan := &domain.Plan{
		ID:              s.genID.Generate(),
		Name:            strings.TrimSpace(req.Name),
		Description:     req.Description,
		PriceCents:      req.PriceCents,
		Currency:        normalizeCurrency(req.Currency),
		BillingInterval: strings.ToLower(strings.TrimSpace(req.BillingInterval)),
		IncludedMinutes: req.IncludedMinutes,
		IncludedNumbers: req.IncludedNumbers,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if plan.BillingInterval == "" {
		plan.BillingInterval = domain.IntervalMonthly
	}
	if req.IsActive != nil {
		plan.IsActive = *req.IsActive
	}
	if err := validatePlan(plan); err != nil {
		return nil, err
	}

	if err := s.repo.InsertPlan(ctx, plan); err != nil {
		return nil, err
	}
	s.audit(ctx, nil, "billing.plan.create", "billing_plan", plan.ID.String(), map[string]any{"name": plan.Name})
	return plan, nil
}

func (s *Service) UpdatePlan(ctx context.Context, id snowflake.ID, req domain.UpdatePlanRequest) (*domain.Plan, error) {
	plan, err := s.repo.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound
	}

	if req.Name != nil {
		plan.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		plan.Description = req.Description
	}
	if req.PriceCents != nil {
		plan.PriceCents = *req.PriceCents
	}
	if req.Currency != nil {
		plan.Currency = normalizeCurrency(*req.Currency)
	}
	if req.BillingInterval != nil {
		plan.BillingInterval = strings.ToLower(strings.TrimSpace(*req.BillingInterval))
	}
	if req.IncludedMinutes != nil {
		plan.IncludedMinutes = *req.IncludedMinutes
	}
	if req.IncludedNumbers != nil {
		plan.IncludedNumbers = *req.IncludedNumbers
	}
	if req.IsActive != nil {
		plan.IsActive = *req.IsActive
	}
	if err := validatePlan(plan); err != nil {
		return nil, err
	}

	plan.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdatePlan(ctx, plan); err != nil {
		return nil, err
	}
	s.audit(ctx, nil, "billing.plan.update", "billing_plan", plan.ID.String(), nil)
	return plan, nil
}

func validatePlan(plan *domain.Plan) error {
	switch {
	case plan.Name == "":
		return domain.ErrInvalidName
	case plan.PriceCents < 0:
		return domain.ErrInvalidPrice
	case len(plan.Currency) != 3:
		return domain.ErrInvalidCurrency
	case plan.BillingInterval != domain.IntervalMonthly && plan.BillingInterval != domain.IntervalYearly:
		return domain.ErrInvalidInterval
	case plan.IncludedMinutes < 0 || plan.IncludedNumbers < 0:
		return domain.ErrInvalidQuantity
	}
	return nil
}

func normalizeCurrency(raw string) string {
	c := strings.ToUpper(strings.TrimSpace(raw))
	if c == "" {
		return "USD"
	}
	return c
}

func (s *Service) ListSubscriptions(ctx context.Context, orgID *snowflake.ID) ([]domain.Subscription, error) {
	return s.repo.ListSubscriptions(ctx, orgID)
}

func (s *Service) CreateSubscription(ctx context.Context, req domain.CreateSubscriptionRequest) (*domain.Subscription, error) {
	if err := s.requireOrg(ctx, req.OrgID); err != nil {
		return nil, err
	}
	plan, err := s.repo.GetPlan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound
	}
	if !plan.IsActive {
		return nil, domain.ErrPlanInactive
	}

	active, err := s.repo.ActiveSubscription(ctx, req.OrgID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, domain.ErrSubscriptionExists
	}

	now := s.clock.Now().UTC()
	started := now
	if req.StartedAt != nil {
		started = req.StartedAt.UTC()
	}
	next, err := domain.AddInterval(started, plan.BillingInterval)
	if err != nil {
		return nil, err
	}

	sub := &domain.Subscription{
		ID:              s.genID.Generate(),
		OrgID:           req.OrgID,
		PlanID:          plan.ID,
		Status:          domain.SubscriptionActive,
		StartedAt:       started,
		NextBillingDate: next,
		CreatedAt:       now,
	}
	if err := s.repo.InsertSubscription(ctx, sub); err != nil {
		return nil, err
	}
	orgID := req.OrgID
	s.audit(ctx, &orgID, "billing.subscription.create", "subscription", sub.ID.String(), map[string]any{"plan_id": plan.ID.String()})
	return sub, nil
}

func (s *Service) CancelSubscription(ctx context.Context, id snowflake.ID) (*domain.Subscription, error) {
	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	if sub.Status == domain.SubscriptionCancelled {
		return nil, domain.ErrAlreadyCancelled
	}

	now := s.clock.Now().UTC()
	sub.Status = domain.SubscriptionCancelled
	sub.CancelledAt = &now
	if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	orgID := sub.OrgID
	s.audit(ctx, &orgID, "billing.subscription.cancel", "subscription", sub.ID.String(), nil)
	return sub, nil
}

func (s *Service) ListInvoices(ctx context.Context, req domain.ListInvoicesRequest) (domain.ListInvoicesResponse, error) {
	var cursor *domain.InvoiceCursor
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListInvoicesResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(decoded.ID)
		if err != nil {
			return domain.ListInvoicesResponse{}, domain.ErrInvalidPageToken
		}
		createdAt, _ := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		cursor = &domain.InvoiceCursor{ID: id, CreatedAt: createdAt}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultInvoiceLimit
	}
	limit = min(limit, maxInvoiceLimit)

	items, err := s.repo.ListInvoices(ctx, domain.InvoiceFilter{OrgID: req.OrgID, Cursor: cursor, Limit: limit})
	if err != nil {
		return domain.ListInvoicesResponse{}, err
	}
	page, info, err := pagination.Trim(items, limit, func(inv domain.Invoice) pagination.Cursor {
		return pagination.Cursor{ID: inv.ID.String(), CreatedAt: inv.CreatedAt.UTC().Format(time.RFC3339Nano)}
	})
	if err != nil {
		return domain.ListInvoicesResponse{}, err
	}
	if page == nil {
		page = []domain.Invoice{}
	}
	return domain.ListInvoicesResponse{PageInfo: info, Invoices: page}, nil
}

func (s *Service) CreateInvoice(ctx context.Context, req domain.CreateInvoiceRequest) (*domain.Invoice, error) {
	if err := s.requireOrg(ctx, req.OrgID); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, domain.ErrInvalidItems
	}
	if req.PeriodStart != nil && req.PeriodEnd != nil && req.PeriodEnd.Before(*req.PeriodStart) {
		return nil, domain.ErrInvalidPeriod
	}
	currency := normalizeCurrency(req.Currency)
	if len(currency) != 3 {
		return nil, domain.ErrInvalidCurrency
	}

	now := s.clock.Now().UTC()
	invoice := &domain.Invoice{
		ID:          s.genID.Generate(),
		OrgID:       req.OrgID,
		Status:      domain.InvoiceDraft,
		Currency:    currency,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		DueAt:       req.DueAt,
		CreatedAt:   now,
	}
	for _, in := range req.Items {
		desc := strings.TrimSpace(in.Description)
		if desc == "" {
			return nil, domain.ErrInvalidItems
		}
		qty := in.Quantity
		if qty == 0 {
			qty = 1
		}
		if qty < 0 {
			return nil, domain.ErrInvalidQuantity
		}
		if in.UnitPriceCents < 0 {
			return nil, domain.ErrInvalidPrice
		}
		amount := int64(qty) * in.UnitPriceCents
		invoice.Items = append(invoice.Items, domain.InvoiceItem{
			ID:             s.genID.Generate(),
			InvoiceID:      invoice.ID,
			Description:    desc,
			Quantity:       qty,
			UnitPriceCents: in.UnitPriceCents,
			AmountCents:    amount,
		})
		invoice.SubtotalCents += amount
	}
	invoice.TotalCents = invoice.SubtotalCents

	if err := s.insertNumbered(ctx, invoice, now); err != nil {
		return nil, err
	}
	orgID := req.OrgID
	s.audit(ctx, &orgID, "billing.invoice.create", "invoice", invoice.ID.String(), map[string]any{
		"invoice_number": invoice.InvoiceNumber,
		"total_cents":    invoice.TotalCents,
	})
	return invoice, nil
}

// insertNumbered assigns the next INV-YYYYMM-<seq> number, retrying when a
// concurrent insert took it first.
func (s *Service) insertNumbered(ctx context.Context, invoice *domain.Invoice, now time.Time) error {
	count, err := s.repo.CountInvoicesWithPrefix(ctx, domain.InvoiceNumberPrefix(now))
	if err != nil {
		return err
	}
	seq := int(count) + 1
	for range invoiceNumberTries {
		invoice.InvoiceNumber = domain.FormatInvoiceNumber(now, seq)
		err = s.repo.InsertInvoice(ctx, invoice)
		if err == nil || !db.IsDuplicateKeyErr(err) {
			return err
		}
		s.log.Debug("invoice number taken, retrying", zap.String("invoice_number", invoice.InvoiceNumber))
		seq++
	}
	return err
}

func (s *Service) GetInvoice(ctx context.Context, id snowflake.ID) (*domain.Invoice, error) {
	invoice, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrInvoiceNotFound
	}
	items, err := s.repo.ListInvoiceItems(ctx, id)
	if err != nil {
		return nil, err
	}
	invoice.Items = items
	return invoice, nil
}

func (s *Service) SetInvoiceStatus(ctx context.Context, id snowflake.ID, status string) (*domain.Invoice, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case domain.InvoiceDraft, domain.InvoiceIssued, domain.InvoicePaid, domain.InvoiceVoid:
	default:
		return nil, domain.ErrInvalidStatus
	}

	invoice, err := s.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == status {
		return invoice, nil
	}
	if !domain.CanTransition(invoice.Status, status) {
		return nil, domain.ErrInvalidTransition
	}

	now := s.clock.Now().UTC()
	switch status {
	case domain.InvoiceIssued:
		invoice.IssuedAt = &now
		if invoice.DueAt == nil {
			due := now.Add(defaultPaymentTerms)
			invoice.DueAt = &due
		}
	case domain.InvoicePaid:
		invoice.PaidAt = &now
	}
	from := invoice.Status
	invoice.Status = status

	if err := s.repo.UpdateInvoice(ctx, invoice); err != nil {
		return nil, err
	}
	orgID := invoice.OrgID
	s.audit(ctx, &orgID, "billing.invoice.status", "invoice", invoice.ID.String(), map[string]any{"from": from, "to": status})
	return invoice, nil
}

func (s *Service) OrgBilling(ctx context.Context, orgID snowflake.ID) (*domain.OrgBilling, error) {
	if err := s.requireOrg(ctx, orgID); err != nil {
		return nil, err
	}
	out := &domain.OrgBilling{}

	sub, err := s.repo.ActiveSubscription(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		out.Subscription = sub
		if out.Plan, err = s.repo.GetPlan(ctx, sub.PlanID); err != nil {
			return nil, err
		}
	}

	invoices, err := s.repo.ListInvoices(ctx, domain.InvoiceFilter{OrgID: &orgID})
	if err != nil {
		return nil, err
	}
	if invoices == nil {
		invoices = []domain.Invoice{}
	}
	out.Invoices = invoices
	return out, nil
}

func (s *Service) RenderInvoicePDF(ctx context.Context, id snowflake.ID) (*domain.Document, error) {
	invoice, err := s.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	org, err := s.orgSvc.Get(ctx, invoice.OrgID)
	if err != nil {
		return nil, err
	}

	data := invoiceData(invoice, org.Name)
	var body []byte
	if invoice.Status == domain.InvoicePaid && invoice.PaidAt != nil {
		body, err = s.pdf.GenerateReceipt(ctx, pdf.ReceiptData{InvoiceData: data, DatePaid: formatDate(invoice.PaidAt)})
	} else {
		body, err = s.pdf.GenerateInvoice(ctx, data)
	}
	if err != nil {
		return nil, err
	}
	return &domain.Document{FileName: invoice.InvoiceNumber + ".pdf", Body: body}, nil
}

func invoiceData(invoice *domain.Invoice, orgName string) pdf.InvoiceData {
	data := pdf.InvoiceData{
		IssuerName:    "Switchboard",
		InvoiceNumber: invoice.InvoiceNumber,
		Status:        strings.ToUpper(invoice.Status),
		IssueDate:     formatDate(invoice.IssuedAt),
		DueDate:       formatDate(invoice.DueAt),
		BillToName:    orgName,
		Subtotal:      domain.FormatCents(invoice.SubtotalCents, invoice.Currency),
		Total:         domain.FormatCents(invoice.TotalCents, invoice.Currency),
		AmountDue:     domain.FormatCents(invoice.TotalCents, invoice.Currency),
	}
	if invoice.PeriodStart != nil || invoice.PeriodEnd != nil {
		data.ServicePeriod = formatDate(invoice.PeriodStart) + " - " + formatDate(invoice.PeriodEnd)
	}
	if invoice.Status == domain.InvoicePaid || invoice.Status == domain.InvoiceVoid {
		data.AmountDue = domain.FormatCents(0, invoice.Currency)
	}
	for _, item := range invoice.Items {
		data.Items = append(data.Items, pdf.InvoiceItem{
			Description: item.Description,
			Qty:         item.Quantity,
			UnitPrice:   domain.FormatCents(item.UnitPriceCents, invoice.Currency),
			Amount:      domain.FormatCents(item.AmountCents, invoice.Currency),
		})
	}
	return data
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}

func (s *Service) requireOrg(ctx context.Context, orgID snowflake.ID) error {
	if orgID == 0 {
		return domain.ErrInvalidOrganization
	}
	if _, err := s.orgSvc.Get(ctx, orgID); err != nil {
		if errors.Is(err, orgdomain.ErrNotFound) {
			return domain.ErrInvalidOrganization
		}
		return err
	}
	return nil
}

func (s *Service) audit(ctx context.Context, orgID *snowflake.ID, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.Record(ctx, auditdomain.Entry{
		OrgID:      orgID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   metadata,
	}); err != nil {
		s.log.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

