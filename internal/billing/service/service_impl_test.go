package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/billing/domain"
	"github.com/smallbiznis/switchboard/internal/billing/repository"
	"github.com/smallbiznis/switchboard/internal/clock"
	orgdomain "github.com/smallbiznis/switchboard/internal/organization/domain"
	orgrepository "github.com/smallbiznis/switchboard/internal/organization/repository"
	orgservice "github.com/smallbiznis/switchboard/internal/organization/service"
	"github.com/smallbiznis/switchboard/internal/providers/pdf"
	"github.com/smallbiznis/switchboard/pkg/db"
	"github.com/smallbiznis/switchboard/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePDF struct {
	invoices []pdf.InvoiceData
	receipts []pdf.ReceiptData
}

func (f *fakePDF) GenerateInvoice(ctx context.Context, data pdf.InvoiceData) ([]byte, error) {
	f.invoices = append(f.invoices, data)
	return []byte("%PDF-invoice"), nil
}

func (f *fakePDF) GenerateReceipt(ctx context.Context, data pdf.ReceiptData) ([]byte, error) {
	f.receipts = append(f.receipts, data)
	return []byte("%PDF-receipt"), nil
}

type fixture struct {
	svc   domain.Service
	orgID snowflake.ID
	pdf   *fakePDF
	clock *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&orgdomain.Organization{},
		&orgdomain.OrgSettings{},
		&orgdomain.Member{},
		&domain.Plan{},
		&domain.Subscription{},
		&domain.Invoice{},
		&domain.InvoiceItem{},
	))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	orgs := orgservice.NewService(orgservice.Params{
		DB: conn, Log: log, Repo: orgrepository.NewRepository(conn), GenID: node, Clock: fake,
	})
	org, err := orgs.Create(context.Background(), 1, orgdomain.CreateOrganizationRequest{Name: "Acme"})
	require.NoError(t, err)

	renderer := &fakePDF{}
	return &fixture{
		svc: New(Params{
			Log:    log,
			Repo:   repository.NewRepository(conn),
			OrgSvc: orgs,
			PDF:    renderer,
			GenID:  node,
			Clock:  fake,
		}),
		orgID: org.ID,
		pdf:   renderer,
		clock: fake,
	}
}

func (f *fixture) plan(t *testing.T, interval string) *domain.Plan {
	t.Helper()
	plan, err := f.svc.CreatePlan(context.Background(), domain.CreatePlanRequest{
		Name:            "Pro",
		PriceCents:      4900,
		BillingInterval: interval,
		IncludedMinutes: 1000,
		IncludedNumbers: 3,
	})
	require.NoError(t, err)
	return plan
}

func TestPlans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	plan := f.plan(t, "")
	assert.Equal(t, domain.IntervalMonthly, plan.BillingInterval)
	assert.Equal(t, "USD", plan.Currency)
	assert.True(t, plan.IsActive)

	_, err := f.svc.CreatePlan(ctx, domain.CreatePlanRequest{Name: "", PriceCents: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
	_, err = f.svc.CreatePlan(ctx, domain.CreatePlanRequest{Name: "x", PriceCents: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
	_, err = f.svc.CreatePlan(ctx, domain.CreatePlanRequest{Name: "x", BillingInterval: "weekly"})
	assert.ErrorIs(t, err, domain.ErrInvalidInterval)

	inactive := false
	updated, err := f.svc.UpdatePlan(ctx, plan.ID, domain.UpdatePlanRequest{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	active, err := f.svc.ListPlans(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := f.svc.ListPlans(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = f.svc.UpdatePlan(ctx, 999, domain.UpdatePlanRequest{})
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)
}

func TestSubscriptionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.plan(t, domain.IntervalMonthly)

	sub, err := f.svc.CreateSubscription(ctx, domain.CreateSubscriptionRequest{OrgID: f.orgID, PlanID: plan.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionActive, sub.Status)
	assert.Equal(t, time.Date(2025, 2, 28, 12, 0, 0, 0, time.UTC), sub.NextBillingDate, "jan 31 clamps to feb 28")

	_, err = f.svc.CreateSubscription(ctx, domain.CreateSubscriptionRequest{OrgID: f.orgID, PlanID: plan.ID})
	assert.ErrorIs(t, err, domain.ErrSubscriptionExists)

	cancelled, err := f.svc.CancelSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	_, err = f.svc.CancelSubscription(ctx, sub.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)

	start := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	yearly := f.plan(t, domain.IntervalYearly)
	renewed, err := f.svc.CreateSubscription(ctx, domain.CreateSubscriptionRequest{OrgID: f.orgID, PlanID: yearly.ID, StartedAt: &start})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), renewed.NextBillingDate)

	subs, err := f.svc.ListSubscriptions(ctx, &f.orgID)
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	_, err = f.svc.CreateSubscription(ctx, domain.CreateSubscriptionRequest{OrgID: 12345, PlanID: plan.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestInvoiceNumberingAndStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		OrgID: f.orgID,
		Items: []domain.InvoiceItemInput{
			{Description: "Pro plan", UnitPriceCents: 4900},
			{Description: "Extra numbers", Quantity: 3, UnitPriceCents: 200},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-202501-0001", first.InvoiceNumber)
	assert.Equal(t, domain.InvoiceDraft, first.Status)
	assert.Equal(t, int64(5500), first.SubtotalCents)
	assert.Equal(t, int64(5500), first.TotalCents)

	second, err := f.svc.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		OrgID: f.orgID,
		Items: []domain.InvoiceItemInput{{Description: "Usage", UnitPriceCents: 100}},
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-202501-0002", second.InvoiceNumber)

	f.clock.Advance(48 * time.Hour)
	third, err := f.svc.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		OrgID: f.orgID,
		Items: []domain.InvoiceItemInput{{Description: "Usage", UnitPriceCents: 100}},
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-202502-0001", third.InvoiceNumber)

	got, err := f.svc.GetInvoice(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)

	_, err = f.svc.SetInvoiceStatus(ctx, first.ID, domain.InvoicePaid)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	issued, err := f.svc.SetInvoiceStatus(ctx, first.ID, "issued")
	require.NoError(t, err)
	require.NotNil(t, issued.IssuedAt)
	require.NotNil(t, issued.DueAt)
	assert.Equal(t, issued.IssuedAt.Add(30*24*time.Hour), *issued.DueAt)

	paid, err := f.svc.SetInvoiceStatus(ctx, first.ID, "paid")
	require.NoError(t, err)
	require.NotNil(t, paid.PaidAt)

	_, err = f.svc.SetInvoiceStatus(ctx, first.ID, "refunded")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.CreateInvoice(ctx, domain.CreateInvoiceRequest{OrgID: f.orgID})
	assert.ErrorIs(t, err, domain.ErrInvalidItems)
}

func TestListInvoicesPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for range 3 {
		_, err := f.svc.CreateInvoice(ctx, domain.CreateInvoiceRequest{
			OrgID: f.orgID,
			Items: []domain.InvoiceItemInput{{Description: "Usage", UnitPriceCents: 100}},
		})
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	page, err := f.svc.ListInvoices(ctx, domain.ListInvoicesRequest{OrgID: &f.orgID, Pagination: pageReq(2, "")})
	require.NoError(t, err)
	require.Len(t, page.Invoices, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "INV-202501-0003", page.Invoices[0].InvoiceNumber)

	next, err := f.svc.ListInvoices(ctx, domain.ListInvoicesRequest{OrgID: &f.orgID, Pagination: pageReq(2, page.NextPageToken)})
	require.NoError(t, err)
	require.Len(t, next.Invoices, 1)
	assert.False(t, next.HasMore)
	assert.Equal(t, "INV-202501-0001", next.Invoices[0].InvoiceNumber)

	_, err = f.svc.ListInvoices(ctx, domain.ListInvoicesRequest{Pagination: pageReq(2, "garbage")})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

func TestOrgBillingAndPDF(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	overview, err := f.svc.OrgBilling(ctx, f.orgID)
	require.NoError(t, err)
	assert.Nil(t, overview.Subscription)
	assert.NotNil(t, overview.Invoices)

	plan := f.plan(t, domain.IntervalMonthly)
	_, err = f.svc.CreateSubscription(ctx, domain.CreateSubscriptionRequest{OrgID: f.orgID, PlanID: plan.ID})
	require.NoError(t, err)
	invoice, err := f.svc.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		OrgID: f.orgID,
		Items: []domain.InvoiceItemInput{{Description: "Pro plan", UnitPriceCents: 4900}},
	})
	require.NoError(t, err)

	overview, err = f.svc.OrgBilling(ctx, f.orgID)
	require.NoError(t, err)
	require.NotNil(t, overview.Plan)
	assert.Equal(t, plan.ID, overview.Plan.ID)
	assert.Len(t, overview.Invoices, 1)

	doc, err := f.svc.RenderInvoicePDF(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-202501-0001.pdf", doc.FileName)
	require.Len(t, f.pdf.invoices, 1)
	assert.Equal(t, "Acme", f.pdf.invoices[0].BillToName)
	assert.Equal(t, "USD 49.00", f.pdf.invoices[0].Total)

	_, err = f.svc.SetInvoiceStatus(ctx, invoice.ID, domain.InvoiceIssued)
	require.NoError(t, err)
	_, err = f.svc.SetInvoiceStatus(ctx, invoice.ID, domain.InvoicePaid)
	require.NoError(t, err)

	_, err = f.svc.RenderInvoicePDF(ctx, invoice.ID)
	require.NoError(t, err)
	require.Len(t, f.pdf.receipts, 1)
	assert.Equal(t, "USD 0.00", f.pdf.receipts[0].AmountDue)
	assert.Equal(t, "2025-01-31", f.pdf.receipts[0].DatePaid)
}

func pageReq(limit int, token string) pagination.Pagination {
	return pagination.Pagination{Limit: limit, PageToken: token}
}
