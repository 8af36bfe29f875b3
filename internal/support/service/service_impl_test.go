package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/clock"
	orgdomain "github.com/smallbiznis/switchboard/internal/organization/domain"
	orgrepository "github.com/smallbiznis/switchboard/internal/organization/repository"
	orgservice "github.com/smallbiznis/switchboard/internal/organization/service"
	"github.com/smallbiznis/switchboard/internal/support/domain"
	"github.com/smallbiznis/switchboard/internal/support/repository"
	"github.com/smallbiznis/switchboard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMail struct {
	to       []string
	template string
	data     map[string]any
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return m.err
}

func (m *fakeMailer) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	m.sent = append(m.sent, sentMail{to: to, template: templateName, data: data})
	return m.err
}

type fixture struct {
	svc    domain.Service
	orgs   orgdomain.Service
	mailer *fakeMailer
	clock  *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&orgdomain.Organization{},
		&orgdomain.OrgSettings{},
		&orgdomain.Member{},
		&domain.Ticket{},
		&domain.Message{},
	))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	orgs := orgservice.NewService(orgservice.Params{
		DB: conn, Log: log, Repo: orgrepository.NewRepository(conn), GenID: node, Clock: fake,
	})
	mailer := &fakeMailer{}
	return &fixture{
		svc: New(Params{
			Log:    log,
			Repo:   repository.NewRepository(conn),
			OrgSvc: orgs,
			GenID:  node,
			Clock:  fake,
			Mailer: mailer,
		}),
		orgs:   orgs,
		mailer: mailer,
		clock:  fake,
	}
}

func (f *fixture) org(t *testing.T, creator snowflake.ID, name string) *orgdomain.Organization {
	t.Helper()
	org, err := f.orgs.Create(context.Background(), creator, orgdomain.CreateOrganizationRequest{Name: name})
	require.NoError(t, err)
	return org
}

func ref[T any](v T) *T { return &v }

func TestCreateResolvesSingleMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.org(t, 10, "Acme")

	thread, err := f.svc.Create(ctx, domain.CreateTicketRequest{
		CreatorID: 10,
		Subject:   "Billing question",
		Message:   "Why was I charged twice?",
		Priority:  "high",
	})
	require.NoError(t, err)
	assert.Equal(t, org.ID, thread.Ticket.OrgID)
	assert.Equal(t, domain.StatusOpen, thread.Ticket.Status)
	assert.Equal(t, domain.PriorityHigh, thread.Ticket.Priority)
	assert.Equal(t, thread.Ticket.ID, thread.Message.TicketID)
	assert.Equal(t, "Why was I charged twice?", thread.Message.Message)

	messages, err := f.svc.ListMessages(ctx, thread.Ticket.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, thread.Message.ID, messages[0].ID)
}

func TestCreateDefaultsAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.org(t, 10, "Acme")

	thread, err := f.svc.Create(ctx, domain.CreateTicketRequest{CreatorID: 10, Subject: "Hello", Message: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityNormal, thread.Ticket.Priority)

	_, err = f.svc.Create(ctx, domain.CreateTicketRequest{CreatorID: 10, Subject: " ", Message: "Hi"})
	assert.ErrorIs(t, err, domain.ErrInvalidSubject)
	_, err = f.svc.Create(ctx, domain.CreateTicketRequest{CreatorID: 10, Subject: "x", Message: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)
	_, err = f.svc.Create(ctx, domain.CreateTicketRequest{CreatorID: 10, Subject: "x", Message: "y", Priority: "critical"})
	assert.ErrorIs(t, err, domain.ErrInvalidPriority)
}

func TestCreateOrgResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, domain.CreateTicketRequest{CreatorID: 10, Subject: "s", Message: "m"})
	assert.ErrorIs(t, err, domain.ErrNoMembership)

	first := f.org(t, 10, "First")
	second := f.org(t, 10, "Second")
	other := f.org(t, 99, "Other")

	_, err = f.svc.Create(ctx, domain.CreateTicketRequest{CreatorID: 10, Subject: "s", Message: "m"})
	assert.ErrorIs(t, err, domain.ErrOrgRequired)

	_, err = f.svc.Create(ctx, domain.CreateTicketRequest{CreatorID: 10, OrgID: &other.ID, Subject: "s", Message: "m"})
	assert.ErrorIs(t, err, domain.ErrNotMember)

	thread, err := f.svc.Create(ctx, domain.CreateTicketRequest{CreatorID: 10, OrgID: &second.ID, Subject: "s", Message: "m"})
	require.NoError(t, err)
	assert.Equal(t, second.ID, thread.Ticket.OrgID)
	assert.NotEqual(t, first.ID, thread.Ticket.OrgID)
}

func TestEscalationEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.org(t, 10, "Acme")

	_, err := f.svc.Create(ctx, domain.CreateTicketRequest{CreatorID: 10, Subject: "Down", Message: "m", Priority: "urgent"})
	require.NoError(t, err)
	assert.Empty(t, f.mailer.sent, "no escalation address configured")

	_, err = f.orgs.Update(ctx, org.ID, orgdomain.UpdateOrganizationRequest{EscalationEmail: ref("oncall@acme.test")})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, domain.CreateTicketRequest{CreatorID: 10, Subject: "Minor", Message: "m", Priority: "low"})
	require.NoError(t, err)
	assert.Empty(t, f.mailer.sent)

	_, err = f.svc.Create(ctx, domain.CreateTicketRequest{CreatorID: 10, Subject: "Down", Message: "Nothing rings", Priority: "urgent"})
	require.NoError(t, err)
	require.Len(t, f.mailer.sent, 1)
	mail := f.mailer.sent[0]
	assert.Equal(t, []string{"oncall@acme.test"}, mail.to)
	assert.Equal(t, "ticket_escalation", mail.template)
	assert.Equal(t, "[URGENT] Down", mail.data["subject"])
	assert.Equal(t, "Nothing rings", mail.data["message"])

	f.mailer.err = errors.New("smtp down")
	_, err = f.svc.Create(ctx, domain.CreateTicketRequest{CreatorID: 10, Subject: "Again", Message: "m", Priority: "high"})
	assert.NoError(t, err, "mail failures do not fail ticket creation")
}

func TestListScopesByOrg(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.org(t, 10, "A")
	b := f.org(t, 20, "B")

	_, err := f.svc.Create(ctx, domain.CreateTicketRequest{CreatorID: 10, Subject: "from a", Message: "m"})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.svc.Create(ctx, domain.CreateTicketRequest{CreatorID: 20, Subject: "from b", Message: "m"})
	require.NoError(t, err)

	all, err := f.svc.List(ctx, domain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "from b", all[0].Subject, "newest first")

	onlyA, err := f.svc.List(ctx, domain.ListRequest{OrgIDs: []snowflake.ID{a.ID}})
	require.NoError(t, err)
	require.Len(t, onlyA, 1)
	assert.Equal(t, a.ID, onlyA[0].OrgID)

	none, err := f.svc.List(ctx, domain.ListRequest{OrgIDs: []snowflake.ID{}})
	require.NoError(t, err)
	assert.Empty(t, none)

	outside, err := f.svc.List(ctx, domain.ListRequest{OrgIDs: []snowflake.ID{a.ID}, OrgID: &b.ID})
	require.NoError(t, err)
	assert.Empty(t, outside, "filter outside the visible orgs")

	filtered, err := f.svc.List(ctx, domain.ListRequest{OrgID: &b.ID})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, b.ID, filtered[0].OrgID)
}

func TestUpdateTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.org(t, 10, "Acme")

	thread, err := f.svc.Create(ctx, domain.CreateTicketRequest{CreatorID: 10, Subject: "s", Message: "m"})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	updated, err := f.svc.Update(ctx, thread.Ticket.ID, domain.UpdateTicketRequest{Status: ref("in_progress"), Priority: ref("HIGH")})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, updated.Status)
	assert.Equal(t, domain.PriorityHigh, updated.Priority)

	got, err := f.svc.Get(ctx, thread.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, got.Status)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	_, err = f.svc.Update(ctx, thread.Ticket.ID, domain.UpdateTicketRequest{Status: ref("resolved")})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	_, err = f.svc.Update(ctx, 12345, domain.UpdateTicketRequest{Status: ref("closed")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMessagesAreOrdered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.org(t, 10, "Acme")

	thread, err := f.svc.Create(ctx, domain.CreateTicketRequest{CreatorID: 10, Subject: "s", Message: "first"})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	_, err = f.svc.AddMessage(ctx, thread.Ticket.ID, 77, "second")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.svc.AddMessage(ctx, thread.Ticket.ID, 10, "third")
	require.NoError(t, err)

	messages, err := f.svc.ListMessages(ctx, thread.Ticket.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Message)
	assert.Equal(t, "second", messages[1].Message)
	assert.Equal(t, "third", messages[2].Message)

	_, err = f.svc.AddMessage(ctx, thread.Ticket.ID, 10, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)
	_, err = f.svc.AddMessage(ctx, 999, 10, "hello")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNumberRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.org(t, 10, "Acme")

	_, err := f.svc.CreateNumberRequest(ctx, domain.NumberRequest{CreatorID: 10})
	assert.ErrorIs(t, err, domain.ErrInvalidReason)

	thread, err := f.svc.CreateNumberRequest(ctx, domain.NumberRequest{
		CreatorID:       10,
		AreaCode:        "415",
		RequestedNumber: "+14155550100",
		Label:           "Sales",
		Reason:          "New sales line",
	})
	require.NoError(t, err)
	assert.Equal(t, "Phone number request: Sales", thread.Ticket.Subject)
	assert.Equal(t, domain.PriorityNormal, thread.Ticket.Priority)
	assert.Contains(t, thread.Message.Message, "Reason: New sales line")
	assert.Contains(t, thread.Message.Message, "Area code: 415")
	assert.Contains(t, thread.Message.Message, "Requested number: +14155550100")

	_, err = f.svc.Create(ctx, domain.CreateTicketRequest{CreatorID: 10, Subject: "Unrelated", Message: "m"})
	require.NoError(t, err)

	requests, err := f.svc.ListNumberRequests(ctx, domain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, thread.Ticket.ID, requests[0].ID)
}
