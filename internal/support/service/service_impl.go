package service

import (
	"context"
	"slices"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/switchboard/internal/audit/domain"
	"github.com/smallbiznis/switchboard/internal/clock"
	orgdomain "github.com/smallbiznis/switchboard/internal/organization/domain"
	"github.com/smallbiznis/switchboard/internal/providers/email"
	"github.com/smallbiznis/switchboard/internal/support/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 200
	maxListLimit     = 1000
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Repo     domain.Repository
	OrgSvc   orgdomain.Service
	GenID    *snowflake.Node
	Clock    clock.Clock
	Mailer   email.Provider      `optional:"true"`
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	repo     domain.Repository
	orgSvc   orgdomain.Service
	genID    *snowflake.Node
	clock    clock.Clock
	mailer   email.Provider
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("support.service"),
		repo:     p.Repo,
		orgSvc:   p.OrgSvc,
		genID:    p.GenID,
		clock:    p.Clock,
		mailer:   p.Mailer,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Ticket, error) {
	return s.repo.ListTickets(ctx, listFilter(req, ""))
}

func (s *Service) ListNumberRequests(ctx context.Context, req domain.ListRequest) ([]domain.Ticket, error) {
	return s.repo.ListTickets(ctx, listFilter(req, domain.NumberRequestSubject))
}

func listFilter(req domain.ListRequest, prefix string) domain.ListFilter {
	filter := domain.ListFilter{
		OrgIDs:        req.OrgIDs,
		Scoped:        req.OrgIDs != nil,
		SubjectPrefix: prefix,
		Limit:         req.Limit,
	}
	if req.OrgID != nil {
		if filter.Scoped && !slices.Contains(req.OrgIDs, *req.OrgID) {
			filter.OrgIDs = []snowflake.ID{}
		} else {
			filter.OrgIDs = []snowflake.ID{*req.OrgID}
		}
		filter.Scoped = true
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	filter.Limit = min(filter.Limit, maxListLimit)
	return filter
}

func (s *Service) Create(ctx context.Context, req domain.CreateTicketRequest) (*domain.Thread, error) {
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, domain.ErrInvalidSubject
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, domain.ErrInvalidMessage
	}
	priority := strings.ToLower(strings.TrimSpace(req.Priority))
	if priority == "" {
		priority = domain.PriorityNormal
	}
	if !domain.IsValidPriority(priority) {
		return nil, domain.ErrInvalidPriority
	}

	orgID, err := s.resolveOrg(ctx, req.CreatorID, req.OrgID)
	if err != nil {
		return nil, err
	}

	thread, err := s.open(ctx, orgID, req.CreatorID, subject, text, priority)
	if err != nil {
		return nil, err
	}
	if domain.IsEscalated(priority) {
		s.escalate(ctx, thread)
	}
	return thread, nil
}

func (s *Service) CreateNumberRequest(ctx context.Context, req domain.NumberRequest) (*domain.Thread, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, domain.ErrInvalidReason
	}
	orgID, err := s.resolveOrg(ctx, req.CreatorID, req.OrgID)
	if err != nil {
		return nil, err
	}

	subject := domain.NumberRequestSubject
	if label := strings.TrimSpace(req.Label); label != "" {
		subject += ": " + label
	}
	return s.open(ctx, orgID, req.CreatorID, subject, describeNumberRequest(req, reason), domain.PriorityNormal)
}

func describeNumberRequest(req domain.NumberRequest, reason string) string {
	lines := []string{"Reason: " + reason}
	if v := strings.TrimSpace(req.AreaCode); v != "" {
		lines = append(lines, "Area code: "+v)
	}
	if v := strings.TrimSpace(req.RequestedNumber); v != "" {
		lines = append(lines, "Requested number: "+v)
	}
	if v := strings.TrimSpace(req.Label); v != "" {
		lines = append(lines, "Label: "+v)
	}
	return strings.Join(lines, "\n")
}

func (s *Service) open(ctx context.Context, orgID, creatorID snowflake.ID, subject, text, priority string) (*domain.Thread, error) {
	now := s.clock.Now()
	ticket := &domain.Ticket{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		CreatedBy: creatorID,
		Subject:   subject,
		Priority:  priority,
		Status:    domain.StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	message := &domain.Message{
		ID:           s.genID.Generate(),
		TicketID:     ticket.ID,
		SenderUserID: creatorID,
		Message:      text,
		CreatedAt:    now,
	}
	if err := s.repo.CreateThread(ctx, ticket, message); err != nil {
		return nil, err
	}

	s.audit(ctx, ticket, "support_ticket.create", map[string]any{"priority": priority})
	return &domain.Thread{Ticket: ticket, Message: message}, nil
}

// resolveOrg picks the ticket org from the creator's memberships.
func (s *Service) resolveOrg(ctx context.Context, creatorID snowflake.ID, orgID *snowflake.ID) (snowflake.ID, error) {
	if creatorID == 0 {
		return 0, domain.ErrInvalidUser
	}
	orgs, err := s.orgSvc.ListForUser(ctx, creatorID)
	if err != nil {
		return 0, err
	}

	if orgID != nil && *orgID != 0 {
		for _, org := range orgs {
			if org.ID == *orgID {
				return org.ID, nil
			}
		}
		return 0, domain.ErrNotMember
	}

	switch len(orgs) {
	case 0:
		return 0, domain.ErrNoMembership
	case 1:
		return orgs[0].ID, nil
	default:
		return 0, domain.ErrOrgRequired
	}
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Ticket, error) {
	ticket, err := s.repo.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, domain.ErrNotFound
	}
	return ticket, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateTicketRequest) (*domain.Ticket, error) {
	ticket, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if req.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*req.Status))
		if !domain.IsValidStatus(status) {
			return nil, domain.ErrInvalidStatus
		}
		if status != ticket.Status {
			changes["status"] = status
			ticket.Status = status
		}
	}
	if req.Priority != nil {
		priority := strings.ToLower(strings.TrimSpace(*req.Priority))
		if !domain.IsValidPriority(priority) {
			return nil, domain.ErrInvalidPriority
		}
		if priority != ticket.Priority {
			changes["priority"] = priority
			ticket.Priority = priority
		}
	}
	if len(changes) == 0 {
		return ticket, nil
	}

	ticket.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateTicket(ctx, ticket); err != nil {
		return nil, err
	}
	s.audit(ctx, ticket, "support_ticket.update", changes)
	return ticket, nil
}

func (s *Service) ListMessages(ctx context.Context, ticketID snowflake.ID) ([]domain.Message, error) {
	if _, err := s.Get(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, ticketID)
}

func (s *Service) AddMessage(ctx context.Context, ticketID, senderID snowflake.ID, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrInvalidMessage
	}
	if senderID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if _, err := s.Get(ctx, ticketID); err != nil {
		return nil, err
	}

	message := &domain.Message{
		ID:           s.genID.Generate(),
		TicketID:     ticketID,
		SenderUserID: senderID,
		Message:      text,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.AppendMessage(ctx, message); err != nil {
		return nil, err
	}
	return message, nil
}

func (s *Service) audit(ctx context.Context, ticket *domain.Ticket, action string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	orgID := ticket.OrgID
	if err := s.auditSvc.Record(ctx, auditdomain.Entry{
		OrgID:      &orgID,
		Action:     action,
		TargetType: "support_ticket",
		TargetID:   ticket.ID.String(),
		Metadata:   metadata,
	}); err != nil {
		s.log.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
