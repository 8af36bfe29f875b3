package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/switchboard/internal/support/domain"
	"go.uber.org/zap"
)

// escalate mails the org's escalation address. Delivery failures are logged
// and never fail ticket creation.
func (s *Service) escalate(ctx context.Context, thread *domain.Thread) {
	if s.mailer == nil {
		return
	}
	ticket := thread.Ticket
	org, err := s.orgSvc.Get(ctx, ticket.OrgID)
	if err != nil {
		s.log.Warn("escalation skipped; org lookup failed", zap.String("ticket_id", ticket.ID.String()), zap.Error(err))
		return
	}
	if org.EscalationEmail == nil || strings.TrimSpace(*org.EscalationEmail) == "" {
		return
	}

	to := []string{strings.TrimSpace(*org.EscalationEmail)}
	err = s.mailer.SendTemplate(ctx, to, "ticket_escalation", map[string]any{
		"subject":        fmt.Sprintf("[%s] %s", strings.ToUpper(ticket.Priority), ticket.Subject),
		"priority":       ticket.Priority,
		"org_name":       org.Name,
		"ticket_subject": ticket.Subject,
		"ticket_id":      ticket.ID.String(),
		"opened_by":      ticket.CreatedBy.String(),
		"message":        thread.Message.Message,
	})
	if err != nil {
		s.log.Warn("failed to send escalation email",
			zap.String("ticket_id", ticket.ID.String()),
			zap.String("org_id", ticket.OrgID.String()),
			zap.Error(err),
		)
		return
	}
	s.log.Info("ticket escalated", zap.String("ticket_id", ticket.ID.String()), zap.String("priority", ticket.Priority))
}
