package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// List returns tickets newest first. A nil OrgIDs lists every org.
	List(ctx context.Context, req ListRequest) ([]Ticket, error)
	Create(ctx context.Context, req CreateTicketRequest) (*Thread, error)
	Get(ctx context.Context, id snowflake.ID) (*Ticket, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateTicketRequest) (*Ticket, error)

	ListMessages(ctx context.Context, ticketID snowflake.ID) ([]Message, error)
	AddMessage(ctx context.Context, ticketID, senderID snowflake.ID, text string) (*Message, error)

	CreateNumberRequest(ctx context.Context, req NumberRequest) (*Thread, error)
	ListNumberRequests(ctx context.Context, req ListRequest) ([]Ticket, error)
}

type ListRequest struct {
	OrgIDs []snowflake.ID
	OrgID  *snowflake.ID
	Limit  int
}

// CreateTicketRequest opens a ticket for one of the creator's orgs. Without
// OrgID the creator must belong to exactly one org.
type CreateTicketRequest struct {
	CreatorID snowflake.ID
	OrgID     *snowflake.ID
	Subject   string
	Message   string
	Priority  string
}

type UpdateTicketRequest struct {
	Status   *string
	Priority *string
}

type NumberRequest struct {
	CreatorID       snowflake.ID
	OrgID           *snowflake.ID
	AreaCode        string
	RequestedNumber string
	Label           string
	Reason          string
}

var (
	ErrInvalidSubject  = errors.New("invalid_subject")
	ErrInvalidMessage  = errors.New("invalid_message")
	ErrInvalidPriority = errors.New("invalid_priority")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrInvalidReason   = errors.New("invalid_reason")
	ErrInvalidUser     = errors.New("invalid_user")
	ErrOrgRequired     = errors.New("org_id_required")
	ErrNoMembership    = errors.New("no_org_membership")
	ErrNotMember       = errors.New("not_org_member")
	ErrNotFound        = errors.New("ticket_not_found")
)
