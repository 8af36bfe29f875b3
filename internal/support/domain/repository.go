package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type ListFilter struct {
	// OrgIDs restricts the result when Scoped is set.
	OrgIDs        []snowflake.ID
	Scoped        bool
	SubjectPrefix string
	Limit         int
}

type Repository interface {
	CreateThread(ctx context.Context, ticket *Ticket, message *Message) error
	GetTicket(ctx context.Context, id snowflake.ID) (*Ticket, error)
	ListTickets(ctx context.Context, filter ListFilter) ([]Ticket, error)
	UpdateTicket(ctx context.Context, ticket *Ticket) error
	AppendMessage(ctx context.Context, message *Message) error
	ListMessages(ctx context.Context, ticketID snowflake.ID) ([]Message, error)
}
