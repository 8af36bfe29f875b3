package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusWaiting    = "waiting"
	StatusClosed     = "closed"
)

// NumberRequestSubject prefixes the subject of every phone number request.
const NumberRequestSubject = "Phone number request"

var priorities = map[string]struct{}{
	PriorityLow: {}, PriorityNormal: {}, PriorityHigh: {}, PriorityUrgent: {},
}

var statuses = map[string]struct{}{
	StatusOpen: {}, StatusInProgress: {}, StatusWaiting: {}, StatusClosed: {},
}

func IsValidPriority(p string) bool {
	_, ok := priorities[p]
	return ok
}

func IsValidStatus(s string) bool {
	_, ok := statuses[s]
	return ok
}

// IsEscalated reports whether a ticket of this priority notifies the org's
// escalation address.
func IsEscalated(priority string) bool {
	return priority == PriorityHigh || priority == PriorityUrgent
}

type Ticket struct {
	ID        snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"org_id"`
	CreatedBy snowflake.ID `gorm:"not null" json:"created_by"`
	Subject   string       `gorm:"type:text;not null" json:"subject"`
	Priority  string       `gorm:"type:text;not null;default:'normal'" json:"priority"`
	Status    string       `gorm:"type:text;not null;default:'open'" json:"status"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Ticket) TableName() string { return "support_tickets" }

// Message is append-only.
type Message struct {
	ID           snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	TicketID     snowflake.ID `gorm:"not null;index" json:"ticket_id"`
	SenderUserID snowflake.ID `gorm:"not null" json:"sender_user_id"`
	Message      string       `gorm:"type:text;not null" json:"message"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
}

func (Message) TableName() string { return "support_ticket_messages" }

// Thread is a newly opened ticket with its first message.
type Thread struct {
	Ticket  *Ticket  `json:"ticket"`
	Message *Message `json:"message"`
}
