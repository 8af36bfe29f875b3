package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/support/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) CreateThread(ctx context.Context, ticket *domain.Ticket, message *domain.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ticket).Error; err != nil {
			return err
		}
		return tx.Create(message).Error
	})
}

func (r *repository) GetTicket(ctx context.Context, id snowflake.ID) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ticket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *repository) ListTickets(ctx context.Context, filter domain.ListFilter) ([]domain.Ticket, error) {
	if filter.Scoped && len(filter.OrgIDs) == 0 {
		return []domain.Ticket{}, nil
	}

	q := r.db.WithContext(ctx).Model(&domain.Ticket{})
	if filter.Scoped {
		q = q.Where("org_id IN ?", filter.OrgIDs)
	}
	if filter.SubjectPrefix != "" {
		q = q.Where("subject LIKE ?", filter.SubjectPrefix+"%")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var tickets []domain.Ticket
	if err := q.Order("created_at DESC").Order("id DESC").Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *repository) UpdateTicket(ctx context.Context, ticket *domain.Ticket) error {
	return r.db.WithContext(ctx).Model(&domain.Ticket{}).
		Where("id = ?", ticket.ID).
		Updates(map[string]any{
			"status":     ticket.Status,
			"priority":   ticket.Priority,
			"updated_at": ticket.UpdatedAt,
		}).Error
}

func (r *repository) AppendMessage(ctx context.Context, message *domain.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Ticket{}).
			Where("id = ?", message.TicketID).
			Update("updated_at", message.CreatedAt).Error
	})
}

func (r *repository) ListMessages(ctx context.Context, ticketID snowflake.ID) ([]domain.Message, error) {
	var messages []domain.Message
	err := r.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
