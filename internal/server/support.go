package server

import (
	"errors"
	"net/http"
	"slices"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/switchboard/internal/authorization"
	supportdomain "github.com/smallbiznis/switchboard/internal/support/domain"
)

type createTicketRequest struct {
	Subject  string `json:"subject"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
	OrgID    string `json:"org_id"`
}

type updateTicketRequest struct {
	Status   *string `json:"status"`
	Priority *string `json:"priority"`
}

type addMessageRequest struct {
	Message string `json:"message"`
}

type numberRequestBody struct {
	OrgID           string `json:"org_id"`
	AreaCode        string `json:"area_code"`
	RequestedNumber string `json:"requested_number"`
	Label           string `json:"label"`
	Reason          string `json:"reason"`
}

// ListSupportTickets lists tickets of the caller's orgs. Platform admins see
// every org and may filter by org_id.
func (s *Server) ListSupportTickets(c *gin.Context) {
	orgID, err := queryOrgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	visible, err := s.visibleOrgs(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	tickets, err := s.supportSvc.List(c.Request.Context(), supportdomain.ListRequest{
		OrgIDs: visible,
		OrgID:  orgID,
		Limit:  queryLimit(c, 50, 200),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tickets": nonNil(tickets)})
}

func (s *Server) ListAllSupportTickets(c *gin.Context) {
	orgID, err := queryOrgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	tickets, err := s.supportSvc.List(c.Request.Context(), supportdomain.ListRequest{
		OrgID: orgID,
		Limit: queryLimit(c, 100, 500),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tickets": nonNil(tickets)})
}

func (s *Server) CreateSupportTicket(c *gin.Context) {
	actor, err := userActor(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	orgID, err := parseOptionalSnowflakeID(req.OrgID)
	if err != nil {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "org_id must be a valid id"))
		return
	}

	thread, err := s.supportSvc.Create(c.Request.Context(), supportdomain.CreateTicketRequest{
		CreatorID: actor.UserID,
		OrgID:     orgID,
		Subject:   req.Subject,
		Message:   req.Message,
		Priority:  req.Priority,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, thread)
}

func (s *Server) GetSupportTicket(c *gin.Context) {
	ticket, ok := s.loadTicket(c, authorization.ActionSupportTicketView)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

func (s *Server) UpdateSupportTicket(c *gin.Context) {
	ticket, ok := s.loadTicket(c, authorization.ActionSupportTicketUpdate)
	if !ok {
		return
	}

	var req updateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	updated, err := s.supportSvc.Update(c.Request.Context(), ticket.ID, supportdomain.UpdateTicketRequest{
		Status:   req.Status,
		Priority: req.Priority,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ticket": updated})
}

func (s *Server) ListSupportTicketMessages(c *gin.Context) {
	ticket, ok := s.loadTicket(c, authorization.ActionSupportTicketView)
	if !ok {
		return
	}

	messages, err := s.supportSvc.ListMessages(c.Request.Context(), ticket.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": nonNil(messages)})
}

func (s *Server) AddSupportTicketMessage(c *gin.Context) {
	actor, err := userActor(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	ticket, ok := s.loadTicket(c, authorization.ActionSupportTicketCreate)
	if !ok {
		return
	}

	var req addMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	message, err := s.supportSvc.AddMessage(c.Request.Context(), ticket.ID, actor.UserID, req.Message)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}

func (s *Server) CreateNumberRequest(c *gin.Context) {
	actor, err := userActor(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req numberRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	orgID, err := parseOptionalSnowflakeID(req.OrgID)
	if err != nil {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "org_id must be a valid id"))
		return
	}

	thread, err := s.supportSvc.CreateNumberRequest(c.Request.Context(), supportdomain.NumberRequest{
		CreatorID:       actor.UserID,
		OrgID:           orgID,
		AreaCode:        req.AreaCode,
		RequestedNumber: req.RequestedNumber,
		Label:           req.Label,
		Reason:          req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, thread)
}

func (s *Server) ListNumberRequests(c *gin.Context) {
	orgID, err := queryOrgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	visible, err := s.visibleOrgs(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	tickets, err := s.supportSvc.ListNumberRequests(c.Request.Context(), supportdomain.ListRequest{
		OrgIDs: visible,
		OrgID:  orgID,
		Limit:  queryLimit(c, 50, 200),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": nonNil(tickets)})
}

// loadTicket fetches the ticket named by :id and checks action against its org.
func (s *Server) loadTicket(c *gin.Context, action string) (*supportdomain.Ticket, bool) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}

	ticket, err := s.supportSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	orgID := ticket.OrgID
	if err := s.authorize(c, &orgID, authorization.ObjectSupportTicket, action); err != nil {
		if errors.Is(err, authorization.ErrForbidden) {
			err = s.hideForeignTicket(c, orgID, err)
		}
		AbortWithError(c, err)
		return nil, false
	}
	return ticket, true
}

// hideForeignTicket turns a denial into not found when the ticket belongs to
// an org the caller cannot see at all.
func (s *Server) hideForeignTicket(c *gin.Context, orgID snowflake.ID, denied error) error {
	visible, err := s.visibleOrgs(c)
	if err != nil {
		return err
	}
	if visible != nil && !slices.Contains(visible, orgID) {
		return supportdomain.ErrNotFound
	}
	return denied
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
