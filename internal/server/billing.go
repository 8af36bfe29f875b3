package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/smallbiznis/switchboard/internal/billing/domain"
	"github.com/smallbiznis/switchboard/pkg/db/pagination"
)

type createSubscriptionRequest struct {
	OrgID     string     `json:"org_id"`
	PlanID    string     `json:"plan_id"`
	StartedAt *time.Time `json:"started_at"`
}

type createInvoiceRequest struct {
	OrgID       string                           `json:"org_id"`
	Currency    string                           `json:"currency"`
	PeriodStart *time.Time                       `json:"period_start"`
	PeriodEnd   *time.Time                       `json:"period_end"`
	DueAt       *time.Time                       `json:"due_at"`
	Items       []billingdomain.InvoiceItemInput `json:"items"`
}

type invoiceStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) ListPlans(c *gin.Context) {
	activeOnly, err := parseOptionalBool(c.Query("active"))
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "active must be a boolean"))
		return
	}

	plans, err := s.billingSvc.ListPlans(c.Request.Context(), activeOnly != nil && *activeOnly)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": nonNil(plans)})
}

func (s *Server) CreatePlan(c *gin.Context) {
	var req billingdomain.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	plan, err := s.billingSvc.CreatePlan(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"plan": plan})
}

func (s *Server) UpdatePlan(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req billingdomain.UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	plan, err := s.billingSvc.UpdatePlan(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

func (s *Server) ListSubscriptions(c *gin.Context) {
	orgID, err := queryOrgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	subs, err := s.billingSvc.ListSubscriptions(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": nonNil(subs)})
}

func (s *Server) CreateSubscription(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	orgID, err := parseOptionalSnowflakeID(req.OrgID)
	if err != nil || orgID == nil {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "org_id is required"))
		return
	}
	planID, err := parseOptionalSnowflakeID(req.PlanID)
	if err != nil || planID == nil {
		AbortWithError(c, newValidationError("plan_id", "invalid_plan_id", "plan_id is required"))
		return
	}

	sub, err := s.billingSvc.CreateSubscription(c.Request.Context(), billingdomain.CreateSubscriptionRequest{
		OrgID:     *orgID,
		PlanID:    *planID,
		StartedAt: req.StartedAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"subscription": sub})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	sub, err := s.billingSvc.CancelSubscription(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}

func (s *Server) ListInvoices(c *gin.Context) {
	orgID, err := queryOrgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.billingSvc.ListInvoices(c.Request.Context(), billingdomain.ListInvoicesRequest{
		Pagination: pagination.Pagination{
			PageToken: c.Query("page_token"),
			Limit:     queryLimit(c, 50, 200),
		},
		OrgID: orgID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	resp.Invoices = nonNil(resp.Invoices)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	orgID, err := parseOptionalSnowflakeID(req.OrgID)
	if err != nil || orgID == nil {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "org_id is required"))
		return
	}

	invoice, err := s.billingSvc.CreateInvoice(c.Request.Context(), billingdomain.CreateInvoiceRequest{
		OrgID:       *orgID,
		Currency:    req.Currency,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		DueAt:       req.DueAt,
		Items:       req.Items,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invoice": invoice})
}

func (s *Server) GetInvoice(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, err := s.billingSvc.GetInvoice(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": invoice})
}

func (s *Server) SetInvoiceStatus(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req invoiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoice, err := s.billingSvc.SetInvoiceStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": invoice})
}

func (s *Server) RenderInvoicePDF(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.billingSvc.RenderInvoicePDF(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", "inline; filename="+strconv.Quote(doc.FileName))
	c.Data(http.StatusOK, "application/pdf", doc.Body)
}

// GetOrgBilling shows an org its subscription and invoices.
func (s *Server) GetOrgBilling(c *gin.Context) {
	orgID, err := pathID(c, "orgId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	billing, err := s.billingSvc.OrgBilling(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	billing.Invoices = nonNil(billing.Invoices)
	c.JSON(http.StatusOK, billing)
}
