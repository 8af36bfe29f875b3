package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/switchboard/internal/authorization"
	calldomain "github.com/smallbiznis/switchboard/internal/call/domain"
)

// SeedCall inserts a synthetic call. The route only exists outside production.
func (s *Server) SeedCall(c *gin.Context) {
	var req calldomain.SeedCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.OrgID == 0 {
		AbortWithError(c, newValidationError("org_id", "missing_org_id", "org_id is required"))
		return
	}
	if err := s.authorize(c, &req.OrgID, authorization.ObjectDev, authorization.ActionDevSeed); err != nil {
		AbortWithError(c, err)
		return
	}

	call, err := s.callSvc.SeedCall(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"call": call})
}
