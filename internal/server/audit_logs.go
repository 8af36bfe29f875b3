package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/switchboard/internal/audit/domain"
	"github.com/smallbiznis/switchboard/internal/authorization"
	"github.com/smallbiznis/switchboard/pkg/db/pagination"
)

// ListAuditLogs lists one org's trail, or the whole trail for callers with
// platform visibility.
func (s *Server) ListAuditLogs(c *gin.Context) {
	orgID, err := queryOrgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.authorize(c, orgID, authorization.ObjectAuditLog, authorization.ActionAuditLogView); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListRequest{
		Pagination: pagination.Pagination{
			PageToken: c.Query("page_token"),
			Limit:     queryLimit(c, 50, 200),
		},
		OrgID:  orgID,
		Action: c.Query("action"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	resp.AuditLogs = nonNil(resp.AuditLogs)
	c.JSON(http.StatusOK, resp)
}
