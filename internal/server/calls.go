package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/switchboard/internal/authorization"
	calldomain "github.com/smallbiznis/switchboard/internal/call/domain"
)

func (s *Server) ListRecentCalls(c *gin.Context) {
	orgID, err := s.callScope(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.callSvc.Recent(c.Request.Context(), orgID, queryLimit(c, 20, 100))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": nonNil(items)})
}

func (s *Server) GetQueueSummary(c *gin.Context) {
	orgID, err := s.callScope(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	queues, err := s.callSvc.QueueSummary(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queues": nonNil(queues)})
}

func (s *Server) GetCallSeries(c *gin.Context) {
	orgID, err := s.callScope(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rng := strings.ToLower(strings.TrimSpace(c.DefaultQuery("range", calldomain.RangeDay)))
	points, err := s.callSvc.Series(c.Request.Context(), orgID, rng)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": nonNil(points)})
}

// GetCallStats narrows to the org's assigned numbers unless the caller
// administers the org.
func (s *Server) GetCallStats(c *gin.Context) {
	orgID, err := s.callScope(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if orgID == nil {
		AbortWithError(c, newValidationError("org_id", "missing_org_id", "org_id is required"))
		return
	}
	assigned, err := s.assignedOnly(c, *orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.callSvc.CallStats(c.Request.Context(), calldomain.CallStatsRequest{
		OrgID:               *orgID,
		StartDate:           c.Query("start_date"),
		EndDate:             c.Query("end_date"),
		AssignedNumbersOnly: assigned,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	resp.Calls = nonNil(resp.Calls)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetClientMetrics(c *gin.Context) {
	orgID, err := s.callScope(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	metrics, err := s.callSvc.ClientMetrics(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// callScope resolves the org a call query runs against and checks call.view
// on it. Without org_id a single-org caller gets their org and everyone else
// needs platform visibility. A nil result means every org.
func (s *Server) callScope(c *gin.Context) (*snowflake.ID, error) {
	return s.orgScope(c, authorization.ObjectCall, authorization.ActionCallView)
}

func (s *Server) orgScope(c *gin.Context, object, action string) (*snowflake.ID, error) {
	orgID, err := queryOrgID(c)
	if err != nil {
		return nil, err
	}
	if orgID == nil {
		visible, err := s.visibleOrgs(c)
		if err != nil {
			return nil, err
		}
		if len(visible) == 1 {
			orgID = &visible[0]
		}
	}
	if err := s.authorize(c, orgID, object, action); err != nil {
		return nil, err
	}
	return orgID, nil
}
