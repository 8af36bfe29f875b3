package server

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/switchboard/internal/authorization"
	"github.com/smallbiznis/switchboard/internal/mightycall"
	obslogger "github.com/smallbiznis/switchboard/internal/observability/logger"
	"github.com/smallbiznis/switchboard/internal/reconcile"
	reconciledomain "github.com/smallbiznis/switchboard/internal/reconcile/domain"
	"go.uber.org/zap"
)

const platformRateKey = "platform"

type syncRequest struct {
	OrgID     string `json:"orgId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type testConnectionRequest struct {
	OrgID string `json:"orgId"`
}

func (s *Server) TriggerSync(c *gin.Context) {
	resource, err := reconcile.ParseResource(c.Param("resource"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.triggerSync(c, resource)
}

// TriggerCallsSync is the admin alias of the calls sync.
func (s *Server) TriggerCallsSync(c *gin.Context) {
	s.triggerSync(c, reconcile.ResourceCalls)
}

func (s *Server) triggerSync(c *gin.Context, resource reconcile.Resource) {
	var req syncRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	orgID, err := parseOptionalSnowflakeID(req.OrgID)
	if err != nil {
		AbortWithError(c, newValidationError("orgId", "invalid_org_id", "orgId must be a valid id"))
		return
	}
	if resource.OrgScoped() && orgID == nil {
		AbortWithError(c, newValidationError("orgId", "missing_org_id", "orgId is required"))
		return
	}

	if err := s.authorize(c, orgID, authorization.ObjectSync, authorization.ActionSyncTrigger); err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.allowSyncTrigger(c, orgID, resource); err != nil {
		AbortWithError(c, err)
		return
	}

	rng, err := reconcile.ResolveRange(req.StartDate, req.EndDate, s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.syncEngine.Sync(c.Request.Context(), resource, orgID, rng)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, orgID, "sync.trigger", "sync", string(resource), map[string]any{
		"records_processed": result.Records,
		"start_date":        rng.From.Format("2006-01-02"),
		"end_date":          rng.To.Format("2006-01-02"),
	})
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

// allowSyncTrigger applies the per-org token bucket to manual triggers.
func (s *Server) allowSyncTrigger(c *gin.Context, orgID *snowflake.ID, resource reconcile.Resource) error {
	ctx := c.Request.Context()
	key := platformRateKey
	if orgID != nil {
		key = orgID.String()
	}
	endpoint := "sync." + string(resource)

	res, err := s.syncLimiter.Allow(ctx, key, string(resource))
	if err != nil {
		// An unreachable Redis must not block syncs.
		obslogger.WithContext(ctx, s.log).Warn("sync rate limiter unavailable", zap.Error(err))
		return nil
	}
	if !res.Allowed {
		s.obsMetrics.RecordRateLimitDenied(ctx, key, endpoint, "bucket_exhausted")
		if res.RetryAfter > 0 {
			c.Header("Retry-After", retryAfterSeconds(res.RetryAfter))
		}
		return ErrRateLimited
	}
	s.obsMetrics.RecordRateLimitAllowed(ctx, key, endpoint)
	return nil
}

// SyncMightyCallCatalog refreshes the global phone number and extension catalogs.
func (s *Server) SyncMightyCallCatalog(c *gin.Context) {
	if err := s.allowSyncTrigger(c, nil, reconcile.ResourcePhoneNumbers); err != nil {
		AbortWithError(c, err)
		return
	}
	ctx := c.Request.Context()

	phones, err := s.syncEngine.SyncPhoneNumbers(ctx, nil)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	exts, err := s.syncEngine.SyncExtensions(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, nil, "sync.trigger", "sync", "catalog", map[string]any{
		"phones":     phones.Records,
		"extensions": exts.Records,
	})
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"phones":     phones.Records,
		"extensions": exts.Records,
	})
}

func (s *Server) ListSyncJobs(c *gin.Context) {
	orgID, err := queryOrgID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.authorize(c, orgID, authorization.ObjectSync, authorization.ActionSyncView); err != nil {
		AbortWithError(c, err)
		return
	}

	jobs, err := s.syncEngine.ListJobs(c.Request.Context(), reconcile.JobFilter{
		OrgID: orgID,
		Limit: queryLimit(c, 50, 200),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if jobs == nil {
		jobs = []reconciledomain.SyncJob{}
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) TestMightyCallConnection(c *gin.Context) {
	var req testConnectionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	orgID, err := parseOptionalSnowflakeID(req.OrgID)
	if err != nil {
		AbortWithError(c, newValidationError("orgId", "invalid_org_id", "orgId must be a valid id"))
		return
	}
	if err := s.authorize(c, orgID, authorization.ObjectIntegration, authorization.ActionIntegrationView); err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.syncEngine.TestConnection(c.Request.Context(), orgID)
	if err != nil {
		if mightycall.IsUpstream(err) {
			c.JSON(http.StatusOK, gin.H{"success": false, "error": "upstream_fetch_failed"})
			return
		}
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) ListExtensions(c *gin.Context) {
	exts, err := s.callSvc.ListExtensions(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"extensions": nonNil(exts)})
}

// ListCallHistory reads synced calls. It never calls the provider.
func (s *Server) ListCallHistory(c *gin.Context) {
	orgID, err := s.callScope(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	calls, err := s.callSvc.Recent(c.Request.Context(), orgID, queryLimit(c, 50, 100))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": nonNil(calls)})
}

func retryAfterSeconds(d time.Duration) string {
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}
