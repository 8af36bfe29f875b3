package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/switchboard/internal/apikey"
	apikeydomain "github.com/smallbiznis/switchboard/internal/apikey/domain"
	"github.com/smallbiznis/switchboard/internal/audit"
	auditdomain "github.com/smallbiznis/switchboard/internal/audit/domain"
	"github.com/smallbiznis/switchboard/internal/auth"
	authdomain "github.com/smallbiznis/switchboard/internal/auth/domain"
	"github.com/smallbiznis/switchboard/internal/authorization"
	"github.com/smallbiznis/switchboard/internal/billing"
	billingdomain "github.com/smallbiznis/switchboard/internal/billing/domain"
	"github.com/smallbiznis/switchboard/internal/call"
	calldomain "github.com/smallbiznis/switchboard/internal/call/domain"
	"github.com/smallbiznis/switchboard/internal/clock"
	"github.com/smallbiznis/switchboard/internal/config"
	"github.com/smallbiznis/switchboard/internal/integration"
	integrationdomain "github.com/smallbiznis/switchboard/internal/integration/domain"
	"github.com/smallbiznis/switchboard/internal/mightycall"
	"github.com/smallbiznis/switchboard/internal/observability"
	obslogger "github.com/smallbiznis/switchboard/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/switchboard/internal/observability/metrics"
	obstracing "github.com/smallbiznis/switchboard/internal/observability/tracing"
	"github.com/smallbiznis/switchboard/internal/organization"
	orgdomain "github.com/smallbiznis/switchboard/internal/organization/domain"
	"github.com/smallbiznis/switchboard/internal/phonenumber"
	phonenumberdomain "github.com/smallbiznis/switchboard/internal/phonenumber/domain"
	"github.com/smallbiznis/switchboard/internal/providers/email"
	"github.com/smallbiznis/switchboard/internal/providers/pdf"
	"github.com/smallbiznis/switchboard/internal/ratelimit"
	"github.com/smallbiznis/switchboard/internal/reconcile"
	reconciledomain "github.com/smallbiznis/switchboard/internal/reconcile/domain"
	"github.com/smallbiznis/switchboard/internal/recording"
	recordingdomain "github.com/smallbiznis/switchboard/internal/recording/domain"
	"github.com/smallbiznis/switchboard/internal/support"
	supportdomain "github.com/smallbiznis/switchboard/internal/support/domain"
	"github.com/smallbiznis/switchboard/internal/user"
	userdomain "github.com/smallbiznis/switchboard/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	authorization.Module,
	audit.Module,
	auth.Module,
	apikey.Module,
	organization.Module,
	user.Module,
	phonenumber.Module,
	mightycall.Module,
	integration.Module,
	call.Module,
	recording.Module,
	support.Module,
	billing.Module,
	email.Module,
	pdf.Module,
	ratelimit.Module,
	reconcile.Module,
	fx.Provide(registerGin),
	fx.Provide(provideSyncEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

// SyncEngine is the part of the reconciliation engine the handlers drive.
type SyncEngine interface {
	Sync(ctx context.Context, resource reconcile.Resource, orgID *snowflake.ID, rng mightycall.DateRange) (reconcile.Result, error)
	SyncPhoneNumbers(ctx context.Context, orgID *snowflake.ID) (reconcile.Result, error)
	SyncExtensions(ctx context.Context) (reconcile.Result, error)
	TestConnection(ctx context.Context, orgID *snowflake.ID) (reconcile.ConnectionResult, error)
	ListJobs(ctx context.Context, filter reconcile.JobFilter) ([]reconciledomain.SyncJob, error)
}

func provideSyncEngine(e *reconcile.Engine) SyncEngine { return e }

func NewEngine(cfg config.Config, obsCfg observability.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(obslogger.RecoveryMiddleware(log))
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware(cfg.Dev.ExposeError && !cfg.IsProduction()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(cfg, obsCfg, log, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine, shutdowner fx.Shutdowner) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	clock          clock.Clock
	authsvc        authdomain.Service
	authzSvc       authorization.Service
	auditSvc       auditdomain.Service
	apiKeySvc      apikeydomain.Service
	orgSvc         orgdomain.Service
	userSvc        userdomain.Service
	phoneSvc       phonenumberdomain.Service
	callSvc        calldomain.Service
	recordingSvc   recordingdomain.Service
	supportSvc     supportdomain.Service
	billingSvc     billingdomain.Service
	integrationSvc integrationdomain.Service
	syncEngine     SyncEngine
	syncLimiter    *ratelimit.SyncTriggerLimiter
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	Clock          clock.Clock
	Authsvc        authdomain.Service
	AuthzSvc       authorization.Service
	AuditSvc       auditdomain.Service
	APIKeySvc      apikeydomain.Service
	OrgSvc         orgdomain.Service
	UserSvc        userdomain.Service
	PhoneSvc       phonenumberdomain.Service
	CallSvc        calldomain.Service
	RecordingSvc   recordingdomain.Service
	SupportSvc     supportdomain.Service
	BillingSvc     billingdomain.Service
	IntegrationSvc integrationdomain.Service
	SyncEngine     SyncEngine
	SyncLimiter    *ratelimit.SyncTriggerLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics           `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http.server"),
		clock:          p.Clock,
		authsvc:        p.Authsvc,
		authzSvc:       p.AuthzSvc,
		auditSvc:       p.AuditSvc,
		apiKeySvc:      p.APIKeySvc,
		orgSvc:         p.OrgSvc,
		userSvc:        p.UserSvc,
		phoneSvc:       p.PhoneSvc,
		callSvc:        p.CallSvc,
		recordingSvc:   p.RecordingSvc,
		supportSvc:     p.SupportSvc,
		billingSvc:     p.BillingSvc,
		integrationSvc: p.IntegrationSvc,
		syncEngine:     p.SyncEngine,
		syncLimiter:    p.SyncLimiter,
		obsMetrics:     p.ObsMetrics,
	}

	s.registerAuthRoutes()
	s.registerAPIRoutes()
	s.registerAdminRoutes()
	s.registerDevRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	api := s.engine.Group("/api")

	api.POST("/auth/login", s.Login)
	api.POST("/auth/logout", s.AuthRequired(), s.Logout)

	me := api.Group("/user", s.AuthRequired())
	{
		me.GET("/profile", s.GetProfile)
		me.GET("/orgs", s.ListUserOrgs)
	}
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Support --------
	api.GET("/support/tickets", s.ListSupportTickets)
	api.POST("/support/tickets", s.CreateSupportTicket)
	api.GET("/support/tickets/:id", s.GetSupportTicket)
	api.PATCH("/support/tickets/:id", s.UpdateSupportTicket)
	api.GET("/support/tickets/:id/messages", s.ListSupportTicketMessages)
	api.POST("/support/tickets/:id/messages", s.AddSupportTicketMessage)

	api.GET("/number-requests", s.ListNumberRequests)
	api.POST("/number-requests", s.CreateNumberRequest)

	// -------- Org API keys, integrations and billing --------
	api.GET("/orgs/:orgId/api-keys", s.authorizeOrgParam("orgId", authorization.ObjectAPIKey, authorization.ActionAPIKeyView), s.ListOrgAPIKeys)
	api.POST("/orgs/:orgId/api-keys", s.authorizeOrgParam("orgId", authorization.ObjectAPIKey, authorization.ActionAPIKeyManage), s.CreateOrgAPIKey)
	api.DELETE("/orgs/:orgId/api-keys/:keyId", s.authorizeOrgParam("orgId", authorization.ObjectAPIKey, authorization.ActionAPIKeyManage), s.RevokeOrgAPIKey)

	api.GET("/orgs/:orgId/integrations/mightycall", s.authorizeOrgParam("orgId", authorization.ObjectIntegration, authorization.ActionIntegrationView), s.GetMightyCallIntegration)
	api.PUT("/orgs/:orgId/integrations/mightycall", s.authorizeOrgParam("orgId", authorization.ObjectIntegration, authorization.ActionIntegrationManage), s.PutMightyCallIntegration)
	api.DELETE("/orgs/:orgId/integrations/mightycall", s.authorizeOrgParam("orgId", authorization.ObjectIntegration, authorization.ActionIntegrationManage), s.DeleteMightyCallIntegration)

	api.GET("/orgs/:orgId/billing", s.authorizeOrgParam("orgId", authorization.ObjectBilling, authorization.ActionBillingView), s.GetOrgBilling)

	// -------- MightyCall sync --------
	api.POST("/mightycall/sync/:resource", s.TriggerSync)
	api.GET("/mightycall/sync/jobs", s.ListSyncJobs)
	api.POST("/mightycall/test-connection", s.TestMightyCallConnection)

	// -------- Calls --------
	api.GET("/calls/recent", s.ListRecentCalls)
	api.GET("/calls/queue-summary", s.GetQueueSummary)
	api.GET("/calls/series", s.GetCallSeries)
	api.GET("/call-stats", s.GetCallStats)
	api.GET("/client-metrics", s.GetClientMetrics)

	// -------- Recordings --------
	api.GET("/recordings", s.ListRecordings)
	api.GET("/recordings/:id/download", s.DownloadRecording)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin", s.AuthRequired())

	// -------- Organizations --------
	admin.GET("/orgs", s.ListOrganizations)
	admin.POST("/orgs", s.authorizePlatform(authorization.ObjectOrganization, authorization.ActionOrganizationCreate), s.CreateOrganization)
	admin.GET("/orgs/:orgId", s.authorizeOrgParam("orgId", authorization.ObjectOrganization, authorization.ActionOrganizationView), s.GetOrganization)
	admin.PATCH("/orgs/:orgId", s.authorizeOrgParam("orgId", authorization.ObjectOrganization, authorization.ActionOrganizationUpdate), s.UpdateOrganization)
	admin.GET("/orgs/:orgId/stats", s.authorizeOrgParam("orgId", authorization.ObjectCall, authorization.ActionCallView), s.GetOrganizationStats)
	admin.GET("/org-metrics", s.authorizePlatform(authorization.ObjectCall, authorization.ActionCallView), s.ListOrgMetrics)

	// -------- Phone numbers --------
	admin.GET("/phone-numbers", s.authorizePlatform(authorization.ObjectPhoneNumber, authorization.ActionPhoneNumberView), s.ListPhoneNumbers)
	admin.POST("/orgs/:orgId/phone-numbers", s.authorizeOrgParam("orgId", authorization.ObjectPhoneNumber, authorization.ActionPhoneNumberAssign), s.AssignPhoneNumbers)
	admin.DELETE("/orgs/:orgId/phone-numbers/:phoneNumberId", s.authorizeOrgParam("orgId", authorization.ObjectPhoneNumber, authorization.ActionPhoneNumberAssign), s.UnassignPhoneNumber)

	// -------- Manager permissions --------
	admin.GET("/orgs/:orgId/managers/:orgMemberId/permissions", s.authorizeOrgParam("orgId", authorization.ObjectMember, authorization.ActionMemberView), s.GetManagerPermissions)
	admin.POST("/orgs/:orgId/managers/:orgMemberId/permissions", s.authorizeOrgParam("orgId", authorization.ObjectMember, authorization.ActionMemberManage), s.SetManagerPermissions)

	// -------- Users --------
	admin.GET("/users", s.authorizePlatform(authorization.ObjectUser, authorization.ActionUserView), s.ListUsers)
	admin.POST("/users", s.CreateUser)
	admin.PATCH("/users/:userId", s.UpdateUserMembership)
	admin.POST("/users/:userId/global-role", s.RequirePlatformAdmin(), s.SetGlobalRole)
	admin.GET("/users/:userId/platform-permissions", s.authorizePlatform(authorization.ObjectUser, authorization.ActionUserView), s.GetPlatformPermissions)
	admin.POST("/users/:userId/platform-permissions", s.RequirePlatformAdmin(), s.SetPlatformPermissions)
	admin.GET("/agents", s.ListAgents)

	admin.GET("/org_users", s.ListOrgUsers)
	admin.POST("/org_users", s.UpsertOrgUser)
	admin.DELETE("/org_users", s.RemoveOrgUser)

	// -------- Platform API keys --------
	admin.GET("/platform-api-keys", s.RequirePlatformAdmin(), s.ListPlatformAPIKeys)
	admin.POST("/platform-api-keys", s.RequirePlatformAdmin(), s.CreatePlatformAPIKey)
	admin.DELETE("/platform-api-keys/:id", s.RequirePlatformAdmin(), s.RevokePlatformAPIKey)

	// -------- MightyCall --------
	admin.POST("/mightycall/sync", s.authorizePlatform(authorization.ObjectSync, authorization.ActionSyncTrigger), s.SyncMightyCallCatalog)
	admin.POST("/mightycall/sync/calls", s.TriggerCallsSync)
	admin.GET("/mightycall/phone-numbers", s.authorizePlatform(authorization.ObjectPhoneNumber, authorization.ActionPhoneNumberView), s.ListPhoneNumbers)
	admin.GET("/mightycall/extensions", s.authorizePlatform(authorization.ObjectSync, authorization.ActionSyncView), s.ListExtensions)
	admin.GET("/mightycall/call-history", s.ListCallHistory)

	// -------- Billing --------
	admin.GET("/billing/plans", s.authorizePlatform(authorization.ObjectBilling, authorization.ActionBillingView), s.ListPlans)
	admin.POST("/billing/plans", s.authorizePlatform(authorization.ObjectBilling, authorization.ActionBillingManage), s.CreatePlan)
	admin.PATCH("/billing/plans/:id", s.authorizePlatform(authorization.ObjectBilling, authorization.ActionBillingManage), s.UpdatePlan)
	admin.GET("/billing/subscriptions", s.authorizePlatform(authorization.ObjectBilling, authorization.ActionBillingView), s.ListSubscriptions)
	admin.POST("/billing/subscriptions", s.authorizePlatform(authorization.ObjectBilling, authorization.ActionBillingManage), s.CreateSubscription)
	admin.POST("/billing/subscriptions/:id/cancel", s.authorizePlatform(authorization.ObjectBilling, authorization.ActionBillingManage), s.CancelSubscription)
	admin.GET("/billing/invoices", s.authorizePlatform(authorization.ObjectBilling, authorization.ActionBillingView), s.ListInvoices)
	admin.POST("/billing/invoices", s.authorizePlatform(authorization.ObjectBilling, authorization.ActionBillingManage), s.CreateInvoice)
	admin.GET("/billing/invoices/:id", s.authorizePlatform(authorization.ObjectBilling, authorization.ActionBillingView), s.GetInvoice)
	admin.POST("/billing/invoices/:id/status", s.authorizePlatform(authorization.ObjectBilling, authorization.ActionBillingManage), s.SetInvoiceStatus)
	admin.GET("/billing/invoices/:id/pdf", s.authorizePlatform(authorization.ObjectBilling, authorization.ActionBillingView), s.RenderInvoicePDF)

	// -------- Support & audit --------
	admin.GET("/support/tickets", s.authorizePlatform(authorization.ObjectSupportTicket, authorization.ActionSupportTicketView), s.ListAllSupportTickets)
	admin.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerDevRoutes() {
	if !s.cfg.Dev.EnableSeed || s.cfg.IsProduction() {
		return
	}
	s.log.Warn("dev seed routes enabled")
	s.engine.POST("/api/dev/seed-call", s.AuthRequired(), s.SeedCall)
}

// RequirePlatformAdmin guards role grants, which the permission fallbacks
// must never reach.
func (s *Server) RequirePlatformAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.requirePlatformAdmin(c); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// recordAudit writes a handler-level audit entry. Failures are logged and never fail
// the request.
func (s *Server) recordAudit(c *gin.Context, orgID *snowflake.ID, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.Record(c.Request.Context(), auditdomain.Entry{
		OrgID:      orgID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   metadata,
	}); err != nil {
		obslogger.WithContext(c.Request.Context(), s.log).Warn("audit log write failed",
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
