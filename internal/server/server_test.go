package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	apikeydomain "github.com/smallbiznis/switchboard/internal/apikey/domain"
	authdomain "github.com/smallbiznis/switchboard/internal/auth/domain"
	"github.com/smallbiznis/switchboard/internal/authorization"
	calldomain "github.com/smallbiznis/switchboard/internal/call/domain"
	callrepository "github.com/smallbiznis/switchboard/internal/call/repository"
	callservice "github.com/smallbiznis/switchboard/internal/call/service"
	"github.com/smallbiznis/switchboard/internal/clock"
	"github.com/smallbiznis/switchboard/internal/config"
	"github.com/smallbiznis/switchboard/internal/mightycall"
	orgdomain "github.com/smallbiznis/switchboard/internal/organization/domain"
	orgrepository "github.com/smallbiznis/switchboard/internal/organization/repository"
	orgservice "github.com/smallbiznis/switchboard/internal/organization/service"
	phonenumberdomain "github.com/smallbiznis/switchboard/internal/phonenumber/domain"
	phonerepository "github.com/smallbiznis/switchboard/internal/phonenumber/repository"
	phoneservice "github.com/smallbiznis/switchboard/internal/phonenumber/service"
	"github.com/smallbiznis/switchboard/internal/ratelimit"
	"github.com/smallbiznis/switchboard/internal/reconcile"
	reconciledomain "github.com/smallbiznis/switchboard/internal/reconcile/domain"
	recordingdomain "github.com/smallbiznis/switchboard/internal/recording/domain"
	supportdomain "github.com/smallbiznis/switchboard/internal/support/domain"
	supportrepository "github.com/smallbiznis/switchboard/internal/support/repository"
	supportservice "github.com/smallbiznis/switchboard/internal/support/service"
	userdomain "github.com/smallbiznis/switchboard/internal/user/domain"
	"github.com/smallbiznis/switchboard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	orgA = snowflake.ID(100)
	orgB = snowflake.ID(200)

	rootID    = snowflake.ID(1)
	adminID   = snowflake.ID(2)
	managerID = snowflake.ID(3)
	agentID   = snowflake.ID(4)
	platMgrID = snowflake.ID(5)

	numberA = snowflake.ID(500)
	numberB = snowflake.ID(501)

	orgKey = "sk_org_a"
)

var tokens = map[string]snowflake.ID{
	"root":    rootID,
	"admin":   adminID,
	"manager": managerID,
	"agent":   agentID,
	"platmgr": platMgrID,
}

type fakeAuth struct{}

func (fakeAuth) CreateUser(ctx context.Context, req authdomain.CreateUserRequest) (*authdomain.User, error) {
	return nil, errors.New("not implemented")
}

func (fakeAuth) GetUser(ctx context.Context, id snowflake.ID) (*authdomain.User, error) {
	return &authdomain.User{ID: id}, nil
}

func (fakeAuth) Login(ctx context.Context, req authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	return nil, authdomain.ErrInvalidCredentials
}

func (fakeAuth) Logout(ctx context.Context, rawToken string) error { return nil }

func (fakeAuth) Authenticate(ctx context.Context, rawToken string) (*authdomain.Session, error) {
	id, ok := tokens[rawToken]
	if !ok {
		return nil, authdomain.ErrSessionNotFound
	}
	return &authdomain.Session{UserID: id}, nil
}

type fakeAPIKeys struct{}

func (fakeAPIKeys) List(ctx context.Context, scope string, orgID *snowflake.ID) ([]apikeydomain.Response, error) {
	return nil, nil
}

func (fakeAPIKeys) Create(ctx context.Context, req apikeydomain.CreateRequest) (*apikeydomain.SecretResponse, error) {
	return nil, errors.New("not implemented")
}

func (fakeAPIKeys) Revoke(ctx context.Context, scope string, orgID *snowflake.ID, id string) error {
	return nil
}

func (fakeAPIKeys) Verify(ctx context.Context, raw string) (*apikeydomain.APIKey, error) {
	if raw != orgKey {
		return nil, apikeydomain.ErrNotFound
	}
	org := orgA
	return &apikeydomain.APIKey{ID: "key-1", Scope: apikeydomain.ScopeOrg, OrgID: &org}, nil
}

type syncCall struct {
	resource reconcile.Resource
	orgID    *snowflake.ID
	rng      mightycall.DateRange
}

type fakeSyncEngine struct {
	calls []syncCall
	err   error
}

func (f *fakeSyncEngine) Sync(ctx context.Context, resource reconcile.Resource, orgID *snowflake.ID, rng mightycall.DateRange) (reconcile.Result, error) {
	f.calls = append(f.calls, syncCall{resource: resource, orgID: orgID, rng: rng})
	if f.err != nil {
		return reconcile.Result{}, f.err
	}
	return reconcile.Result{Resource: resource, OrgID: orgID, Records: 3}, nil
}

func (f *fakeSyncEngine) SyncPhoneNumbers(ctx context.Context, orgID *snowflake.ID) (reconcile.Result, error) {
	return reconcile.Result{Resource: reconcile.ResourcePhoneNumbers, Records: 2}, f.err
}

func (f *fakeSyncEngine) SyncExtensions(ctx context.Context) (reconcile.Result, error) {
	return reconcile.Result{Resource: reconcile.ResourceExtensions, Records: 5}, f.err
}

func (f *fakeSyncEngine) TestConnection(ctx context.Context, orgID *snowflake.ID) (reconcile.ConnectionResult, error) {
	return reconcile.ConnectionResult{OK: true, Source: "global"}, f.err
}

func (f *fakeSyncEngine) ListJobs(ctx context.Context, filter reconcile.JobFilter) ([]reconciledomain.SyncJob, error) {
	return nil, nil
}

type fixture struct {
	srv    *Server
	conn   *gorm.DB
	engine *fakeSyncEngine
}

func newFixture(t *testing.T, limiter *ratelimit.SyncTriggerLimiter) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&authdomain.User{},
		&orgdomain.Organization{},
		&orgdomain.OrgSettings{},
		&orgdomain.Member{},
		&orgdomain.ManagerPermissions{},
		&userdomain.PlatformPermissions{},
		&phonenumberdomain.PhoneNumber{},
		&phonenumberdomain.OrgPhoneNumber{},
		&calldomain.Call{},
		&calldomain.Extension{},
		&supportdomain.Ticket{},
		&supportdomain.Message{},
	))
	seedFixture(t, conn)

	node, err := snowflake.NewNode(9)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	cfg := config.Config{Environment: "test"}

	enforcer, err := authorization.NewEnforcer(conn)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{
		DB:       conn,
		Log:      log,
		Cfg:      cfg,
		Enforcer: enforcer,
		Checker:  authorization.NewChecker(conn),
	})

	orgs := orgservice.NewService(orgservice.Params{
		DB: conn, Log: log, Repo: orgrepository.NewRepository(conn), GenID: node, Clock: fake,
	})
	phones := phoneservice.New(phoneservice.Params{
		Log: log, Repo: phonerepository.NewRepository(conn, cfg), GenID: node, Clock: fake,
	})
	calls := callservice.New(callservice.Params{
		Log: log, Repo: callrepository.NewRepository(conn), PhoneSvc: phones, OrgSvc: orgs, GenID: node, Clock: fake,
	})
	support := supportservice.New(supportservice.Params{
		Log: log, Repo: supportrepository.NewRepository(conn), OrgSvc: orgs, GenID: node, Clock: fake,
	})

	engine := &fakeSyncEngine{}
	srv := NewServer(ServerParams{
		Gin:         newTestEngine(),
		Cfg:         cfg,
		Log:         log,
		Clock:       fake,
		Authsvc:     fakeAuth{},
		AuthzSvc:    authz,
		APIKeySvc:   fakeAPIKeys{},
		OrgSvc:      orgs,
		PhoneSvc:    phones,
		CallSvc:     calls,
		SupportSvc:  support,
		SyncEngine:  engine,
		SyncLimiter: limiter,
	})
	return &fixture{srv: srv, conn: conn, engine: engine}
}

func newTestEngine() *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandlingMiddleware(false))
	return r
}

func seedFixture(t *testing.T, conn *gorm.DB) {
	t.Helper()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	users := []authdomain.User{
		{ID: rootID, Email: "root@example.com", GlobalRole: "platform_admin", CreatedAt: now, UpdatedAt: now},
		{ID: adminID, Email: "admin@example.com", GlobalRole: "user", CreatedAt: now, UpdatedAt: now},
		{ID: managerID, Email: "manager@example.com", GlobalRole: "user", CreatedAt: now, UpdatedAt: now},
		{ID: agentID, Email: "agent@example.com", GlobalRole: "user", CreatedAt: now, UpdatedAt: now},
		{ID: platMgrID, Email: "platmgr@example.com", GlobalRole: "platform_manager", CreatedAt: now, UpdatedAt: now},
	}
	orgs := []orgdomain.Organization{
		{ID: orgA, Name: "Acme", Slug: "acme", Timezone: "UTC", CreatedAt: now, UpdatedAt: now},
		{ID: orgB, Name: "Globex", Slug: "globex", Timezone: "UTC", CreatedAt: now, UpdatedAt: now},
	}
	members := []orgdomain.Member{
		{ID: 10, OrgID: orgA, UserID: adminID, Role: orgdomain.RoleOrgAdmin, CreatedAt: now},
		{ID: 11, OrgID: orgA, UserID: managerID, Role: orgdomain.RoleOrgManager, CreatedAt: now},
		{ID: 12, OrgID: orgA, UserID: agentID, Role: orgdomain.RoleAgent, CreatedAt: now},
	}
	numbers := []phonenumberdomain.PhoneNumber{
		{ID: numberA, ExternalID: "pn-a", Number: "+15551230001", NumberDigits: "15551230001", IsActive: true, CreatedAt: now, UpdatedAt: now},
		{ID: numberB, ExternalID: "pn-b", Number: "+15551230002", NumberDigits: "15551230002", IsActive: true, CreatedAt: now, UpdatedAt: now},
	}
	tickets := []supportdomain.Ticket{
		{ID: 900, OrgID: orgA, CreatedBy: agentID, Subject: "Line down", Priority: "normal", Status: "open", CreatedAt: now, UpdatedAt: now},
		{ID: 901, OrgID: orgB, CreatedBy: rootID, Subject: "Other org", Priority: "normal", Status: "open", CreatedAt: now, UpdatedAt: now},
	}

	require.NoError(t, conn.Create(&users).Error)
	require.NoError(t, conn.Create(&orgs).Error)
	require.NoError(t, conn.Create(&members).Error)
	require.NoError(t, conn.Create(&numbers).Error)
	require.NoError(t, conn.Create(&tickets).Error)
	require.NoError(t, conn.Create(&orgdomain.ManagerPermissions{OrgMemberID: 11, CanManagePhoneNumbers: true, UpdatedAt: now}).Error)
	require.NoError(t, conn.Create(&userdomain.PlatformPermissions{UserID: platMgrID, CanManageOrgs: true, CanManagePhoneNumbersGlobal: true, UpdatedAt: now}).Error)
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case token == orgKey:
		req.Header.Set(headerAPIKey, token)
	case token != "":
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.srv.Engine().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRequestsWithoutIdentityAreRejected(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/support/tickets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode(t, rec)["error"])

	rec = f.do(t, http.MethodGet, "/api/support/tickets", "stale-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLegacyUserHeaderIsIgnored(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/support/tickets", nil)
	req.Header.Set("x-user-id", rootID.String())
	rec := httptest.NewRecorder()
	f.srv.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSupportTicketsAreScopedToMemberships(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/support/tickets", "agent", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tickets := decode(t, rec)["tickets"].([]any)
	require.Len(t, tickets, 1)
	assert.Equal(t, "Line down", tickets[0].(map[string]any)["subject"])

	rec = f.do(t, http.MethodGet, "/api/support/tickets?org_id="+orgB.String(), "agent", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode(t, rec)["tickets"])

	rec = f.do(t, http.MethodGet, "/api/support/tickets", "root", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["tickets"], 2)

	rec = f.do(t, http.MethodGet, "/api/support/tickets/901", "agent", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	missing := f.do(t, http.MethodGet, "/api/support/tickets/999", "agent", nil)
	assert.Equal(t, missing.Code, rec.Code)
	assert.JSONEq(t, missing.Body.String(), rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/support/tickets/901/messages", "agent", map[string]any{"message": "hello?"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateTicketRequiresOrgAdmin(t *testing.T) {
	f := newFixture(t, nil)
	body := map[string]any{"status": "closed"}

	rec := f.do(t, http.MethodPatch, "/api/support/tickets/900", "agent", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/support/tickets/900", "admin", body)
	require.Equal(t, http.StatusOK, rec.Code)
	ticket := decode(t, rec)["ticket"].(map[string]any)
	assert.Equal(t, "closed", ticket["status"])
}

func TestAssignPhoneNumbers(t *testing.T) {
	f := newFixture(t, nil)
	path := "/api/admin/orgs/" + orgA.String() + "/phone-numbers"

	rec := f.do(t, http.MethodPost, path, "agent", map[string]any{"phoneNumberIds": []string{numberA.String()}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, path, "admin", map[string]any{"phoneNumberIds": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_required_fields", decode(t, rec)["error"])

	rec = f.do(t, http.MethodPost, path, "manager", map[string]any{"phoneNumberIds": []string{numberA.String()}})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, path+"/"+numberB.String(), "admin", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "phone_number_not_found_for_org", decode(t, rec)["error"])

	rec = f.do(t, http.MethodDelete, path+"/"+numberA.String(), "admin", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCallStatsWithoutAssignedNumbersIsEmpty(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/call-stats?org_id="+orgA.String(), "agent", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(0), body["stats"].(map[string]any)["totalCalls"])
	assert.Empty(t, body["calls"])

	rec = f.do(t, http.MethodGet, "/api/calls/recent?org_id="+orgB.String(), "agent", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGlobalRoleRequiresPlatformAdmin(t *testing.T) {
	f := newFixture(t, nil)
	path := "/api/admin/users/" + agentID.String() + "/global-role"

	rec := f.do(t, http.MethodPost, path, "admin", map[string]any{"globalRole": "platform_admin"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/admin/platform-api-keys", "manager", map[string]any{"name": "ci"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOrgMembershipGrantCannotEscalate(t *testing.T) {
	f := newFixture(t, nil)
	body := map[string]any{"orgId": orgA.String(), "userId": agentID.String(), "role": orgdomain.RoleOrgAdmin}

	rec := f.do(t, http.MethodPost, "/api/admin/org_users", "manager", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/admin/org_users", "admin", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orgdomain.RoleOrgAdmin, decode(t, rec)["org_user"].(map[string]any)["role"])
}

func TestOrgUserExtensionSurvivesRoleChange(t *testing.T) {
	f := newFixture(t, nil)
	body := map[string]any{"orgId": orgA.String(), "userId": agentID.String(), "role": orgdomain.RoleAgent, "mightycall_extension": " 301 "}

	rec := f.do(t, http.MethodPost, "/api/admin/org_users", "admin", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "301", decode(t, rec)["org_user"].(map[string]any)["mightycall_extension"])

	delete(body, "mightycall_extension")
	body["role"] = orgdomain.RoleOrgManager
	rec = f.do(t, http.MethodPost, "/api/admin/org_users", "admin", body)
	require.Equal(t, http.StatusOK, rec.Code)
	member := decode(t, rec)["org_user"].(map[string]any)
	assert.Equal(t, orgdomain.RoleOrgManager, member["role"])
	assert.Equal(t, "301", member["mightycall_extension"])

	body["mightycall_extension"] = ""
	rec = f.do(t, http.MethodPost, "/api/admin/org_users", "admin", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, decode(t, rec)["org_user"].(map[string]any), "mightycall_extension")
}

func TestOrganizationDetailReportsPhoneNumberEditing(t *testing.T) {
	f := newFixture(t, nil)
	path := "/api/admin/orgs/" + orgA.String()

	canEdit := func(token string) bool {
		t.Helper()
		rec := f.do(t, http.MethodGet, path, token, nil)
		require.Equal(t, http.StatusOK, rec.Code, token)
		perms := decode(t, rec)["permissions"].(map[string]any)
		return perms["canEditPhoneNumbers"].(bool)
	}

	assert.True(t, canEdit("root"), "platform admin")
	assert.True(t, canEdit("platmgr"), "platform manager with global phone permission")
	assert.True(t, canEdit("admin"), "org admin")
	assert.True(t, canEdit("manager"), "org manager with phone permission")
	assert.False(t, canEdit("agent"), "agent")

	require.NoError(t, f.conn.Model(&userdomain.PlatformPermissions{}).Where("user_id = ?", platMgrID).
		Update("can_manage_phone_numbers_global", false).Error)
	assert.False(t, canEdit("platmgr"), "platform manager without global phone permission")

	require.NoError(t, f.conn.Model(&orgdomain.ManagerPermissions{}).Where("org_member_id = ?", 11).
		Update("can_manage_phone_numbers", false).Error)
	assert.False(t, canEdit("manager"), "org manager without phone permission")
}

func TestTriggerSync(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/mightycall/sync/calls", "admin", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_org_id", decode(t, rec)["error"])

	rec = f.do(t, http.MethodPost, "/api/mightycall/sync/faxes", "admin", map[string]any{"orgId": orgA.String()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/mightycall/sync/calls", "agent", map[string]any{"orgId": orgA.String()})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/mightycall/sync/recordings", "admin", map[string]any{
		"orgId":     orgA.String(),
		"startDate": "2025-03-01",
		"endDate":   "2025-03-03",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.engine.calls, 1)
	got := f.engine.calls[0]
	assert.Equal(t, reconcile.ResourceRecordings, got.resource)
	require.NotNil(t, got.orgID)
	assert.Equal(t, orgA, *got.orgID)
	assert.Equal(t, 1, got.rng.From.Day())
}

func TestTriggerSyncWithoutAssignedNumbers(t *testing.T) {
	f := newFixture(t, nil)
	f.engine.err = reconciledomain.ErrNoPhoneNumbers

	rec := f.do(t, http.MethodPost, "/api/admin/mightycall/sync/calls", "admin", map[string]any{"orgId": orgA.String()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"No phone numbers assigned to this organization"}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/mightycall/sync/reports", "admin", map[string]any{"orgId": orgA.String()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"No phone numbers assigned to this organization"}`, rec.Body.String())
}

func TestTriggerSyncIsRateLimitedPerOrg(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := ratelimit.NewSyncTriggerLimiter(config.Config{
		Sync: config.SyncConfig{TriggerRate: 0.01, TriggerBurst: 1},
	}, client)
	f := newFixture(t, limiter)
	body := map[string]any{"orgId": orgA.String()}

	rec := f.do(t, http.MethodPost, "/api/mightycall/sync/calls", "admin", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/mightycall/sync/calls", "admin", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decode(t, rec)["error"])
	assert.Len(t, f.engine.calls, 1)
}

func TestOrgAPIKeyIsConfinedToItsOrg(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/calls/recent?org_id="+orgA.String(), orgKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/calls/recent?org_id="+orgB.String(), orgKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/support/tickets", orgKey, map[string]any{"subject": "x", "message": "y"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", newValidationError("orgId", "invalid_org_id", "bad"), http.StatusBadRequest, "invalid_org_id"},
		{"not found", gorm.ErrRecordNotFound, http.StatusNotFound, "not_found"},
		{"domain not found", phonenumberdomain.ErrNotFoundForOrg, http.StatusNotFound, "phone_number_not_found_for_org"},
		{"upstream", &recordingdomain.FetchError{Status: 500}, http.StatusBadGateway, "upstream_fetch_failed"},
		{"forbidden", authorization.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"conflict", authdomain.ErrUserExists, http.StatusConflict, authdomain.ErrUserExists.Error()},
		{"internal", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, payload.Error)
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandlingMiddleware(false))
	r.GET("/boom", func(c *gin.Context) {
		AbortWithError(c, errors.New("dial tcp 10.0.0.5:5432: connection refused"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}
