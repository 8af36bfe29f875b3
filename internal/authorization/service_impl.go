package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/switchboard/internal/audit/domain"
	"github.com/smallbiznis/switchboard/internal/config"
	"github.com/smallbiznis/switchboard/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const platformDomain = "platform"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Cfg      config.Config
	Enforcer *casbin.SyncedEnforcer
	Checker  *Checker
	AuditSvc auditdomain.Service `optional:"true"`
	Metrics  *metrics.Metrics    `optional:"true"`
}

type ServiceImpl struct {
	log       *zap.Logger
	enforcer  *casbin.SyncedEnforcer
	checker   *Checker
	auditSvc  auditdomain.Service
	metrics   *metrics.Metrics
	devBypass bool
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	svc := &ServiceImpl{
		log:       p.Log.Named("authorization.service"),
		enforcer:  p.Enforcer,
		checker:   p.Checker,
		auditSvc:  p.AuditSvc,
		metrics:   p.Metrics,
		devBypass: devBypassCompiled && p.Cfg.Dev.AuthBypass && !p.Cfg.IsProduction(),
	}
	if svc.devBypass {
		svc.log.Warn("DEV AUTH BYPASS ENABLED: any authenticated user may assign phone numbers",
			zap.String("environment", p.Cfg.Environment),
		)
	}
	return svc
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor Actor, orgID *snowflake.ID, object string, action string) error {
	if actor.IsZero() {
		return ErrUnauthenticated
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}
	if orgID != nil && *orgID == 0 {
		return ErrInvalidOrganization
	}

	allowed, reason, err := s.decide(ctx, actor, orgID, object, action)
	if err != nil {
		return err
	}
	if allowed {
		s.log.Debug("authorization granted",
			zap.String("subject", actor.subject()),
			zap.String("action", action),
			zap.String("via", reason),
		)
		return nil
	}

	s.log.Info("authorization denied",
		zap.String("subject", actor.subject()),
		zap.String("action", action),
		zap.String("reason", reason),
	)
	s.metrics.RecordAuthzDenied(ctx, action, reason)
	s.auditDenied(ctx, actor, orgID, object, action, reason)
	return ErrForbidden
}

func (s *ServiceImpl) decide(ctx context.Context, actor Actor, orgID *snowflake.ID, object, action string) (bool, string, error) {
	switch actor.Kind {
	case ActorSystem:
		return true, "system", nil
	case ActorAPIKey:
		if actor.Scope == nil || !actor.Scope.Allows(orgID) {
			return false, "api_key_scope", nil
		}
		ok, err := s.enforceRole(actor, "apikey", domainFor(orgID), object, action)
		if err != nil {
			return false, "", err
		}
		if ok {
			return true, "api_key", nil
		}
		return false, "api_key_role", nil
	case ActorUser:
		return s.decideUser(ctx, actor, orgID, object, action)
	default:
		return false, "invalid_actor", ErrInvalidActor
	}
}

func (s *ServiceImpl) decideUser(ctx context.Context, actor Actor, orgID *snowflake.ID, object, action string) (bool, string, error) {
	globalRole, err := s.checker.GlobalRole(ctx, actor.UserID)
	if err != nil {
		return false, "", err
	}
	if ok, err := s.enforceRole(actor, globalRole, platformDomain, object, action); err != nil {
		return false, "", err
	} else if ok {
		return true, "global_role", nil
	}

	if orgID != nil {
		orgRole, err := s.checker.OrgRole(ctx, actor.UserID, *orgID)
		if err != nil {
			return false, "", err
		}
		if ok, err := s.enforceRole(actor, orgRole, domainFor(orgID), object, action); err != nil {
			return false, "", err
		} else if ok {
			return true, "org_role", nil
		}
	}

	if fallback, ok := managerFallbacks[action]; ok {
		if orgID != nil && fallback.org != "" {
			granted, err := s.checker.IsOrgManagerWith(ctx, actor.UserID, *orgID, fallback.org)
			if err != nil {
				return false, "", err
			}
			if granted {
				return true, fallback.org, nil
			}
		}
		if fallback.platform != "" {
			granted, err := s.checker.IsPlatformManagerWith(ctx, actor.UserID, fallback.platform)
			if err != nil {
				return false, "", err
			}
			if granted {
				return true, fallback.platform, nil
			}
		}
	}

	if s.devBypass && action == ActionPhoneNumberAssign {
		s.log.Warn("dev auth bypass used",
			zap.String("user_id", actor.UserID.String()),
			zap.String("action", action),
		)
		return true, "dev_bypass", nil
	}

	return false, "insufficient_role", nil
}

// enforceRole links the actor to role within domain and evaluates the matrix.
// An empty role clears any stale link so that a removed member loses access.
func (s *ServiceImpl) enforceRole(actor Actor, role string, domain string, object, action string) (bool, error) {
	subject := actor.subject()
	roleName := ""
	if role = strings.ToLower(strings.TrimSpace(role)); role != "" {
		roleName = fmt.Sprintf("role:%s", role)
	}
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return false, err
	}
	if roleName == "" {
		return false, nil
	}
	return s.enforcer.Enforce(subject, domain, object, action)
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}
	if roleName == "" {
		return nil
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) IsPlatformAdmin(ctx context.Context, actor Actor) (bool, error) {
	switch actor.Kind {
	case ActorSystem:
		return true, nil
	case ActorAPIKey:
		return actor.Scope != nil && actor.Scope.Kind == ScopePlatform, nil
	case ActorUser:
		return s.checker.IsPlatformAdmin(ctx, actor.UserID)
	default:
		return false, ErrUnauthenticated
	}
}

func (s *ServiceImpl) IsAdminFor(ctx context.Context, actor Actor, orgID snowflake.ID) (bool, error) {
	if actor.Kind == ActorAPIKey {
		return actor.Scope != nil && actor.Scope.Allows(&orgID), nil
	}
	platformAdmin, err := s.IsPlatformAdmin(ctx, actor)
	if err != nil || platformAdmin {
		return platformAdmin, err
	}
	return s.checker.IsOrgAdmin(ctx, actor.UserID, orgID)
}

func (s *ServiceImpl) VisibleOrgIDs(ctx context.Context, actor Actor) ([]snowflake.ID, error) {
	switch actor.Kind {
	case ActorAPIKey:
		if actor.Scope == nil {
			return []snowflake.ID{}, nil
		}
		if actor.Scope.Kind == ScopeOrg && actor.Scope.OrgID != nil {
			return []snowflake.ID{*actor.Scope.OrgID}, nil
		}
		if actor.Scope.Kind == ScopePlatform {
			return nil, nil
		}
		return []snowflake.ID{}, nil
	case ActorSystem:
		return nil, nil
	case ActorUser:
		platformAdmin, err := s.checker.IsPlatformAdmin(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if platformAdmin {
			return nil, nil
		}
		ids, err := s.checker.MemberOrgIDs(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if ids == nil {
			ids = []snowflake.ID{}
		}
		return ids, nil
	default:
		return nil, ErrUnauthenticated
	}
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actor Actor, orgID *snowflake.ID, object, action, reason string) {
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		OrgID:      orgID,
		ActorType:  auditdomain.ActorType(actor.Kind),
		ActorID:    actor.ID(),
		Action:     "authorization.denied",
		TargetType: "authorization",
		TargetID:   object,
		Metadata: map[string]any{
			"object":  object,
			"action":  action,
			"reason":  reason,
			"subject": actor.subject(),
		},
	})
}

func domainFor(orgID *snowflake.ID) string {
	if orgID == nil {
		return platformDomain
	}
	return fmt.Sprintf("org:%s", orgID.String())
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	readOnlyMember := []string{
		ActionOrganizationView,
		ActionCallView,
		ActionRecordingView,
		ActionSupportTicketView,
		ActionSupportTicketCreate,
	}

	policies := [][]string{
		// Platform administrators
		{"role:platform_admin", "*", "*"},
		{"role:admin", "*", "*"},

		// Org administrators
		{"role:owner", "*", "*"},
		{"role:org_admin", "*", "*"},

		// API keys, further limited by scope
		{"role:apikey", ObjectOrganization, ActionOrganizationView},
		{"role:apikey", ObjectPhoneNumber, ActionPhoneNumberView},
		{"role:apikey", ObjectCall, ActionCallView},
		{"role:apikey", ObjectRecording, ActionRecordingView},
		{"role:apikey", ObjectSupportTicket, ActionSupportTicketView},
		{"role:apikey", ObjectSync, ActionSyncView},
		{"role:apikey", ObjectSync, ActionSyncTrigger},
	}

	for _, role := range []string{"role:agent", "role:manager", "role:org_manager"} {
		for _, action := range readOnlyMember {
			policies = append(policies, []string{role, objectOf(action), action})
		}
	}
	for _, role := range []string{"role:manager", "role:org_manager"} {
		policies = append(policies,
			[]string{role, ObjectMember, ActionMemberView},
			[]string{role, ObjectPhoneNumber, ActionPhoneNumberView},
			[]string{role, ObjectSync, ActionSyncView},
		)
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}

func objectOf(action string) string {
	if idx := strings.Index(action, "."); idx > 0 {
		return action[:idx]
	}
	return action
}
