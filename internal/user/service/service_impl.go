package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/switchboard/internal/audit/domain"
	authdomain "github.com/smallbiznis/switchboard/internal/auth/domain"
	"github.com/smallbiznis/switchboard/internal/clock"
	orgdomain "github.com/smallbiznis/switchboard/internal/organization/domain"
	"github.com/smallbiznis/switchboard/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Repo     domain.Repository
	AuthSvc  authdomain.Service
	OrgSvc   orgdomain.Service
	Clock    clock.Clock
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	repo     domain.Repository
	authSvc  authdomain.Service
	orgSvc   orgdomain.Service
	clock    clock.Clock
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("user.service"),
		repo:     p.Repo,
		authSvc:  p.AuthSvc,
		orgSvc:   p.OrgSvc,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) List(ctx context.Context) ([]domain.UserSummary, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]snowflake.ID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	memberships, err := s.repo.ListMemberships(ctx, ids)
	if err != nil {
		return nil, err
	}

	byUser := make(map[snowflake.ID][]domain.Membership, len(users))
	for _, m := range memberships {
		byUser[m.UserID] = append(byUser[m.UserID], m)
	}

	out := make([]domain.UserSummary, 0, len(users))
	for _, u := range users {
		u.Memberships = byUser[u.ID]
		if u.Memberships == nil {
			u.Memberships = []domain.Membership{}
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*authdomain.User, error) {
	if req.OrgID != nil {
		role := strings.ToLower(strings.TrimSpace(req.Role))
		if role != "" && !orgdomain.IsValidRole(role) {
			return nil, orgdomain.ErrInvalidRole
		}
		if _, err := s.orgSvc.Get(ctx, *req.OrgID); err != nil {
			return nil, err
		}
	}

	user, err := s.authSvc.CreateUser(ctx, authdomain.CreateUserRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		GlobalRole:  req.GlobalRole,
	})
	if err != nil {
		return nil, err
	}

	if req.OrgID != nil {
		if _, err := s.orgSvc.UpsertMember(ctx, orgdomain.UpsertMemberRequest{
			OrgID:  *req.OrgID,
			UserID: user.ID,
			Role:   req.Role,
		}); err != nil {
			return nil, err
		}
	}

	s.audit(ctx, req.OrgID, "user.create", user.ID, map[string]any{
		"email":       user.Email,
		"global_role": user.GlobalRole,
	})
	return user, nil
}

func (s *Service) UpdateMembership(ctx context.Context, userID, orgID snowflake.ID, role string) error {
	if userID == 0 {
		return domain.ErrInvalidUser
	}
	if _, err := s.authSvc.GetUser(ctx, userID); err != nil {
		if errors.Is(err, authdomain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		return err
	}
	_, err := s.orgSvc.UpsertMember(ctx, orgdomain.UpsertMemberRequest{OrgID: orgID, UserID: userID, Role: role})
	return err
}

func (s *Service) SetGlobalRole(ctx context.Context, userID snowflake.ID, role string) error {
	if userID == 0 {
		return domain.ErrInvalidUser
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if !authdomain.IsValidGlobalRole(role) {
		return authdomain.ErrInvalidGlobalRole
	}

	updated, err := s.repo.UpdateGlobalRole(ctx, userID, role)
	if err != nil {
		return err
	}
	if updated == 0 {
		return domain.ErrUserNotFound
	}

	s.log.Info("global role changed", zap.String("user_id", userID.String()), zap.String("global_role", role))
	s.audit(ctx, nil, "user.global_role", userID, map[string]any{"global_role": role})
	return nil
}

func (s *Service) GetPlatformPermissions(ctx context.Context, userID snowflake.ID) (*domain.PlatformPermissions, error) {
	if _, err := s.lookup(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.GetPlatformPermissions(ctx, userID)
}

func (s *Service) SetPlatformPermissions(ctx context.Context, userID snowflake.ID, req domain.PlatformPermissionsRequest) (*domain.PlatformPermissions, error) {
	user, err := s.lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.GlobalRole != authdomain.GlobalRolePlatformManager {
		return nil, domain.ErrNotPlatformRole
	}

	perms, err := s.repo.GetPlatformPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.CanManagePhoneNumbersGlobal != nil {
		perms.CanManagePhoneNumbersGlobal = *req.CanManagePhoneNumbersGlobal
	}
	if req.CanManageAgentsGlobal != nil {
		perms.CanManageAgentsGlobal = *req.CanManageAgentsGlobal
	}
	if req.CanManageOrgs != nil {
		perms.CanManageOrgs = *req.CanManageOrgs
	}
	if req.CanViewBillingGlobal != nil {
		perms.CanViewBillingGlobal = *req.CanViewBillingGlobal
	}
	perms.UpdatedAt = s.clock.Now()

	if err := s.repo.UpsertPlatformPermissions(ctx, *perms); err != nil {
		return nil, err
	}

	s.audit(ctx, nil, "platform_permissions.update", userID, map[string]any{
		"can_manage_phone_numbers_global": perms.CanManagePhoneNumbersGlobal,
		"can_manage_agents_global":        perms.CanManageAgentsGlobal,
		"can_manage_orgs":                 perms.CanManageOrgs,
		"can_view_billing_global":         perms.CanViewBillingGlobal,
	})
	return perms, nil
}

func (s *Service) ListAgents(ctx context.Context, orgIDs []snowflake.ID) ([]domain.Agent, error) {
	agents, err := s.repo.ListAgents(ctx, orgIDs)
	if err != nil {
		return nil, err
	}
	if agents == nil {
		agents = []domain.Agent{}
	}
	return agents, nil
}

func (s *Service) lookup(ctx context.Context, userID snowflake.ID) (*authdomain.User, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	user, err := s.authSvc.GetUser(ctx, userID)
	if errors.Is(err, authdomain.ErrUserNotFound) {
		return nil, domain.ErrUserNotFound
	}
	return user, err
}

func (s *Service) audit(ctx context.Context, orgID *snowflake.ID, action string, userID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		OrgID:      orgID,
		Action:     action,
		TargetType: "user",
		TargetID:   userID.String(),
		Metadata:   metadata,
	})
}
