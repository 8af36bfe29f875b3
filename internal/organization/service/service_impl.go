package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/switchboard/internal/audit/domain"
	"github.com/smallbiznis/switchboard/internal/clock"
	"github.com/smallbiznis/switchboard/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultTimezone         = "UTC"
	defaultSLATargetPercent = 80
	defaultSLATargetSeconds = 20
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     domain.Repository
	GenID    *snowflake.Node
	Clock    clock.Clock
	AuditSvc auditdomain.Service `optional:"true"`
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	genID    *snowflake.Node
	clock    clock.Clock
	auditSvc auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("organization.service"),
		repo:     p.Repo,
		genID:    p.GenID,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
	}
}

func (s *service) Create(ctx context.Context, creatorID snowflake.ID, req domain.CreateOrganizationRequest) (*domain.Organization, error) {
	if creatorID == 0 {
		return nil, domain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	timezone := strings.TrimSpace(req.Timezone)
	if timezone == "" {
		timezone = defaultTimezone
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, domain.ErrInvalidTimezone
	}

	now := s.clock.Now()
	orgID := s.genID.Generate()
	org := domain.Organization{
		ID:               orgID,
		Name:             name,
		Timezone:         timezone,
		SLATargetPercent: defaultSLATargetPercent,
		SLATargetSeconds: defaultSLATargetSeconds,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		orgSlug, err := s.uniqueSlug(ctx, repo, name, orgID)
		if err != nil {
			return err
		}
		org.Slug = orgSlug

		if err := repo.CreateOrganization(ctx, org); err != nil {
			return err
		}

		if err := repo.CreateSettings(ctx, domain.OrgSettings{
			OrgID:     orgID,
			Settings:  datatypes.JSONMap{},
			UpdatedAt: now,
		}); err != nil {
			return err
		}

		return repo.UpsertMember(ctx, domain.Member{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			UserID:    creatorID,
			Role:      domain.RoleOrgAdmin,
			CreatedAt: now,
		}, false)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("organization created", zap.String("org_id", orgID.String()), zap.String("slug", org.Slug))
	s.audit(ctx, &orgID, "organization.create", "organization", orgID.String(), map[string]any{
		"name":     name,
		"timezone": timezone,
	})
	return &org, nil
}

func (s *service) uniqueSlug(ctx context.Context, repo domain.Repository, name string, orgID snowflake.ID) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "org"
	}
	exists, err := repo.SlugExists(ctx, base)
	if err != nil {
		return "", err
	}
	if !exists {
		return base, nil
	}
	id := orgID.String()
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	return fmt.Sprintf("%s-%s", base, id), nil
}

func (s *service) Get(ctx context.Context, orgID snowflake.ID) (*domain.Organization, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	return s.repo.GetOrganization(ctx, orgID)
}

func (s *service) List(ctx context.Context) ([]domain.Organization, error) {
	orgs, err := s.repo.ListOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	if orgs == nil {
		orgs = []domain.Organization{}
	}
	return orgs, nil
}

func (s *service) ListForUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListItem, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	items, err := s.repo.ListOrganizationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.OrganizationListItem{}
	}
	return items, nil
}

func (s *service) Update(ctx context.Context, orgID snowflake.ID, req domain.UpdateOrganizationRequest) (*domain.Organization, error) {
	org, err := s.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}

	changed := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		org.Name = name
		changed["name"] = name
	}
	if req.Timezone != nil {
		timezone := strings.TrimSpace(*req.Timezone)
		if _, err := time.LoadLocation(timezone); err != nil || timezone == "" {
			return nil, domain.ErrInvalidTimezone
		}
		org.Timezone = timezone
		changed["timezone"] = timezone
	}
	if req.SLATargetPercent != nil {
		if *req.SLATargetPercent < 0 || *req.SLATargetPercent > 100 {
			return nil, domain.ErrInvalidSLATarget
		}
		org.SLATargetPercent = *req.SLATargetPercent
		changed["sla_target_percent"] = *req.SLATargetPercent
	}
	if req.SLATargetSeconds != nil {
		if *req.SLATargetSeconds < 0 {
			return nil, domain.ErrInvalidSLATarget
		}
		org.SLATargetSeconds = *req.SLATargetSeconds
		changed["sla_target_seconds"] = *req.SLATargetSeconds
	}
	if req.BusinessHours != nil {
		org.BusinessHours = datatypes.JSONMap(req.BusinessHours)
		changed["business_hours"] = true
	}
	if req.EscalationEmail != nil {
		email := strings.TrimSpace(*req.EscalationEmail)
		if email == "" {
			org.EscalationEmail = nil
		} else {
			if _, err := mail.ParseAddress(email); err != nil {
				return nil, domain.ErrInvalidEmail
			}
			org.EscalationEmail = &email
		}
		changed["escalation_email"] = email
	}

	org.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateOrganization(ctx, *org); err != nil {
		return nil, err
	}

	s.audit(ctx, &orgID, "organization.update", "organization", orgID.String(), changed)
	return org, nil
}

func (s *service) UpsertMember(ctx context.Context, req domain.UpsertMemberRequest) (*domain.Member, error) {
	if req.OrgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = domain.RoleAgent
	}
	if !domain.IsValidRole(role) {
		return nil, domain.ErrInvalidRole
	}
	if _, err := s.repo.GetOrganization(ctx, req.OrgID); err != nil {
		return nil, err
	}

	var extension *string
	if req.Extension != nil {
		if trimmed := strings.TrimSpace(*req.Extension); trimmed != "" {
			extension = &trimmed
		}
	}

	if err := s.repo.UpsertMember(ctx, domain.Member{
		ID:                  s.genID.Generate(),
		OrgID:               req.OrgID,
		UserID:              req.UserID,
		Role:                role,
		MightycallExtension: extension,
		CreatedAt:           s.clock.Now(),
	}, req.Extension != nil); err != nil {
		return nil, err
	}

	member, err := s.repo.GetMember(ctx, req.OrgID, req.UserID)
	if err != nil {
		return nil, err
	}

	orgID := req.OrgID
	changes := map[string]any{"role": role}
	if req.Extension != nil {
		changes["mightycall_extension"] = extension
	}
	s.audit(ctx, &orgID, "member.upsert", "user", req.UserID.String(), changes)
	return member, nil
}

func (s *service) RemoveMember(ctx context.Context, orgID, userID snowflake.ID) error {
	if orgID == 0 {
		return domain.ErrInvalidOrganization
	}
	if userID == 0 {
		return domain.ErrInvalidUser
	}
	removed, err := s.repo.RemoveMember(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if removed == 0 {
		return domain.ErrMemberNotFound
	}
	s.audit(ctx, &orgID, "member.remove", "user", userID.String(), nil)
	return nil
}

func (s *service) ListMembers(ctx context.Context, orgID *snowflake.ID) ([]domain.MemberView, error) {
	members, err := s.repo.ListMembers(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []domain.MemberView{}
	}
	return members, nil
}

func (s *service) GetManagerPermissions(ctx context.Context, orgID, memberID snowflake.ID) (*domain.ManagerPermissions, error) {
	if _, err := s.repo.GetMemberByID(ctx, orgID, memberID); err != nil {
		return nil, err
	}
	return s.repo.GetManagerPermissions(ctx, memberID)
}

func (s *service) SetManagerPermissions(ctx context.Context, orgID, memberID snowflake.ID, req domain.ManagerPermissionsRequest) (*domain.ManagerPermissions, error) {
	member, err := s.repo.GetMemberByID(ctx, orgID, memberID)
	if err != nil {
		return nil, err
	}
	if !domain.IsManagerRole(member.Role) {
		return nil, domain.ErrNotManager
	}

	perms, err := s.repo.GetManagerPermissions(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if req.CanManageAgents != nil {
		perms.CanManageAgents = *req.CanManageAgents
	}
	if req.CanManagePhoneNumbers != nil {
		perms.CanManagePhoneNumbers = *req.CanManagePhoneNumbers
	}
	if req.CanEditServiceTargets != nil {
		perms.CanEditServiceTargets = *req.CanEditServiceTargets
	}
	if req.CanViewBilling != nil {
		perms.CanViewBilling = *req.CanViewBilling
	}
	perms.UpdatedAt = s.clock.Now()

	if err := s.repo.UpsertManagerPermissions(ctx, *perms); err != nil {
		return nil, err
	}

	s.audit(ctx, &orgID, "manager_permissions.update", "org_member", memberID.String(), map[string]any{
		"can_manage_agents":        perms.CanManageAgents,
		"can_manage_phone_numbers": perms.CanManagePhoneNumbers,
		"can_edit_service_targets": perms.CanEditServiceTargets,
		"can_view_billing":         perms.CanViewBilling,
	})
	return perms, nil
}

func (s *service) audit(ctx context.Context, orgID *snowflake.ID, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		OrgID:      orgID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   metadata,
	})
}
