package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/switchboard/internal/audit/domain"
	"github.com/smallbiznis/switchboard/internal/audit/masking"
	"github.com/smallbiznis/switchboard/internal/clock"
	"github.com/smallbiznis/switchboard/internal/config"
	"github.com/smallbiznis/switchboard/internal/integration/domain"
	"github.com/smallbiznis/switchboard/internal/integration/sealer"
	"github.com/smallbiznis/switchboard/internal/mightycall"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Cfg      config.Config
	Repo     domain.Repository
	Clock    clock.Clock
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	repo     domain.Repository
	clock    clock.Clock
	sealer   *sealer.Sealer
	auditSvc auditdomain.Service
}

func New(p Params) (domain.Service, error) {
	log := p.Log.Named("integration.service")

	var s *sealer.Sealer
	if p.Cfg.IntegrationsKey == "" {
		log.Warn("INTEGRATIONS_ENCRYPTION_KEY not set; per-org credentials are disabled")
	} else {
		var err error
		if s, err = sealer.New(p.Cfg.IntegrationsKey); err != nil {
			return nil, err
		}
	}

	return &Service{
		log:      log,
		repo:     p.Repo,
		clock:    p.Clock,
		sealer:   s,
		auditSvc: p.AuditSvc,
	}, nil
}

func (s *Service) Get(ctx context.Context, orgID snowflake.ID) (*domain.View, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	row, err := s.repo.Get(ctx, orgID, domain.TypeMightyCall)
	if err != nil {
		return nil, err
	}
	view := &domain.View{OrgID: orgID, IntegrationType: domain.TypeMightyCall}
	if row == nil {
		return view, nil
	}

	view.Configured = true
	updated := row.UpdatedAt
	view.UpdatedAt = &updated
	if creds := s.open(row); creds != nil {
		view.ClientID = masking.MaskSecret(creds.ClientID)
	}
	return view, nil
}

func (s *Service) Put(ctx context.Context, orgID snowflake.ID, req domain.PutRequest) (*domain.View, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	creds := mightycall.Credentials{
		ClientID:     strings.TrimSpace(req.ClientID),
		ClientSecret: strings.TrimSpace(req.ClientSecret),
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if s.sealer == nil {
		return nil, domain.ErrNotConfigured
	}

	blob, err := s.sealer.Seal(creds)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	row := &domain.OrgIntegration{
		OrgID:                orgID,
		IntegrationType:      domain.TypeMightyCall,
		EncryptedCredentials: blob,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.repo.Upsert(ctx, row); err != nil {
		return nil, err
	}

	s.audit(ctx, orgID, "integration.put", map[string]any{"client_id": masking.MaskSecret(creds.ClientID)})
	return &domain.View{
		OrgID:           orgID,
		IntegrationType: domain.TypeMightyCall,
		Configured:      true,
		ClientID:        masking.MaskSecret(creds.ClientID),
		UpdatedAt:       &now,
	}, nil
}

func (s *Service) Delete(ctx context.Context, orgID snowflake.ID) error {
	if orgID == 0 {
		return domain.ErrInvalidOrganization
	}
	deleted, err := s.repo.Delete(ctx, orgID, domain.TypeMightyCall)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	s.audit(ctx, orgID, "integration.delete", nil)
	return nil
}

func (s *Service) Credentials(ctx context.Context, orgID snowflake.ID) (*mightycall.Credentials, error) {
	if orgID == 0 {
		return nil, nil
	}
	row, err := s.repo.Get(ctx, orgID, domain.TypeMightyCall)
	if err != nil || row == nil {
		return nil, err
	}
	return s.open(row), nil
}

// open returns nil when the row cannot be decrypted; callers then use the
// global credentials.
func (s *Service) open(row *domain.OrgIntegration) *mightycall.Credentials {
	if s.sealer == nil {
		return nil
	}
	var creds mightycall.Credentials
	if err := s.sealer.Open(row.EncryptedCredentials, &creds); err != nil {
		s.log.Warn("failed to decrypt org credentials",
			zap.String("org_id", row.OrgID.String()),
			zap.Error(err),
		)
		return nil
	}
	return &creds
}

func (s *Service) audit(ctx context.Context, orgID snowflake.ID, action string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	id := orgID
	if err := s.auditSvc.Record(ctx, auditdomain.Entry{
		OrgID:      &id,
		Action:     action,
		TargetType: "integration",
		TargetID:   domain.TypeMightyCall,
		Metadata:   metadata,
	}); err != nil {
		s.log.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
