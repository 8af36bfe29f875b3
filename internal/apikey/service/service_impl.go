package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	apikeydomain "github.com/smallbiznis/switchboard/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/switchboard/internal/audit/domain"
	"github.com/smallbiznis/switchboard/internal/audit/masking"
	"github.com/smallbiznis/switchboard/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	apiKeyPrefix        = "sk_"
	apiKeySecretBytes   = 32
	apiKeyVisiblePrefix = 10
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     apikeydomain.Repository
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     apikeydomain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) apikeydomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("apikey.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

// IsAPIKey reports whether a bearer credential looks like an API key rather than a session token.
func IsAPIKey(raw string) bool {
	return strings.HasPrefix(strings.TrimSpace(raw), apiKeyPrefix)
}

func (s *Service) List(ctx context.Context, scope string, orgID *snowflake.ID) ([]apikeydomain.Response, error) {
	if err := validateScope(scope, orgID); err != nil {
		return nil, err
	}

	items, err := s.repo.List(ctx, s.db, scope, orgID)
	if err != nil {
		return nil, err
	}

	resp := make([]apikeydomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req apikeydomain.CreateRequest) (*apikeydomain.SecretResponse, error) {
	if err := validateScope(req.Scope, req.OrgID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apikeydomain.ErrInvalidName
	}

	plain, hash, err := generateAPIKey()
	if err != nil {
		return nil, err
	}

	key := &apikeydomain.APIKey{
		ID:        ulid.Make().String(),
		Scope:     req.Scope,
		OrgID:     req.OrgID,
		Name:      name,
		KeyHash:   hash,
		KeyPrefix: plain[:apiKeyVisiblePrefix],
		CreatedBy: req.CreatedBy,
		CreatedAt: s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, s.db, key); err != nil {
		return nil, err
	}

	s.audit(ctx, key, "api_key.create")
	return &apikeydomain.SecretResponse{Response: toResponse(key), APIKey: plain}, nil
}

func (s *Service) Revoke(ctx context.Context, scope string, orgID *snowflake.ID, id string) error {
	if err := validateScope(scope, orgID); err != nil {
		return err
	}

	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return apikeydomain.ErrInvalidKeyID
	}

	key, err := s.repo.FindByID(ctx, s.db, trimmed)
	if err != nil {
		return err
	}
	if key == nil || key.Scope != scope || !sameOrg(key.OrgID, orgID) {
		return apikeydomain.ErrNotFound
	}

	if err := s.repo.Revoke(ctx, s.db, key.ID, s.clock.Now()); err != nil {
		return err
	}
	s.audit(ctx, key, "api_key.revoke")
	return nil
}

func (s *Service) Verify(ctx context.Context, raw string) (*apikeydomain.APIKey, error) {
	raw = strings.TrimSpace(raw)
	if !IsAPIKey(raw) {
		return nil, apikeydomain.ErrInvalidKey
	}

	key, err := s.repo.FindByHash(ctx, s.db, apikeydomain.HashAPIKey(raw))
	if err != nil {
		return nil, err
	}
	if key == nil || !key.Active() {
		return nil, apikeydomain.ErrInvalidKey
	}

	now := s.clock.Now()
	if err := s.repo.TouchLastUsed(ctx, s.db, key.ID, now); err != nil {
		s.log.Warn("failed to update api key last_used_at", zap.String("key_id", key.ID), zap.Error(err))
	} else {
		key.LastUsedAt = &now
	}
	return key, nil
}

func (s *Service) audit(ctx context.Context, key *apikeydomain.APIKey, action string) {
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		OrgID:      key.OrgID,
		Action:     action,
		TargetType: "api_key",
		TargetID:   key.ID,
		Metadata: map[string]any{
			"name":       key.Name,
			"scope":      key.Scope,
			"key_prefix": masking.MaskSecret(key.KeyPrefix),
		},
	})
}

func validateScope(scope string, orgID *snowflake.ID) error {
	switch scope {
	case apikeydomain.ScopePlatform:
		if orgID != nil {
			return apikeydomain.ErrInvalidScope
		}
		return nil
	case apikeydomain.ScopeOrg:
		if orgID == nil || *orgID == 0 {
			return apikeydomain.ErrInvalidOrganization
		}
		return nil
	default:
		return apikeydomain.ErrInvalidScope
	}
}

func sameOrg(a, b *snowflake.ID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func toResponse(key *apikeydomain.APIKey) apikeydomain.Response {
	return apikeydomain.Response{
		ID:         key.ID,
		Scope:      key.Scope,
		OrgID:      key.OrgID,
		Name:       key.Name,
		KeyPrefix:  key.KeyPrefix,
		CreatedAt:  key.CreatedAt,
		LastUsedAt: key.LastUsedAt,
		RevokedAt:  key.RevokedAt,
	}
}

func generateAPIKey() (string, string, error) {
	secret := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}

	plain := apiKeyPrefix + hex.EncodeToString(secret)
	return plain, apikeydomain.HashAPIKey(plain), nil
}
