package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/switchboard/internal/audit/domain"
	"github.com/smallbiznis/switchboard/internal/clock"
	"github.com/smallbiznis/switchboard/internal/phonenumber/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Repo     domain.Repository
	GenID    *snowflake.Node
	Clock    clock.Clock
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	repo     domain.Repository
	genID    *snowflake.Node
	clock    clock.Clock
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("phonenumber.service"),
		repo:     p.Repo,
		genID:    p.GenID,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) ListAll(ctx context.Context, unassignedOnly bool) ([]domain.PhoneNumber, error) {
	numbers, err := s.repo.ListAll(ctx, unassignedOnly)
	if err != nil {
		return nil, err
	}
	return orEmpty(numbers), nil
}

func (s *Service) ListForOrg(ctx context.Context, orgID snowflake.ID) ([]domain.PhoneNumber, error) {
	numbers, err := s.repo.ListForOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return orEmpty(numbers), nil
}

func (s *Service) MatchSetForOrg(ctx context.Context, orgID snowflake.ID) (domain.MatchSet, error) {
	numbers, err := s.repo.ListForOrg(ctx, orgID)
	if err != nil {
		return domain.MatchSet{}, err
	}
	return domain.NewMatchSet(numbers), nil
}

func (s *Service) Assign(ctx context.Context, orgID snowflake.ID, ids []snowflake.ID) error {
	ids = dedupe(ids)
	if orgID == 0 || len(ids) == 0 {
		return domain.ErrMissingRequiredFields
	}

	found, err := s.repo.CountExisting(ctx, ids)
	if err != nil {
		return err
	}
	if found != int64(len(ids)) {
		return domain.ErrNotFound
	}

	if err := s.repo.Assign(ctx, orgID, ids, s.clock.Now()); err != nil {
		return err
	}

	targets := make([]string, 0, len(ids))
	for _, id := range ids {
		targets = append(targets, id.String())
	}
	s.log.Info("phone numbers assigned", zap.String("org_id", orgID.String()), zap.Int("count", len(ids)))
	s.audit(ctx, orgID, "phone_number.assign", strings.Join(targets, ","))
	return nil
}

func (s *Service) Unassign(ctx context.Context, orgID, id snowflake.ID) error {
	if orgID == 0 || id == 0 {
		return domain.ErrMissingRequiredFields
	}
	removed, err := s.repo.Unassign(ctx, orgID, id)
	if err != nil {
		return err
	}
	if removed == 0 {
		return domain.ErrNotFoundForOrg
	}
	s.audit(ctx, orgID, "phone_number.unassign", id.String())
	return nil
}

// Upsert writes provider numbers keyed by external_id. Ownership is never touched.
func (s *Service) Upsert(ctx context.Context, numbers []domain.PhoneNumber) (int, error) {
	now := s.clock.Now()
	byExternal := make(map[string]int, len(numbers))
	rows := make([]domain.PhoneNumber, 0, len(numbers))
	for _, n := range numbers {
		n.Number = strings.TrimSpace(n.Number)
		if n.Number == "" {
			continue
		}
		if n.ExternalID = strings.TrimSpace(n.ExternalID); n.ExternalID == "" {
			n.ExternalID = n.Number
		}
		if n.NumberDigits == "" {
			n.NumberDigits = domain.Digits(n.Number)
		}
		if n.E164 == "" {
			n.E164 = domain.E164(n.Number)
		}
		n.ID = s.genID.Generate()
		n.OrgID = nil
		n.CreatedAt = now
		n.UpdatedAt = now

		if idx, ok := byExternal[n.ExternalID]; ok {
			rows[idx] = n
			continue
		}
		byExternal[n.ExternalID] = len(rows)
		rows = append(rows, n)
	}

	affected, err := s.repo.Upsert(ctx, rows)
	if err != nil {
		return 0, err
	}
	if affected > int64(len(rows)) {
		affected = int64(len(rows))
	}
	return int(affected), nil
}

func (s *Service) OrgIDsWithNumbers(ctx context.Context) ([]snowflake.ID, error) {
	return s.repo.OrgIDsWithNumbers(ctx)
}

func (s *Service) audit(ctx context.Context, orgID snowflake.ID, action, target string) {
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		OrgID:      &orgID,
		Action:     action,
		TargetType: "phone_number",
		TargetID:   target,
	})
}

func dedupe(ids []snowflake.ID) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(ids))
	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func orEmpty(numbers []domain.PhoneNumber) []domain.PhoneNumber {
	if numbers == nil {
		return []domain.PhoneNumber{}
	}
	return numbers
}
