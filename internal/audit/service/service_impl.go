package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/switchboard/internal/audit/domain"
	"github.com/smallbiznis/switchboard/internal/audit/masking"
	"github.com/smallbiznis/switchboard/internal/clock"
	obscontext "github.com/smallbiznis/switchboard/internal/observability/context"
	"github.com/smallbiznis/switchboard/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, entry auditdomain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	actorType, actorID := string(entry.ActorType), strings.TrimSpace(entry.ActorID)
	if actorType == "" {
		ctxType, ctxID := obscontext.ActorFromContext(ctx)
		actorType = ctxType
		if actorID == "" {
			actorID = ctxID
		}
	}
	if actorType == "" {
		actorType = string(auditdomain.ActorTypeSystem)
	}

	payload := masking.MaskSecrets(entry.Metadata)
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		if payload == nil {
			payload = map[string]any{}
		}
		payload["request_id"] = requestID
	}

	log := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		OrgID:      entry.OrgID,
		ActorType:  actorType,
		ActorID:    optional(actorID),
		Action:     action,
		TargetType: optional(entry.TargetType),
		TargetID:   optional(entry.TargetID),
		CreatedAt:  s.clock.Now(),
	}
	if payload != nil {
		log.Metadata = datatypes.JSONMap(payload)
	}

	if err := s.repo.Insert(ctx, s.db, &log); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	var cursor *auditdomain.AuditCursor
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		createdAt, _ := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		id, err := snowflake.ParseString(decoded.ID)
		if err != nil || id == 0 {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		cursor = &auditdomain.AuditCursor{ID: id, CreatedAt: createdAt}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		OrgID:  req.OrgID,
		Action: req.Action,
		Cursor: cursor,
		Limit:  limit,
	})
	if err != nil {
		return auditdomain.ListResponse{}, err
	}

	page, info, err := pagination.Trim(items, limit, func(item auditdomain.AuditLog) pagination.Cursor {
		return pagination.Cursor{ID: item.ID.String(), CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano)}
	})
	if err != nil {
		return auditdomain.ListResponse{}, err
	}
	if page == nil {
		page = []auditdomain.AuditLog{}
	}
	return auditdomain.ListResponse{PageInfo: info, AuditLogs: page}, nil
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
