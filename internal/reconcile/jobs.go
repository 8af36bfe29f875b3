package reconcile

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/clock"
	"github.com/smallbiznis/switchboard/internal/config"
	"github.com/smallbiznis/switchboard/internal/reconcile/domain"
	"github.com/smallbiznis/switchboard/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultJobListLimit = 50
	maxJobListLimit     = 200
)

type JobStart struct {
	OrgID    *snowflake.ID
	Resource Resource
	Metadata map[string]any
}

type JobHandle struct {
	ID        snowflake.ID
	StartedAt time.Time
	Metadata  map[string]any
}

type JobResult struct {
	Records int
	Err     error
}

type JobFilter struct {
	OrgID *snowflake.ID
	Limit int
}

// JobTracker records the lifecycle of each sync. Implementations never fail
// a sync: write errors are logged by the tracker itself.
type JobTracker interface {
	Start(ctx context.Context, start JobStart) (JobHandle, error)
	Finish(ctx context.Context, handle JobHandle, result JobResult)
	List(ctx context.Context, filter JobFilter) ([]domain.SyncJob, error)
}

type TrackerParams struct {
	fx.In

	DB    *gorm.DB
	Cfg   config.Config
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

// NewJobTracker returns a GormTracker, or a NoopTracker when tracking is
// disabled or the sync_jobs table does not exist.
func NewJobTracker(ctx context.Context, p TrackerParams) JobTracker {
	log := p.Log.Named("reconcile.jobs")
	if !p.Cfg.Sync.JobTracking {
		log.Info("sync job tracking disabled")
		return NoopTracker{}
	}

	err := p.DB.WithContext(ctx).Exec("SELECT 1 FROM sync_jobs LIMIT 1").Error
	if db.IsUndefinedTable(err) {
		log.Warn("sync_jobs table missing; sync jobs will not be recorded")
		return NoopTracker{}
	}
	if err != nil {
		log.Warn("sync_jobs check failed", zap.Error(err))
	}
	return &GormTracker{db: p.DB, log: log, genID: p.GenID, clock: p.Clock}
}

func provideJobTracker(p TrackerParams) JobTracker {
	return NewJobTracker(context.Background(), p)
}

type GormTracker struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func (t *GormTracker) Start(ctx context.Context, start JobStart) (JobHandle, error) {
	meta := map[string]any{"resource": string(start.Resource)}
	for k, v := range start.Metadata {
		meta[k] = v
	}
	handle := JobHandle{ID: t.genID.Generate(), StartedAt: t.clock.Now(), Metadata: meta}

	job := domain.SyncJob{
		ID:              handle.ID,
		OrgID:           start.OrgID,
		IntegrationType: integrationType,
		Status:          domain.JobRunning,
		StartedAt:       handle.StartedAt,
		Metadata:        datatypes.JSONMap(meta),
	}
	if err := t.db.WithContext(ctx).Create(&job).Error; err != nil {
		t.log.Warn("failed to record sync job start", zap.String("resource", string(start.Resource)), zap.Error(err))
		return handle, err
	}
	return handle, nil
}

func (t *GormTracker) Finish(ctx context.Context, handle JobHandle, result JobResult) {
	now := t.clock.Now()
	updates := map[string]any{
		"status":            domain.JobCompleted,
		"completed_at":      now,
		"records_processed": result.Records,
	}
	if result.Err != nil {
		updates["status"] = domain.JobFailed
		updates["error_message"] = result.Err.Error()
	}

	// The request context may already be cancelled when a sync fails on it.
	err := t.db.WithContext(context.WithoutCancel(ctx)).
		Model(&domain.SyncJob{}).
		Where("id = ?", handle.ID).
		Updates(updates).Error
	if err != nil {
		t.log.Warn("failed to record sync job result", zap.String("job_id", handle.ID.String()), zap.Error(err))
	}
}

func (t *GormTracker) List(ctx context.Context, filter JobFilter) ([]domain.SyncJob, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultJobListLimit
	}
	limit = min(limit, maxJobListLimit)

	q := t.db.WithContext(ctx).Model(&domain.SyncJob{})
	if filter.OrgID != nil {
		q = q.Where("org_id = ?", *filter.OrgID)
	}
	var jobs []domain.SyncJob
	if err := q.Order("started_at DESC").Order("id DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []domain.SyncJob{}
	}
	return jobs, nil
}

type NoopTracker struct{}

func (NoopTracker) Start(ctx context.Context, start JobStart) (JobHandle, error) {
	return JobHandle{}, nil
}

func (NoopTracker) Finish(ctx context.Context, handle JobHandle, result JobResult) {}

func (NoopTracker) List(ctx context.Context, filter JobFilter) ([]domain.SyncJob, error) {
	return []domain.SyncJob{}, nil
}
