package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/mightycall"
	obscontext "github.com/smallbiznis/switchboard/internal/observability/context"
	obslogger "github.com/smallbiznis/switchboard/internal/observability/logger"
	"go.uber.org/zap"
)

type jobRun struct {
	job            string
	runID          string
	orgID          snowflake.ID
	startedAt      time.Time
	processedCount int
	errorCount     int
}

func (r *jobRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.processedCount += count
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.errorCount++
}

func (s *Scheduler) startJobRun(ctx context.Context, job string, orgID snowflake.ID) (context.Context, *jobRun) {
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		orgID:     orgID,
		startedAt: s.clock.Now(),
	}
	return s.withLogContext(ctx, orgID), run
}

func (s *Scheduler) withLogContext(ctx context.Context, orgID snowflake.ID) context.Context {
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	if orgID != 0 {
		ctx = obscontext.WithOrgID(ctx, orgID.String())
	}
	return ctx
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	s.logger(ctx).Debug("scheduler.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.processedCount),
		zap.Int("error_count", run.errorCount),
	}
	log := s.logger(ctx)
	if run.errorCount > 0 {
		log.Warn("scheduler.job.finish", fields...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}

func (s *Scheduler) logSchedulerError(ctx context.Context, msg, job string, err error) {
	if err == nil {
		return
	}
	s.logger(ctx).Error(msg,
		zap.String("job", job),
		zap.String("error_type", errorType(err)),
		zap.Error(err),
	)
}

func errorType(err error) string {
	switch {
	case mightycall.IsUpstream(err):
		return "upstream"
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "internal"
	}
}
