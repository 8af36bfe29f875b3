package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/clock"
	"github.com/smallbiznis/switchboard/internal/config"
	"github.com/smallbiznis/switchboard/internal/mightycall"
	"github.com/smallbiznis/switchboard/internal/ratelimit"
	"github.com/smallbiznis/switchboard/internal/reconcile"
	"github.com/smallbiznis/switchboard/internal/scheduler/guard"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependencies")

// Syncer runs one provider sync.
type Syncer interface {
	Sync(ctx context.Context, resource reconcile.Resource, orgID *snowflake.ID, rng mightycall.DateRange) (reconcile.Result, error)
}

// OrgLister lists the orgs that own at least one phone number.
type OrgLister interface {
	OrgIDsWithNumbers(ctx context.Context) ([]snowflake.ID, error)
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Syncer     Syncer
	Orgs       OrgLister
	Schedule   *config.SyncScheduleHolder
	Runtime    config.RuntimeConfig
	Locker     *ratelimit.Locker `optional:"true"`
	Shutdowner fx.Shutdowner     `optional:"true"`
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     Config `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	syncer     Syncer
	orgs       OrgLister
	schedule   *config.SyncScheduleHolder
	runtime    config.RuntimeConfig
	locker     *ratelimit.Locker
	shutdowner fx.Shutdowner
	genID      *snowflake.Node
	clock      clock.Clock
}

// TickResult summarizes one scheduler tick.
type TickResult struct {
	Skipped  bool
	Runs     int
	Failures int
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Syncer == nil || p.Orgs == nil || p.Schedule == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		syncer:     p.Syncer,
		orgs:       p.Orgs,
		schedule:   p.Schedule,
		runtime:    p.Runtime,
		locker:     p.Locker,
		shutdowner: p.Shutdowner,
		genID:      p.GenID,
		clock:      p.Clock,
	}, nil
}

// RunOnce performs one tick: every configured resource, for every org that
// has numbers. A failing org does not stop the others.
func (s *Scheduler) RunOnce(parent context.Context) (TickResult, error) {
	schedule := s.schedule.Get()

	locked, err := s.acquireTick(parent, schedule.Interval)
	if err != nil {
		return TickResult{Skipped: true}, err
	}
	if !locked {
		s.log.Debug("scheduler tick held by another replica")
		return TickResult{Skipped: true}, nil
	}

	now := s.clock.Now()
	rng, err := reconcile.ResolveRange(now.AddDate(0, 0, -schedule.LookbackDays).Format(time.DateOnly), "", now)
	if err != nil {
		return TickResult{}, err
	}

	var (
		result TickResult
		orgIDs []snowflake.ID
		listed bool
		jobErr error
	)
	for _, raw := range schedule.Resources {
		resource, err := reconcile.ParseResource(raw)
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			continue
		}

		if !resource.OrgScoped() {
			result.Runs++
			if err := s.runJob(parent, string(resource), 0, schedule.JobTimeout, func(ctx context.Context) error {
				_, err := s.syncer.Sync(ctx, resource, nil, rng)
				return err
			}); err != nil {
				result.Failures++
				jobErr = errors.Join(jobErr, err)
			}
			continue
		}

		if !listed {
			orgIDs, err = s.orgs.OrgIDsWithNumbers(parent)
			if err != nil {
				return result, errors.Join(jobErr, err)
			}
			listed = true
		}
		for _, orgID := range orgIDs {
			result.Runs++
			if err := s.runJob(parent, string(resource), orgID, schedule.JobTimeout, func(ctx context.Context) error {
				_, err := s.syncer.Sync(ctx, resource, &orgID, rng)
				return err
			}); err != nil {
				result.Failures++
				jobErr = errors.Join(jobErr, err)
			}
		}
	}
	return result, jobErr
}

// RunForever ticks until ctx is done. The interval is re-read after every
// tick so schedule reloads apply without a restart.
func (s *Scheduler) RunForever(ctx context.Context) {
	for {
		if s.tick(ctx) {
			return
		}

		timer := time.NewTimer(s.schedule.Get().Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// tick runs one guarded RunOnce and reports whether the loop must stop.
func (s *Scheduler) tick(ctx context.Context) bool {
	err := guard.Do(func() error {
		_, err := s.RunOnce(ctx)
		return err
	})

	var pe *guard.PanicError
	if !errors.As(err, &pe) {
		if err != nil && ctx.Err() == nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		return false
	}

	s.log.Error("scheduler panic",
		zap.Any("panic", pe.Value),
		zap.ByteString("stack", pe.Stack),
		zap.Bool("skip_fatal_signal_exit", s.runtime.SkipFatalSignalExit),
	)
	if s.runtime.SkipFatalSignalExit {
		return false
	}
	if s.shutdowner != nil {
		if err := s.shutdowner.Shutdown(fx.ExitCode(1)); err != nil {
			s.log.Error("scheduler shutdown failed", zap.Error(err))
		}
	}
	return true
}

func (s *Scheduler) acquireTick(ctx context.Context, interval time.Duration) (bool, error) {
	if s.locker == nil {
		return true, nil
	}
	_, ok, err := s.locker.TryLock(ctx, s.cfg.LockKey, s.cfg.lockTTL(interval))
	if errors.Is(err, ratelimit.ErrLockNotConfigured) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("scheduler lock: %w", err)
	}
	return ok, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	orgID snowflake.ID,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	ctx := parent
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}

	ctx, run := s.startJobRun(ctx, name, orgID)
	s.logJobStart(ctx, run)

	err := fn(ctx)
	if err != nil {
		run.IncError()
	} else {
		run.AddProcessed(1)
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	// A job deadline is soft: the next tick retries.
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	s.logSchedulerError(ctx, "scheduler.job.failed", name, err)
	return fmt.Errorf("%s: %w", name, err)
}
