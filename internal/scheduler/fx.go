package scheduler

import (
	"context"

	"github.com/smallbiznis/switchboard/internal/config"
	phonenumberdomain "github.com/smallbiznis/switchboard/internal/phonenumber/domain"
	"github.com/smallbiznis/switchboard/internal/reconcile"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(
		func(e *reconcile.Engine) Syncer { return e },
		func(s phonenumberdomain.Service) OrgLister { return s },
		func(cfg config.Config) config.RuntimeConfig { return cfg.Runtime },
		New,
	),
	fx.Invoke(NewScheduler),
)

func NewScheduler(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, sched *Scheduler) {
	if !cfg.Sync.SchedulerEnabled {
		log.Info("sync scheduler disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				sched.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
