package reconcile

import (
	"github.com/smallbiznis/switchboard/internal/reconcile/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("reconcile",
	fx.Provide(repository.NewRepository),
	fx.Provide(provideJobTracker),
	fx.Provide(NewEngine),
)
