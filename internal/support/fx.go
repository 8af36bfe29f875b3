package support

import (
	"github.com/smallbiznis/switchboard/internal/support/repository"
	"github.com/smallbiznis/switchboard/internal/support/service"
	"go.uber.org/fx"
)

var Module = fx.Module("support.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.New),
)
