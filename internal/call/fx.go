package call

import (
	"github.com/smallbiznis/switchboard/internal/call/repository"
	"github.com/smallbiznis/switchboard/internal/call/service"
	"go.uber.org/fx"
)

var Module = fx.Module("call.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.New),
)
