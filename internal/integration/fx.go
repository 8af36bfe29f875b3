package integration

import (
	"github.com/smallbiznis/switchboard/internal/integration/repository"
	"github.com/smallbiznis/switchboard/internal/integration/service"
	"go.uber.org/fx"
)

var Module = fx.Module("integration.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.New),
)
