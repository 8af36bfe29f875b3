package phonenumber

import (
	"github.com/smallbiznis/switchboard/internal/phonenumber/repository"
	"github.com/smallbiznis/switchboard/internal/phonenumber/service"
	"go.uber.org/fx"
)

var Module = fx.Module("phonenumber.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.New),
)
