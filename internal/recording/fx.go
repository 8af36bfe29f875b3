package recording

import (
	"github.com/smallbiznis/switchboard/internal/recording/repository"
	"github.com/smallbiznis/switchboard/internal/recording/service"
	"go.uber.org/fx"
)

var Module = fx.Module("recording.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.New),
)
