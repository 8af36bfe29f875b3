package auth

import (
	"github.com/smallbiznis/switchboard/internal/auth/repository"
	"github.com/smallbiznis/switchboard/internal/auth/service"
	"github.com/smallbiznis/switchboard/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	session.Module,
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
