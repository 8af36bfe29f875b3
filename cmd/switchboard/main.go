package main

import (
	_ "time/tzdata"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/clock"
	"github.com/smallbiznis/switchboard/internal/config"
	"github.com/smallbiznis/switchboard/internal/migration"
	"github.com/smallbiznis/switchboard/internal/observability"
	"github.com/smallbiznis/switchboard/internal/scheduler"
	"github.com/smallbiznis/switchboard/internal/server"
	"github.com/smallbiznis/switchboard/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP API and background sync
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
