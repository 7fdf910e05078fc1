package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fanvault/internal/clock"
	"github.com/smallbiznis/fanvault/internal/config"
	"github.com/smallbiznis/fanvault/internal/logger"
	"github.com/smallbiznis/fanvault/internal/membership"
	"github.com/smallbiznis/fanvault/internal/message"
	"github.com/smallbiznis/fanvault/internal/migration"
	"github.com/smallbiznis/fanvault/internal/observability"
	"github.com/smallbiznis/fanvault/internal/payment"
	"github.com/smallbiznis/fanvault/internal/plan"
	"github.com/smallbiznis/fanvault/internal/scheduler"
	"github.com/smallbiznis/fanvault/internal/server"
	"github.com/smallbiznis/fanvault/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		plan.Module,
		payment.Module,
		membership.Module,
		message.Module,
		scheduler.Module,

		// HTTP surface
		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Invoke(func(s *server.Server) {
			s.RegisterRoutes()
		}),
		fx.Invoke(server.RunHTTP),
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
