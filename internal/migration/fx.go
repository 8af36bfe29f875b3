package migration

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/config"
	"github.com/smallbiznis/switchboard/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node, log *zap.Logger) error {
		if err := Apply(conn, cfg.DBType); err != nil {
			return err
		}

		if cfg.Bootstrap.AdminEmail == "" || cfg.Bootstrap.AdminPassword == "" {
			return nil
		}
		created, err := seed.EnsurePlatformAdmin(context.Background(), conn, node, seed.Admin{
			Email:    cfg.Bootstrap.AdminEmail,
			Password: cfg.Bootstrap.AdminPassword,
		})
		if err != nil {
			return err
		}
		if created {
			log.Info("bootstrap platform admin created", zap.String("email", strings.ToLower(cfg.Bootstrap.AdminEmail)))
		}
		return nil
	}),
)
