package migration

import (
	membershipdomain "github.com/smallbiznis/fanvault/internal/membership/domain"
	messagedomain "github.com/smallbiznis/fanvault/internal/message/domain"
	paymentdomain "github.com/smallbiznis/fanvault/internal/payment/domain"
	plandomain "github.com/smallbiznis/fanvault/internal/plan/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		// The versioned SQL migrations target postgres. Other dialects
		// (sqlite for local development, mysql) fall back to AutoMigrate.
		if conn.Dialector.Name() != "postgres" {
			return conn.AutoMigrate(
				&plandomain.Plan{},
				&membershipdomain.Membership{},
				&paymentdomain.Attempt{},
				&messagedomain.Message{},
				&messagedomain.Unlock{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
