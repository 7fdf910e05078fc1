package payment

import (
	"github.com/smallbiznis/fanvault/internal/clock"
	"github.com/smallbiznis/fanvault/internal/config"
	paymentdomain "github.com/smallbiznis/fanvault/internal/payment/domain"
	"github.com/smallbiznis/fanvault/internal/payment/gateway/sim"
	"github.com/smallbiznis/fanvault/internal/payment/repository"
	paymentservice "github.com/smallbiznis/fanvault/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(cfg config.Config, clk clock.Clock) paymentdomain.Gateway {
		return sim.New(sim.Config{
			SuccessRate: cfg.Gateway.SuccessRate,
			Latency:     cfg.Gateway.Latency,
		}, clk, nil)
	}),
	fx.Provide(paymentservice.NewService),
)
