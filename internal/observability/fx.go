package observability

import (
	"github.com/smallbiznis/fanvault/internal/config"
	"github.com/smallbiznis/fanvault/internal/observability/metrics"
	"go.uber.org/fx"
)

func provideMetricsConfig(cfg config.Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.Metrics.Enabled,
		ExporterEndpoint: cfg.Metrics.ExporterEndpoint,
		ExporterProtocol: cfg.Metrics.ExporterProtocol,
		ServiceName:      cfg.AppName,
	}
}

var Module = fx.Module("observability",
	fx.Provide(
		provideMetricsConfig,
		metrics.NewProvider,
		metrics.New,
	),
)
