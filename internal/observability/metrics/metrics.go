package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	charges  metric.Int64Counter
	unlocks  metric.Int64Counter
	renewals metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported metrics exporter protocol %q", protocol)
	}
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "fanvault"
	}
	meter := provider.Meter(name)

	charges, err := meter.Int64Counter("fanvault_charges_total",
		metric.WithDescription("Payment charges by target and outcome."))
	if err != nil {
		return nil, err
	}
	unlocks, err := meter.Int64Counter("fanvault_message_unlocks_total",
		metric.WithDescription("Completed pay-per-view message unlocks."))
	if err != nil {
		return nil, err
	}
	renewals, err := meter.Int64Counter("fanvault_renewals_total",
		metric.WithDescription("Membership renewal attempts by result."))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		charges:  charges,
		unlocks:  unlocks,
		renewals: renewals,
	}, nil
}

func (m *Metrics) RecordCharge(ctx context.Context, target, status string) {
	if m == nil {
		return
	}
	m.charges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("target", target),
		attribute.String("status", status),
	))
}

func (m *Metrics) RecordUnlock(ctx context.Context) {
	if m == nil {
		return
	}
	m.unlocks.Add(ctx, 1)
}

func (m *Metrics) RecordRenewal(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.renewals.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
	))
}
