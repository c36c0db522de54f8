// Package telemetry sets up OpenTelemetry metrics exported in the Prometheus format.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Config decides whether metrics are collected and under which service name.
type Config struct {
	ServiceName string
	Enabled     bool
}

// Providers holds the initialized OpenTelemetry providers.
// When telemetry is disabled, Meter is a no-op meter and Shutdown does nothing.
type Providers struct {
	Meter metric.Meter

	config        *Config
	meterProvider *sdkmetric.MeterProvider
}

// Init builds the meter provider backed by the Prometheus exporter.
// The exporter registers with the default Prometheus registry, which is what promhttp.Handler serves.
func Init(ctx context.Context, cfg *Config) (*Providers, error) {
	p := &Providers{config: cfg}
	if !cfg.Enabled {
		p.Meter = noop.NewMeterProvider().Meter(cfg.ServiceName)
		return p, nil
	}

	exporter, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(p.meterProvider)
	p.Meter = p.meterProvider.Meter(cfg.ServiceName)
	return p, nil
}

// IsEnabled returns true if metrics are being collected.
func (p *Providers) IsEnabled() bool {
	return p != nil && p.config.Enabled
}

func (p *Providers) ServiceName() string {
	return p.config.ServiceName
}

// Shutdown flushes and stops the meter provider.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil || p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}
