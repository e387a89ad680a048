package obs

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MeterConfig controls the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Namespace prefixes every exported series, like the native collectors.
	Namespace string
	// Registerer receives the bridge collector; nil means the default
	// registry served on /metrics.
	Registerer prometheus.Registerer
}

// InitMeter installs a global MeterProvider whose instruments (redisotel
// connection pool stats among them) are exported through the Prometheus
// registry, next to the client_golang collectors.
func InitMeter(ctx context.Context, cfg MeterConfig) (metric.MeterProvider, func(context.Context) error, error) {
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	exporter, err := otelprom.New(
		otelprom.WithRegisterer(reg),
		otelprom.WithNamespace(cfg.Namespace),
		otelprom.WithoutScopeInfo(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("prometheus metric exporter: %w", err)
	}
	res, err := serviceResource(ctx, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, nil, fmt.Errorf("metric resource: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp, mp.Shutdown, nil
}
