package telemetry

import (
	"context"

	"github.com/jcodog/Cleo-Dashboard-sub001/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
)

// InitMeterProvider registers a global MeterProvider whose instruments (the
// otelgin and otelmongo ones included) are exported through reg.
func InitMeterProvider(reg prometheus.Registerer) (*metric.MeterProvider, error) {
	exporter, err := prometheusexporter.New(prometheusexporter.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}

	mp := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Shutdown flushes and stops the providers. Either may be nil.
func Shutdown(ctx context.Context, logger log.Logger, tp *trace.TracerProvider, mp *metric.MeterProvider) {
	if tp != nil {
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error(ctx, "TracerProvider shutdown failed", err)
		}
	}
	if mp != nil {
		if err := mp.Shutdown(ctx); err != nil {
			logger.Error(ctx, "MeterProvider shutdown failed", err)
		}
	}
}
