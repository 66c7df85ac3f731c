// Package telemetry wires the engine's tick-level tracing and metrics into
// OpenTelemetry, with an optional Prometheus scrape endpoint.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracetype "go.opentelemetry.io/otel/trace"
)

// Telemetry owns the process-wide tracer/meter/logger providers for one
// simulation run.
type Telemetry struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
	lp *sdklog.LoggerProvider
}

// Setup installs a tracer provider, a Prometheus-backed meter provider, and
// a no-exporter (in-process only) log provider, then registers them as the
// OTel globals so GetTracer/GetMeter resolve anywhere in the process.
func Setup(serviceName string) (*Telemetry, error) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	metricExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricExporter))
	otel.SetMeterProvider(mp)

	lp := sdklog.NewLoggerProvider()
	global.SetLoggerProvider(lp)

	if err := GetGlobalMetrics().Init(mp.Meter(serviceName)); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return &Telemetry{tp: tp, mp: mp, lp: lp}, nil
}

// Shutdown flushes and stops every provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if err := t.tp.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := t.mp.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := t.lp.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("telemetry shutdown errors: %v", errs)
	}
	return nil
}

// GetTracer returns a tracer for the given component name.
func GetTracer(name string) tracetype.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}

// GetMeter returns a meter for the given component name.
func GetMeter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}
