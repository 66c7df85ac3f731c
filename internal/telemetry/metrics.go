package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names exposed on the Prometheus scrape endpoint.
const (
	MetricQuotesProcessed    = "sim_quotes_processed_total"
	MetricFillsTotal         = "sim_fills_total"
	MetricForceLiquidations  = "sim_force_liquidations_total"
	MetricTickLatencySeconds = "sim_tick_latency_seconds"
	MetricNetLiquidation     = "sim_net_liquidation_value"
)

// MetricsHolder owns the initialized instruments for one process.
type MetricsHolder struct {
	QuotesProcessed   metric.Int64Counter
	FillsTotal        metric.Int64Counter
	ForceLiquidations metric.Int64Counter
	TickLatency       metric.Float64Histogram
	NetLiquidation    metric.Float64ObservableGauge

	mu            sync.RWMutex
	netLiqBySeries map[string]float64
}

var (
	globalMetrics     *MetricsHolder
	globalMetricsOnce sync.Once
)

// GetGlobalMetrics returns the process-wide MetricsHolder, creating it on
// first use.
func GetGlobalMetrics() *MetricsHolder {
	globalMetricsOnce.Do(func() {
		globalMetrics = &MetricsHolder{netLiqBySeries: make(map[string]float64)}
	})
	return globalMetrics
}

// Init registers every instrument against the given meter. It may be called
// more than once: each call fetches the instruments from meter again and
// overwrites the fields, and registers the net-liquidation gauge callback
// again.
func (h *MetricsHolder) Init(meter metric.Meter) error {
	var err error

	if h.QuotesProcessed, err = meter.Int64Counter(MetricQuotesProcessed,
		metric.WithDescription("Total market-data snapshots consumed by the engine")); err != nil {
		return err
	}
	if h.FillsTotal, err = meter.Int64Counter(MetricFillsTotal,
		metric.WithDescription("Total fills recorded, including force-liquidation fills")); err != nil {
		return err
	}
	if h.ForceLiquidations, err = meter.Int64Counter(MetricForceLiquidations,
		metric.WithDescription("Total engine-initiated force-liquidation fills")); err != nil {
		return err
	}
	if h.TickLatency, err = meter.Float64Histogram(MetricTickLatencySeconds,
		metric.WithDescription("Wall-clock seconds spent processing one engine tick")); err != nil {
		return err
	}
	h.NetLiquidation, err = meter.Float64ObservableGauge(MetricNetLiquidation,
		metric.WithDescription("Last-observed net liquidation value per run"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			h.mu.RLock()
			defer h.mu.RUnlock()
			for run, v := range h.netLiqBySeries {
				o.Observe(v, metric.WithAttributes(attribute.String("run_id", run)))
			}
			return nil
		}),
	)
	return err
}

// ObserveNetLiquidation records the last-seen net liquidation value for a run.
func (h *MetricsHolder) ObserveNetLiquidation(runID string, value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.netLiqBySeries[runID] = value
}
