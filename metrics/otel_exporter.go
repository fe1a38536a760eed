package metrics

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter exposes the collector, queue and ledger as OpenTelemetry instruments
// read through a Prometheus exporter
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	registry      *promclient.Registry

	collector *Collector
	queue     StatusCounter
	ledger    OutcomeCounter

	meter metric.Meter
}

// NewOTelExporter creates an exporter. queue and ledger may be nil.
func NewOTelExporter(collector *Collector, queue StatusCounter, ledger OutcomeCounter) (*OTelExporter, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		registry:      registry,
		collector:     collector,
		queue:         queue,
		ledger:        ledger,
		meter: meterProvider.Meter(
			"storesync",
			metric.WithInstrumentationVersion("1.0.0"),
		),
	}

	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}
	return oe, nil
}

func (oe *OTelExporter) registerInstruments() error {
	if _, err := oe.meter.Int64ObservableCounter(
		"storesync.api.calls",
		metric.WithDescription("Outbound commerce API calls by result"),
		metric.WithUnit("{calls}"),
		metric.WithInt64Callback(oe.observeAPICalls),
	); err != nil {
		return fmt.Errorf("creating api calls counter: %w", err)
	}

	if _, err := oe.meter.Float64ObservableGauge(
		"storesync.api.latency.average",
		metric.WithDescription("Average latency of the recent outbound API calls"),
		metric.WithUnit("ms"),
		metric.WithFloat64Callback(oe.observeLatency),
	); err != nil {
		return fmt.Errorf("creating latency gauge: %w", err)
	}

	if _, err := oe.meter.Int64ObservableGauge(
		"storesync.health",
		metric.WithDescription("1 for the current health state of the outbound API connection"),
		metric.WithInt64Callback(oe.observeHealth),
	); err != nil {
		return fmt.Errorf("creating health gauge: %w", err)
	}

	if _, err := oe.meter.Int64ObservableCounter(
		"storesync.sync.orders",
		metric.WithDescription("Order syncs by result"),
		metric.WithUnit("{orders}"),
		metric.WithInt64Callback(oe.observeOrderSyncs),
	); err != nil {
		return fmt.Errorf("creating order sync counter: %w", err)
	}

	if _, err := oe.meter.Int64ObservableCounter(
		"storesync.sync.products",
		metric.WithDescription("Products synced"),
		metric.WithUnit("{products}"),
		metric.WithInt64Callback(oe.observeProductSyncs),
	); err != nil {
		return fmt.Errorf("creating product sync counter: %w", err)
	}

	if oe.queue != nil {
		if _, err := oe.meter.Int64ObservableGauge(
			"storesync.queue.items",
			metric.WithDescription("Sync queue items by status"),
			metric.WithUnit("{items}"),
			metric.WithInt64Callback(oe.observeQueue),
		); err != nil {
			return fmt.Errorf("creating queue gauge: %w", err)
		}
	}

	if oe.ledger != nil {
		if _, err := oe.meter.Int64ObservableGauge(
			"storesync.webhook.ledger",
			metric.WithDescription("Idempotency ledger records by outcome"),
			metric.WithUnit("{deliveries}"),
			metric.WithInt64Callback(oe.observeLedger),
		); err != nil {
			return fmt.Errorf("creating ledger gauge: %w", err)
		}
	}

	return nil
}

func (oe *OTelExporter) observeAPICalls(_ context.Context, observer metric.Int64Observer) error {
	r := oe.collector.Report()
	observer.Observe(r.APICalls-r.APIErrors, metric.WithAttributes(attribute.String("result", "success")))
	observer.Observe(r.APIErrors, metric.WithAttributes(attribute.String("result", "error")))
	return nil
}

func (oe *OTelExporter) observeLatency(_ context.Context, observer metric.Float64Observer) error {
	observer.Observe(oe.collector.Report().AverageLatencyMs)
	return nil
}

func (oe *OTelExporter) observeHealth(_ context.Context, observer metric.Int64Observer) error {
	current := oe.collector.Health()
	for _, h := range []Health{Healthy, Degraded, Unhealthy} {
		var v int64
		if h == current {
			v = 1
		}
		observer.Observe(v, metric.WithAttributes(attribute.String("state", h.String())))
	}
	return nil
}

func (oe *OTelExporter) observeOrderSyncs(_ context.Context, observer metric.Int64Observer) error {
	r := oe.collector.Report()
	observer.Observe(r.OrdersSynced, metric.WithAttributes(attribute.String("result", "success")))
	observer.Observe(r.OrdersFailed, metric.WithAttributes(attribute.String("result", "error")))
	return nil
}

func (oe *OTelExporter) observeProductSyncs(_ context.Context, observer metric.Int64Observer) error {
	observer.Observe(oe.collector.Report().ProductsSynced)
	return nil
}

func (oe *OTelExporter) observeQueue(ctx context.Context, observer metric.Int64Observer) error {
	counts, err := oe.queue.StatusCounts(ctx)
	if err != nil {
		return err
	}

	for status, n := range counts {
		observer.Observe(n, metric.WithAttributes(attribute.String("queue.status", status)))
	}
	return nil
}

func (oe *OTelExporter) observeLedger(ctx context.Context, observer metric.Int64Observer) error {
	counts, err := oe.ledger.OutcomeCounts(ctx)
	if err != nil {
		return err
	}

	for outcome, n := range counts {
		observer.Observe(n, metric.WithAttributes(attribute.String("webhook.outcome", outcome)))
	}
	return nil
}

// ServeHTTP returns the Prometheus scrape handler
func (oe *OTelExporter) ServeHTTP() http.Handler {
	return promhttp.HandlerFor(oe.registry, promhttp.HandlerOpts{})
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
