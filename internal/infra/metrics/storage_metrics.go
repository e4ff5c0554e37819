package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/classhive/classhive/internal/infra/storage"
	"github.com/classhive/classhive/internal/infra/storage/registry"
)

var (
	_ storage.Metrics  = (*storageMetrics)(nil)
	_ registry.Metrics = (*storageMetrics)(nil)
)

type storageMetrics struct {
	// Executor round trips.
	operationsTotal   metric.Int64Counter
	operationErrors   metric.Int64Counter
	operationDuration metric.Float64Histogram

	// Repository cache.
	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	cacheEvictions metric.Int64Counter
}

// newStorageMetrics creates a new storageMetrics instance.
func newStorageMetrics(mp metric.MeterProvider) (*storageMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(storageMetrics)
	var err error

	if m.operationsTotal, err = meter.Int64Counter(
		"storage_operations_total",
		metric.WithDescription("Total number of storage operations"),
	); err != nil {
		return nil, err
	}

	if m.operationErrors, err = meter.Int64Counter(
		"storage_operation_errors_total",
		metric.WithDescription("Total number of failed storage operations"),
	); err != nil {
		return nil, err
	}

	if m.operationDuration, err = meter.Float64Histogram(
		"storage_operation_duration_seconds",
		metric.WithDescription("Duration of storage operations in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.cacheHits, err = meter.Int64Counter(
		"repository_cache_hits_total",
		metric.WithDescription("Total number of repository cache hits"),
	); err != nil {
		return nil, err
	}

	if m.cacheMisses, err = meter.Int64Counter(
		"repository_cache_misses_total",
		metric.WithDescription("Total number of repository cache misses"),
	); err != nil {
		return nil, err
	}

	if m.cacheEvictions, err = meter.Int64Counter(
		"repository_cache_evictions_total",
		metric.WithDescription("Total number of repositories evicted from the cache"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *storageMetrics) ObserveOperation(ctx context.Context, table, op string, d time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("operation", op),
	)

	m.operationsTotal.Add(ctx, 1, attrs)
	m.operationDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.operationErrors.Add(ctx, 1, attrs)
	}
}

func (m *storageMetrics) ObserveLookup(kind string, hit bool) {
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	if hit {
		m.cacheHits.Add(context.Background(), 1, attrs)
		return
	}
	m.cacheMisses.Add(context.Background(), 1, attrs)
}

func (m *storageMetrics) ObserveEviction(count int64) {
	m.cacheEvictions.Add(context.Background(), count)
}
