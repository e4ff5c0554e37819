// Package metrics provides OTel meter-based instrumentation for the storage
// layer: per-operation counters and latency histograms plus repository cache
// hit/miss/eviction counters.
package metrics

import (
	"go.opentelemetry.io/otel/metric"

	"github.com/classhive/classhive/internal/infra/storage"
	"github.com/classhive/classhive/internal/infra/storage/registry"
)

const namespace = "classhive"

// Registry provides access to all metric implementations.
type Registry struct {
	Storage    storage.Metrics
	RepoLookup registry.Metrics
}

// NewRegistry creates all metrics implementations from a single meter
// provider so instrumentation configuration stays consistent.
func NewRegistry(mp metric.MeterProvider) (*Registry, error) {
	storageMetrics, err := newStorageMetrics(mp)
	if err != nil {
		return nil, err
	}

	return &Registry{
		Storage:    storageMetrics,
		RepoLookup: storageMetrics,
	}, nil
}
