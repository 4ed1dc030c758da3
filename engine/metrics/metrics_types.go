// Package metrics exposes the engine's Prometheus metrics. Every recording method is safe
// to call on a nil *Registry, so components take a registry without requiring one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics of the engine.
type Registry struct {
	// Renderer metrics
	FramesTotal          *prometheus.CounterVec
	FramesSkippedTotal   *prometheus.CounterVec
	FrameDuration        *prometheus.HistogramVec
	RebuildsTotal        *prometheus.CounterVec
	MaterialUploadsTotal prometheus.Counter
	RenderErrorsTotal    prometheus.Counter

	// Graph metrics
	RelinksTotal    prometheus.Counter
	RecomputesTotal prometheus.Counter
	EdgesRejected   *prometheus.CounterVec
	NodesRegistered prometheus.Gauge

	// Bridge metrics
	MessagesAppliedTotal   prometheus.Counter
	MessagesDroppedTotal   prometheus.Counter
	EdgeSetsPublishedTotal prometheus.Counter

	// Engine metrics
	FPS prometheus.Gauge

	registry *prometheus.Registry
}

// NewRegistry creates a registry with every metric initialized.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initRendererMetrics()
	r.initGraphMetrics()
	r.initBridgeMetrics()

	return r
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.registry
}
