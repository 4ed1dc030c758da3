package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initRendererMetrics() {
	r.FramesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "oxygfx_frames_total",
			Help: "Total number of frames rendered",
		},
		[]string{"renderer"},
	)

	r.FramesSkippedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "oxygfx_frames_skipped_total",
			Help: "Frames skipped because the surface had no texture",
		},
		[]string{"renderer"},
	)

	r.FrameDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oxygfx_frame_duration_seconds",
			Help:    "CPU time spent recording and submitting a frame",
			Buckets: []float64{0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.033, 0.066},
		},
		[]string{"renderer"},
	)

	r.RebuildsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "oxygfx_renderer_rebuilds_total",
			Help: "Total number of renderer resource rebuilds",
		},
		[]string{"reason"}, // resize, invalidated, initial
	)

	r.MaterialUploadsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "oxygfx_material_uploads_total",
			Help: "Total number of material blocks uploaded",
		},
	)

	r.RenderErrorsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "oxygfx_render_errors_total",
			Help: "Total number of fatal renderer errors",
		},
	)

	r.FPS = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "oxygfx_fps",
			Help: "Frames per second over the last profiler window",
		},
	)
}

func (r *Registry) initGraphMetrics() {
	r.RelinksTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "oxygfx_graph_relinks_total",
			Help: "Total number of edge-only graph relinks",
		},
	)

	r.RecomputesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "oxygfx_graph_recomputes_total",
			Help: "Total number of full graph recomputes",
		},
	)

	r.EdgesRejected = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "oxygfx_graph_edges_rejected_total",
			Help: "Edges rejected while replacing the edge set",
		},
		[]string{"reason"}, // type_mismatch, cycle, sink_occupied, invalid
	)

	r.NodesRegistered = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "oxygfx_nodes_registered",
			Help: "Number of nodes currently registered",
		},
	)
}

func (r *Registry) initBridgeMetrics() {
	r.MessagesAppliedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "oxygfx_messages_applied_total",
			Help: "Tick messages applied on the render side",
		},
	)

	r.MessagesDroppedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "oxygfx_messages_dropped_total",
			Help: "Tick messages dropped because the queue was full",
		},
	)

	r.EdgeSetsPublishedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "oxygfx_edge_sets_published_total",
			Help: "Edge sets published by the execution side",
		},
	)
}
