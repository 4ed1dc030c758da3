package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RecordFrame records a rendered frame and the time it took.
func (r *Registry) RecordFrame(renderer string, duration time.Duration) {
	if r == nil {
		return
	}
	r.FramesTotal.WithLabelValues(renderer).Inc()
	r.FrameDuration.WithLabelValues(renderer).Observe(duration.Seconds())
}

// RecordSkippedFrame records a frame skipped because the surface was unavailable.
func (r *Registry) RecordSkippedFrame(renderer string) {
	if r == nil {
		return
	}
	r.FramesSkippedTotal.WithLabelValues(renderer).Inc()
}

// RecordRebuild records a renderer resource rebuild.
func (r *Registry) RecordRebuild(reason string) {
	if r == nil {
		return
	}
	r.RebuildsTotal.WithLabelValues(reason).Inc()
}

// RecordMaterialUpload records one material block upload.
func (r *Registry) RecordMaterialUpload() {
	if r == nil {
		return
	}
	r.MaterialUploadsTotal.Inc()
}

// RecordRenderError records a renderer becoming unusable.
func (r *Registry) RecordRenderError() {
	if r == nil {
		return
	}
	r.RenderErrorsTotal.Inc()
}

// RecordRelink records an edge-only relink.
func (r *Registry) RecordRelink() {
	if r == nil {
		return
	}
	r.RelinksTotal.Inc()
}

// RecordRecompute records a full graph recompute.
func (r *Registry) RecordRecompute() {
	if r == nil {
		return
	}
	r.RecomputesTotal.Inc()
}

// RecordRejectedEdge records an edge skipped while replacing the edge set.
func (r *Registry) RecordRejectedEdge(reason string) {
	if r == nil {
		return
	}
	r.EdgesRejected.WithLabelValues(reason).Inc()
}

// SetNodesRegistered sets the number of registered nodes.
func (r *Registry) SetNodesRegistered(n int) {
	if r == nil {
		return
	}
	r.NodesRegistered.Set(float64(n))
}

// RecordMessageApplied records a tick message applied on the render side.
func (r *Registry) RecordMessageApplied() {
	if r == nil {
		return
	}
	r.MessagesAppliedTotal.Inc()
}

// RecordMessageDropped records a tick message dropped on a full queue.
func (r *Registry) RecordMessageDropped() {
	if r == nil {
		return
	}
	r.MessagesDroppedTotal.Inc()
}

// RecordEdgeSetPublished records an edge set handed to the render side.
func (r *Registry) RecordEdgeSetPublished() {
	if r == nil {
		return
	}
	r.EdgeSetsPublishedTotal.Inc()
}

// SetFPS sets the frames-per-second gauge.
func (r *Registry) SetFPS(fps float64) {
	if r == nil {
		return
	}
	r.FPS.Set(fps)
}

// Handler returns an HTTP handler serving the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
