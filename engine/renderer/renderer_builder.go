package renderer

import (
	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-gfx/engine/metrics"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithLabel names the renderer in logs, metrics and GPU resource labels.
//
// Parameters:
//   - label: the renderer name
//
// Returns:
//   - RendererBuilderOption: a function that applies the label option to a renderer
func WithLabel(label string) RendererBuilderOption {
	return func(r *renderer) {
		r.label = label
	}
}

// WithMetrics records frames, rebuilds and material uploads into reg.
//
// Parameters:
//   - reg: the metrics registry, nil disables recording
//
// Returns:
//   - RendererBuilderOption: a function that applies the metrics option to a renderer
func WithMetrics(reg *metrics.Registry) RendererBuilderOption {
	return func(r *renderer) {
		r.metrics = reg
	}
}

// WithWorkerPool packs material blocks on a pool shared with other renderers.
// The renderer does not stop a pool it was given.
//
// Parameters:
//   - pool: the worker pool
//
// Returns:
//   - RendererBuilderOption: a function that applies the worker pool option to a renderer
func WithWorkerPool(pool worker.DynamicWorkerPool) RendererBuilderOption {
	return func(r *renderer) {
		r.pool = pool
	}
}

// WithWorkers sets the size of the renderer's own worker pool. Ignored with WithWorkerPool.
//
// Parameters:
//   - n: the number of workers
//
// Returns:
//   - RendererBuilderOption: a function that applies the worker count option to a renderer
func WithWorkers(n int) RendererBuilderOption {
	return func(r *renderer) {
		if n > 0 {
			r.workers = n
		}
	}
}
