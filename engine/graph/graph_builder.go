package graph

import (
	"github.com/Carmen-Shannon/oxy-gfx/engine/metrics"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
)

// GraphBuilderOption is a functional option applied to a graph during construction via NewGraph.
type GraphBuilderOption func(*graph)

// WithMetrics records recomputes, relinks and rejected edges into reg.
// The registry is also handed to every renderer the graph creates.
//
// Parameters:
//   - reg: the metrics registry
//
// Returns:
//   - GraphBuilderOption: a function that applies the metrics option to a graph
func WithMetrics(reg *metrics.Registry) GraphBuilderOption {
	return func(g *graph) {
		g.metrics = reg
	}
}

// WithRendererOptions appends options to every renderer the graph creates.
//
// Parameters:
//   - options: renderer builder options
//
// Returns:
//   - GraphBuilderOption: a function that applies the renderer options to a graph
func WithRendererOptions(options ...renderer.RendererBuilderOption) GraphBuilderOption {
	return func(g *graph) {
		g.rendererOptions = append(g.rendererOptions, options...)
	}
}
