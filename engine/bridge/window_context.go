package bridge

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gfx/engine/graph"
	"github.com/Carmen-Shannon/oxy-gfx/engine/metrics"
	"github.com/Carmen-Shannon/oxy-gfx/engine/node"
)

// WindowContext is the render side of the bridge. It owns the graph: every method must be
// called from the goroutine that renders.
type WindowContext struct {
	graph   graph.Graph
	exec    *ExecContext
	api     gpu.API
	metrics *metrics.Registry
}

// NewWindowContext creates the render side of a bridge.
//
// Parameters:
//   - g: the graph to mutate
//   - exec: the scheduler side the messages and edges come from
//   - api: the graphics API outputs are created with
//   - reg: metrics registry, may be nil
//
// Returns:
//   - *WindowContext: the new context
func NewWindowContext(g graph.Graph, exec *ExecContext, api gpu.API, reg *metrics.Registry) *WindowContext {
	return &WindowContext{graph: g, exec: exec, api: api, metrics: reg}
}

// Graph returns the graph the context mutates.
func (w *WindowContext) Graph() graph.Graph {
	return w.graph
}

// Exec returns the scheduler side of the bridge.
func (w *WindowContext) Exec() *ExecContext {
	return w.exec
}

// RegisterNode adds n to the graph and recomputes the outputs.
//
// Parameters:
//   - ctx: carries the trace of the caller
//   - n: the node to register
//
// Returns:
//   - node.ID: the assigned id, valid even when the recompute failed
//   - error: output setup failures
func (w *WindowContext) RegisterNode(ctx context.Context, n node.Node) (node.ID, error) {
	id := w.graph.AddNode(n)
	if err := w.graph.SetupOutputs(ctx, w.api); err != nil {
		return id, fmt.Errorf("bridge: register %s: %w", n.Label(), err)
	}
	return id, nil
}

// UnregisterNode removes a node with its edges, recomputes the outputs, then releases the node.
// Unknown ids are ignored.
//
// Parameters:
//   - ctx: carries the trace of the caller
//   - id: the node to remove
//
// Returns:
//   - error: output setup failures
func (w *WindowContext) UnregisterNode(ctx context.Context, id node.ID) error {
	n, ok := w.graph.RemoveNode(id)
	if !ok {
		return nil
	}
	err := w.graph.SetupOutputs(ctx, w.api)
	n.Release()
	if err != nil {
		return fmt.Errorf("bridge: unregister %s: %w", n.Label(), err)
	}
	return nil
}

// Tick applies every queued message, then swaps in the published edges if they changed.
//
// Parameters:
//   - ctx: carries the trace of the caller
//
// Returns:
//   - int: the number of messages applied
//   - bool: true if the graph was relinked
func (w *WindowContext) Tick(ctx context.Context) (int, bool) {
	applied := w.exec.Drain(w.apply)

	set, changed := w.exec.TakeEdges()
	if !changed {
		return applied, false
	}
	installed := w.graph.ReplaceEdges(set)
	if installed != set.Len() {
		common.Logger().Debug("published edges skipped", "published", set.Len(), "installed", installed)
	}
	w.graph.RelinkGraph(ctx)
	return applied, true
}

// apply writes the values of m into the node it targets.
func (w *WindowContext) apply(m Message) {
	n, ok := w.graph.Node(m.Node)
	if !ok {
		common.Logger().Debug("message for unknown node", "node", m.Node)
		return
	}
	n.Process(m.Token)
	for port, batch := range m.Inputs {
		for _, v := range batch {
			if v.IsAudio() {
				n.SetAudio(port, v.Audio)
				continue
			}
			n.SetValue(port, v.Value)
		}
	}
	w.metrics.RecordMessageApplied()
}

// Render draws one frame on every output of the graph.
func (w *WindowContext) Render(ctx context.Context) error {
	return w.graph.Render(ctx)
}
