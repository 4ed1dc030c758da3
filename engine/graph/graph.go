// Package graph owns the node and edge sets of a video graph, orders them, and keeps one
// renderer per output node in step with the topology.
package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gfx/engine/metrics"
	"github.com/Carmen-Shannon/oxy-gfx/engine/node"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrNodeNotFound   = errors.New("graph: node not found")
	ErrPortOutOfRange = errors.New("graph: port out of range")
	ErrPortDirection  = errors.New("graph: port has the wrong direction")
	ErrTypeMismatch   = errors.New("graph: port types differ")
	ErrCycle          = errors.New("graph: edge would close a cycle")
	ErrSinkOccupied   = errors.New("graph: input port already has a source")
)

// EdgeID is the arena handle of an edge.
type EdgeID int32

// Edge is a live link together with its handle.
type Edge struct {
	ID EdgeID
	Link
}

// output is the backend and renderer of one output node.
type output struct {
	api      gpu.API
	backend  gpu.Backend
	renderer renderer.Renderer
}

// graph is the implementation of the Graph interface.
type graph struct {
	factory gpu.BackendFactory
	metrics *metrics.Registry

	rendererOptions []renderer.RendererBuilderOption

	nodes  map[node.ID]node.Node
	ids    map[node.Node]node.ID
	order  []node.ID
	nextID node.ID

	edges    map[EdgeID]Link
	sinks    map[PortIndex]EdgeID
	nextEdge EdgeID

	outputs map[node.ID]*output
}

// Graph owns the node set and the edge set of a video graph.
//
// A Graph is not safe for concurrent use. Every method is called from the goroutine that
// renders, which also owns every GPU resource the graph's renderers create.
type Graph interface {
	// AddNode registers n and assigns it the next id. Ids are never reused.
	//
	// Parameters:
	//   - n: the node to add
	//
	// Returns:
	//   - node.ID: the assigned id
	AddNode(n node.Node) node.ID

	// RemoveNode unregisters a node and drops every edge touching it. The order of the
	// remaining nodes is kept. Removing an unknown id does nothing.
	//
	// Parameters:
	//   - id: the node to remove
	//
	// Returns:
	//   - node.Node: the removed node
	//   - bool: false when id was not registered
	RemoveNode(id node.ID) (node.Node, bool)

	// Node returns the node registered under id.
	Node(id node.ID) (node.Node, bool)

	// ID returns the id of a registered node.
	ID(n node.Node) (node.ID, bool)

	// IDs returns the registered ids in registration order.
	IDs() []node.ID

	// AddEdge connects an output port to an input port.
	//
	// Parameters:
	//   - source: the node id and output ordinal
	//   - sink: the node id and input ordinal
	//
	// Returns:
	//   - EdgeID: the handle of the new edge
	//   - error: ErrNodeNotFound, ErrPortOutOfRange, ErrPortDirection, ErrTypeMismatch, ErrSinkOccupied or ErrCycle
	AddEdge(source, sink PortIndex) (EdgeID, error)

	// RemoveEdge drops an edge by handle.
	//
	// Returns:
	//   - bool: false when the handle is unknown
	RemoveEdge(id EdgeID) bool

	// Edges returns the live edges ordered by handle.
	Edges() []Edge

	// EdgeSet returns the live links as a set.
	EdgeSet() EdgeSet

	// ReplaceEdges tears every edge down, then installs set in order. Links that cannot be
	// installed are logged and skipped.
	//
	// Parameters:
	//   - set: the new links
	//
	// Returns:
	//   - int: the number of links installed
	ReplaceEdges(set EdgeSet) int

	// Order returns every node id so that each node follows the sources of its inputs.
	// Ties are broken by registration order.
	Order() []node.ID

	// Upstream returns the node feeding an input port of sink.
	Upstream(sink node.Node, port int) (node.Node, bool)

	// SetupOutputs creates a renderer for every output node that has none, stages each
	// output's chain on its renderer, and releases the renderers of removed outputs.
	//
	// Parameters:
	//   - ctx: carries the trace of the caller
	//   - api: the graphics API new backends are created for
	//
	// Returns:
	//   - error: backend creation failures, joined
	SetupOutputs(ctx context.Context, api gpu.API) error

	// RelinkGraph updates the renderers after an edge change. Renderers whose chain kept its
	// nodes only rebind inputs; the others are restaged and rebuilt on their next frame.
	//
	// Parameters:
	//   - ctx: carries the trace of the caller
	RelinkGraph(ctx context.Context)

	// Renderer returns the renderer of an output node.
	Renderer(output node.ID) (renderer.Renderer, bool)

	// Render draws one frame on every output.
	//
	// Returns:
	//   - error: renderer failures, joined
	Render(ctx context.Context) error

	// Release frees every renderer and backend. Nodes are not released.
	Release()
}

var (
	_ Graph             = &graph{}
	_ renderer.Resolver = &graph{}
)

// NewGraph creates an empty graph.
//
// Parameters:
//   - factory: creates the backend of each output window
//   - options: builder options
//
// Returns:
//   - Graph: the new graph
func NewGraph(factory gpu.BackendFactory, options ...GraphBuilderOption) Graph {
	g := &graph{
		factory: factory,
		nodes:   make(map[node.ID]node.Node),
		ids:     make(map[node.Node]node.ID),
		edges:   make(map[EdgeID]Link),
		sinks:   make(map[PortIndex]EdgeID),
		outputs: make(map[node.ID]*output),
	}
	for _, option := range options {
		option(g)
	}
	return g
}

func (g *graph) AddNode(n node.Node) node.ID {
	id := g.nextID
	g.nextID++
	g.nodes[id] = n
	g.ids[n] = id
	g.order = append(g.order, id)
	g.metrics.SetNodesRegistered(len(g.order))
	return id
}

func (g *graph) RemoveNode(id node.ID) (node.Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	for eid, l := range g.edges {
		if l.Source.Node == id || l.Sink.Node == id {
			g.removeEdge(eid)
		}
	}
	delete(g.nodes, id)
	delete(g.ids, n)
	g.order = slices.DeleteFunc(g.order, func(o node.ID) bool { return o == id })
	g.metrics.SetNodesRegistered(len(g.order))
	return n, true
}

func (g *graph) Node(id node.ID) (node.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

func (g *graph) ID(n node.Node) (node.ID, bool) {
	id, ok := g.ids[n]
	return id, ok
}

func (g *graph) IDs() []node.ID {
	return slices.Clone(g.order)
}

func (g *graph) AddEdge(source, sink PortIndex) (EdgeID, error) {
	l := Link{Source: source, Sink: sink}
	if err := g.check(l); err != nil {
		g.metrics.RecordRejectedEdge(rejectReason(err))
		return 0, fmt.Errorf("%w: %s", err, l)
	}

	id := g.nextEdge
	g.nextEdge++
	g.edges[id] = l
	g.sinks[sink] = id
	return id, nil
}

// check validates l against the current node and edge sets.
func (g *graph) check(l Link) error {
	src, ok := g.nodes[l.Source.Node]
	if !ok {
		return ErrNodeNotFound
	}
	dst, ok := g.nodes[l.Sink.Node]
	if !ok {
		return ErrNodeNotFound
	}

	outs, ins := src.Outputs(), dst.Inputs()
	if l.Source.Port < 0 || l.Sink.Port < 0 {
		return ErrPortOutOfRange
	}
	if l.Source.Port >= len(outs) {
		if l.Source.Port < len(src.Inputs()) {
			return ErrPortDirection
		}
		return ErrPortOutOfRange
	}
	if l.Sink.Port >= len(ins) {
		if l.Sink.Port < len(dst.Outputs()) {
			return ErrPortDirection
		}
		return ErrPortOutOfRange
	}
	if outs[l.Source.Port].Type != ins[l.Sink.Port].Type {
		return ErrTypeMismatch
	}
	if _, taken := g.sinks[l.Sink]; taken {
		return ErrSinkOccupied
	}
	if g.reaches(l.Sink.Node, l.Source.Node) {
		return ErrCycle
	}
	return nil
}

// reaches reports whether to is from, or downstream of it.
func (g *graph) reaches(from, to node.ID) bool {
	seen := map[node.ID]bool{from: true}
	stack := []node.ID{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == to {
			return true
		}
		for _, l := range g.edges {
			if l.Source.Node == cur && !seen[l.Sink.Node] {
				seen[l.Sink.Node] = true
				stack = append(stack, l.Sink.Node)
			}
		}
	}
	return false
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrNodeNotFound):
		return "node_not_found"
	case errors.Is(err, ErrPortOutOfRange):
		return "port_out_of_range"
	case errors.Is(err, ErrPortDirection):
		return "port_direction"
	case errors.Is(err, ErrTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, ErrSinkOccupied):
		return "sink_occupied"
	case errors.Is(err, ErrCycle):
		return "cycle"
	default:
		return "other"
	}
}

func (g *graph) RemoveEdge(id EdgeID) bool {
	if _, ok := g.edges[id]; !ok {
		return false
	}
	g.removeEdge(id)
	return true
}

func (g *graph) removeEdge(id EdgeID) {
	l := g.edges[id]
	delete(g.edges, id)
	if g.sinks[l.Sink] == id {
		delete(g.sinks, l.Sink)
	}
}

func (g *graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for id, l := range g.edges {
		out = append(out, Edge{ID: id, Link: l})
	}
	slices.SortFunc(out, func(a, b Edge) int { return int(a.ID) - int(b.ID) })
	return out
}

func (g *graph) EdgeSet() EdgeSet {
	var s EdgeSet
	for _, l := range g.edges {
		s.Insert(l)
	}
	return s
}

func (g *graph) ReplaceEdges(set EdgeSet) int {
	clear(g.edges)
	clear(g.sinks)

	installed := 0
	for _, l := range set.Links() {
		if _, err := g.AddEdge(l.Source, l.Sink); err != nil {
			common.Logger().Warn("edge skipped", "edge", l.String(), "err", err)
			continue
		}
		installed++
	}
	return installed
}

func (g *graph) Order() []node.ID {
	index := make(map[node.ID]int, len(g.order))
	for i, id := range g.order {
		index[id] = i
	}
	deps := make([][]int, len(g.order))
	for _, l := range g.edges {
		sink, ok1 := index[l.Sink.Node]
		src, ok2 := index[l.Source.Node]
		if ok1 && ok2 {
			deps[sink] = append(deps[sink], src)
		}
	}

	sorted, ok := common.StableTopoSort(len(g.order), func(i int) []int { return deps[i] })
	if !ok {
		common.Logger().Warn("graph has a cycle, ordering by registration")
	}
	out := make([]node.ID, len(sorted))
	for i, idx := range sorted {
		out[i] = g.order[idx]
	}
	return out
}

func (g *graph) Upstream(sink node.Node, port int) (node.Node, bool) {
	id, ok := g.ids[sink]
	if !ok {
		return nil, false
	}
	eid, ok := g.sinks[PortIndex{Node: id, Port: port}]
	if !ok {
		return nil, false
	}
	src, ok := g.nodes[g.edges[eid].Source.Node]
	return src, ok
}

// chain returns the nodes out depends on, in dependency order, with out last.
func (g *graph) chain(out node.ID, order []node.ID) []node.Node {
	needed := map[node.ID]bool{out: true}
	stack := []node.ID{out}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, l := range g.edges {
			if l.Sink.Node == cur && !needed[l.Source.Node] {
				needed[l.Source.Node] = true
				stack = append(stack, l.Source.Node)
			}
		}
	}

	nodes := make([]node.Node, 0, len(needed))
	for _, id := range order {
		if needed[id] && id != out {
			nodes = append(nodes, g.nodes[id])
		}
	}
	return append(nodes, g.nodes[out])
}

func (g *graph) SetupOutputs(ctx context.Context, api gpu.API) error {
	_, span := telemetry.Tracer("graph").Start(ctx, "graph.setup_outputs")
	defer span.End()
	span.SetAttributes(attribute.String("api", api.String()), attribute.Int("nodes", len(g.order)))

	order := g.Order()
	var errs []error
	live := make(map[node.ID]bool)
	for _, id := range g.order {
		n := g.nodes[id]
		if !n.IsOutput() {
			continue
		}
		live[id] = true

		o := g.outputs[id]
		if o != nil && o.api != api {
			o.release()
			delete(g.outputs, id)
			o = nil
		}
		if o == nil {
			backend, err := g.factory(api, n.Window())
			if err != nil {
				errs = append(errs, fmt.Errorf("graph: backend for %s: %w", n.Label(), err))
				continue
			}
			opts := append([]renderer.RendererBuilderOption{
				renderer.WithLabel(fmt.Sprintf("%s#%d", n.Label(), id)),
				renderer.WithMetrics(g.metrics),
			}, g.rendererOptions...)
			o = &output{api: api, backend: backend, renderer: renderer.NewRenderer(backend, g, opts...)}
			g.outputs[id] = o
		}
		o.renderer.SetNodes(g.chain(id, order))
		o.renderer.Relink()
	}

	for id, o := range g.outputs {
		if !live[id] {
			o.release()
			delete(g.outputs, id)
		}
	}
	g.metrics.RecordRecompute()
	span.SetAttributes(attribute.Int("outputs", len(g.outputs)))
	return errors.Join(errs...)
}

func (g *graph) RelinkGraph(ctx context.Context) {
	_, span := telemetry.Tracer("graph").Start(ctx, "graph.relink")
	defer span.End()

	order := g.Order()
	rebound, restaged := 0, 0
	for _, id := range g.order {
		o, ok := g.outputs[id]
		if !ok {
			continue
		}
		chain := g.chain(id, order)
		if slices.Equal(o.renderer.Nodes(), chain) {
			rebound += o.renderer.Relink()
			continue
		}
		o.renderer.SetNodes(chain)
		restaged++
	}
	span.SetAttributes(attribute.Int("rebound", rebound), attribute.Int("restaged", restaged))
	g.metrics.RecordRelink()
	common.Logger().Debug("graph relinked", "edges", len(g.edges), "rebound", rebound, "restaged", restaged)
}

func (g *graph) Renderer(out node.ID) (renderer.Renderer, bool) {
	o, ok := g.outputs[out]
	if !ok {
		return nil, false
	}
	return o.renderer, true
}

func (g *graph) Render(ctx context.Context) error {
	var errs []error
	for _, id := range g.order {
		if o, ok := g.outputs[id]; ok {
			if err := o.renderer.Render(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (g *graph) Release() {
	for id, o := range g.outputs {
		o.release()
		delete(g.outputs, id)
	}
}

func (o *output) release() {
	o.renderer.Release()
	o.backend.Release()
}
