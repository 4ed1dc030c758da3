package graph

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-gfx/engine/node"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// op is one step of a random register/unregister/connect sequence.
type op struct {
	Kind int
	A, B int
	Port int
}

var genOp = gopter.CombineGens(
	gen.IntRange(0, 2),
	gen.IntRange(0, 15),
	gen.IntRange(0, 15),
	gen.IntRange(0, 1),
).Map(func(v []any) op {
	return op{Kind: v[0].(int), A: v[1].(int), B: v[2].(int), Port: v[3].(int)}
})

// apply runs ops on a fresh graph of product nodes.
func apply(ops []op) Graph {
	g := NewGraph(nil)
	for _, o := range ops {
		switch o.Kind {
		case 0:
			g.AddNode(node.NewProductNode())
		case 1:
			g.RemoveNode(node.ID(o.A))
		case 2:
			_, _ = g.AddEdge(PortIndex{node.ID(o.A), 0}, PortIndex{node.ID(o.B), o.Port})
		}
	}
	return g
}

func TestGraphProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("no edge references an unregistered node", prop.ForAll(
		func(ops []op) bool {
			g := apply(ops)
			for _, e := range g.Edges() {
				if _, ok := g.Node(e.Source.Node); !ok {
					return false
				}
				if _, ok := g.Node(e.Sink.Node); !ok {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genOp),
	))

	properties.Property("every input port has at most one source", prop.ForAll(
		func(ops []op) bool {
			seen := map[PortIndex]bool{}
			for _, e := range apply(ops).Edges() {
				if seen[e.Sink] {
					return false
				}
				seen[e.Sink] = true
			}
			return true
		},
		gen.SliceOf(genOp),
	))

	properties.Property("order places sources before sinks", prop.ForAll(
		func(ops []op) bool {
			g := apply(ops)
			order := g.Order()
			if len(order) != len(g.IDs()) {
				return false
			}
			pos := map[node.ID]int{}
			for i, id := range order {
				pos[id] = i
			}
			for _, e := range g.Edges() {
				if pos[e.Source.Node] >= pos[e.Sink.Node] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genOp),
	))

	properties.Property("order is deterministic", prop.ForAll(
		func(ops []op) bool {
			a, b := apply(ops).Order(), apply(ops).Order()
			if len(a) != len(b) {
				return false
			}
			for i := range a {
				if a[i] != b[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genOp),
	))

	properties.Property("replacing with the current edge set changes nothing", prop.ForAll(
		func(ops []op) bool {
			g := apply(ops)
			before := g.EdgeSet()
			installed := g.ReplaceEdges(before.Clone())
			return installed == before.Len() && g.EdgeSet().Equal(before)
		},
		gen.SliceOf(genOp),
	))

	properties.TestingRun(t)
}
