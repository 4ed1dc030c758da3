// Package document persists nodes and graphs and turns dropped files into node requests.
package document

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gfx/engine/graph"
	"github.com/Carmen-Shannon/oxy-gfx/engine/node"
	"github.com/Carmen-Shannon/oxy-gfx/engine/video"
)

var (
	// ErrUnknownKind is returned when a document names a node kind that does not exist.
	ErrUnknownKind = errors.New("document: unknown node kind")

	// ErrNoWindow is returned when a screen node is restored without a window.
	ErrNoWindow = errors.New("document: screen node needs a window")
)

// PortDocument is the saved state of one port. Image and audio ports carry no value.
type PortDocument struct {
	Name  string    `yaml:"name,omitempty"`
	Type  string    `yaml:"type"`
	Value []float32 `yaml:"value,omitempty,flow"`
}

// NodeDocument is the saved state of one node.
type NodeDocument struct {
	Kind    string         `yaml:"kind"`
	Label   string         `yaml:"label,omitempty"`
	Inputs  []PortDocument `yaml:"inputs,omitempty"`
	Outputs []PortDocument `yaml:"outputs,omitempty"`
	// Source is the user shader of filter and isf nodes.
	Source string `yaml:"source,omitempty"`
	// Path is the media file of video nodes.
	Path   string `yaml:"path,omitempty"`
	Width  int    `yaml:"width,omitempty"`
	Height int    `yaml:"height,omitempty"`
}

// EdgeDocument connects nodes by their index in GraphDocument.Nodes.
type EdgeDocument struct {
	From     int `yaml:"from"`
	FromPort int `yaml:"from_port"`
	To       int `yaml:"to"`
	ToPort   int `yaml:"to_port"`
}

// GraphDocument is a saved graph.
type GraphDocument struct {
	Nodes []NodeDocument `yaml:"nodes"`
	Edges []EdgeDocument `yaml:"edges,omitempty"`
}

// Env supplies what restored nodes need from their host.
type Env struct {
	// Window is the output window of screen nodes.
	Window gpu.Window
	// Open opens video files. Nil uses video.Open.
	Open video.Opener
}

// Capture saves the ports, source and path of n.
func Capture(n node.Node) NodeDocument {
	doc := NodeDocument{
		Kind:    n.Kind().String(),
		Label:   n.Label(),
		Inputs:  capturePorts(n.Inputs()),
		Outputs: capturePorts(n.Outputs()),
		Source:  n.Source(),
		Path:    n.Path(),
	}
	if size, ok := n.RenderSize(); ok && !n.IsOutput() {
		doc.Width, doc.Height = size.Width, size.Height
	}
	return doc
}

func capturePorts(ports []*node.Port) []PortDocument {
	if len(ports) == 0 {
		return nil
	}
	out := make([]PortDocument, len(ports))
	for i, p := range ports {
		out[i] = PortDocument{Name: p.Name, Type: p.Type.String(), Value: Components(p.Type, p.Value)}
	}
	return out
}

// Restore builds a node from doc. Ports are derived again from the kind and source; saved values are
// applied to the inputs whose name and type still match, so restoring an unchanged document twice
// yields equal port lists.
//
// Parameters:
//   - env: window and video opener of the host
//
// Returns:
//   - node.Node: the restored node, not yet registered
//   - error: ErrUnknownKind, or the error of building the node
func (doc NodeDocument) Restore(env Env) (node.Node, error) {
	kind, err := node.ParseKind(doc.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, doc.Kind)
	}

	var options []node.NodeBuilderOption
	if doc.Label != "" {
		options = append(options, node.WithLabel(doc.Label))
	}
	if doc.Width > 0 && doc.Height > 0 {
		options = append(options, node.WithRenderSize(doc.Width, doc.Height))
	}

	n, err := New(kind, doc.Source, doc.Path, env, options...)
	if err != nil {
		return nil, err
	}

	inputs := n.Inputs()
	for i, saved := range doc.Inputs {
		if i >= len(inputs) {
			break
		}
		p := inputs[i]
		if p.Name != saved.Name || p.Type.String() != saved.Type || !p.Type.IsControl() {
			continue
		}
		v, err := ValueOf(p.Type, saved.Value)
		if err != nil {
			continue
		}
		n.SetValue(i, v)
	}
	return n, nil
}

// New builds a node of the given kind.
//
// Parameters:
//   - kind: the node variant
//   - source: shader source of filter and isf nodes
//   - path: media file of video nodes
//   - env: window and video opener of the host
//   - options: node builder options
//
// Returns:
//   - node.Node: the new node
//   - error: error if the source does not compile or the media cannot be opened
func New(kind node.Kind, source, path string, env Env, options ...node.NodeBuilderOption) (node.Node, error) {
	switch kind {
	case node.KindColor:
		return node.NewColorNode(options...), nil
	case node.KindNoise:
		return node.NewNoiseNode(options...), nil
	case node.KindProduct:
		return node.NewProductNode(options...), nil
	case node.KindScreen:
		if env.Window == nil {
			return nil, ErrNoWindow
		}
		return node.NewScreenNode(env.Window, options...), nil
	case node.KindFilter:
		return node.NewFilterNode(source, options...)
	case node.KindISF:
		return node.NewISFNode(source, options...)
	case node.KindVideo:
		open := env.Open
		if open == nil {
			open = video.Open
		}
		dec, err := open(path)
		if err != nil {
			return nil, err
		}
		n, err := node.NewVideoNode(dec, path, options...)
		if err != nil {
			_ = dec.Close()
			return nil, err
		}
		return n, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
}

// Components returns the float components of a control value, nil for other port types.
func Components(t node.Type, v node.Value) []float32 {
	switch t {
	case node.TypeInt:
		return []float32{float32(v.I)}
	case node.TypeFloat:
		return []float32{v.F}
	case node.TypeVec2, node.TypeVec3, node.TypeVec4:
		out := make([]float32, t.Components())
		copy(out, v.V[:])
		return out
	default:
		return nil
	}
}

// ValueOf is the inverse of Components.
//
// Returns:
//   - node.Value: the value of type t
//   - error: error if t is not a control type or the component count does not match
func ValueOf(t node.Type, c []float32) (node.Value, error) {
	if !t.IsControl() || len(c) != t.Components() {
		return node.Value{}, fmt.Errorf("document: %d components for %s port", len(c), t)
	}
	switch t {
	case node.TypeInt:
		return node.Int(int32(c[0])), nil
	case node.TypeFloat:
		return node.Float(c[0]), nil
	case node.TypeVec2:
		return node.Vec2(c[0], c[1]), nil
	case node.TypeVec3:
		return node.Vec3(c[0], c[1], c[2]), nil
	default:
		return node.Vec4(c[0], c[1], c[2], c[3]), nil
	}
}

// CaptureGraph saves every node of g in registration order and every edge between them.
func CaptureGraph(g graph.Graph) GraphDocument {
	ids := g.IDs()
	index := make(map[node.ID]int, len(ids))
	doc := GraphDocument{Nodes: make([]NodeDocument, 0, len(ids))}
	for _, id := range ids {
		n, ok := g.Node(id)
		if !ok {
			continue
		}
		index[id] = len(doc.Nodes)
		doc.Nodes = append(doc.Nodes, Capture(n))
	}
	for _, e := range g.Edges() {
		from, okFrom := index[e.Source.Node]
		to, okTo := index[e.Sink.Node]
		if !okFrom || !okTo {
			continue
		}
		doc.Edges = append(doc.Edges, EdgeDocument{From: from, FromPort: e.Source.Port, To: to, ToPort: e.Sink.Port})
	}
	return doc
}

// Restore builds every node of doc. On failure the nodes built so far are released.
func (doc GraphDocument) Restore(env Env) ([]node.Node, error) {
	nodes := make([]node.Node, 0, len(doc.Nodes))
	for i, nd := range doc.Nodes {
		n, err := nd.Restore(env)
		if err != nil {
			for _, built := range nodes {
				built.Release()
			}
			return nil, fmt.Errorf("document: node %d: %w", i, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// Links maps the edges of doc onto the ids the restored nodes were registered under.
// Edges naming a node index out of range are skipped.
func (doc GraphDocument) Links(ids []node.ID) []graph.Link {
	links := make([]graph.Link, 0, len(doc.Edges))
	for _, e := range doc.Edges {
		if e.From < 0 || e.From >= len(ids) || e.To < 0 || e.To >= len(ids) {
			continue
		}
		links = append(links, graph.Link{
			Source: graph.PortIndex{Node: ids[e.From], Port: e.FromPort},
			Sink:   graph.PortIndex{Node: ids[e.To], Port: e.ToPort},
		})
	}
	return links
}
