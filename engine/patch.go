package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/bridge"
	"github.com/Carmen-Shannon/oxy-gfx/engine/config"
	"github.com/Carmen-Shannon/oxy-gfx/engine/document"
	"github.com/Carmen-Shannon/oxy-gfx/engine/node"
)

var (
	// ErrUnknownNode is returned when an edge names a node the graph does not have.
	ErrUnknownNode = errors.New("engine: unknown node")
	// ErrUnknownInput is returned when a configured value names an input the node does not have.
	ErrUnknownInput = errors.New("engine: unknown input")
)

// patchEntry is a named node of the loaded graph.
type patchEntry struct {
	en     *bridge.ExecNode
	source string // shader file, empty for nodes built without one
}

func (e *engine) env() document.Env {
	return document.Env{Window: e.output, Open: e.open}
}

// LoadGraph builds every node of cfg, registers it, and connects the edges.
// It must be called from the goroutine that owns the graph, before Run or through Invoke.
// Nodes built before a failure stay loaded and are closed by Shutdown.
//
// Parameters:
//   - ctx: carries the trace of the caller
//   - cfg: the graph description
//
// Returns:
//   - error: the first node or edge that could not be built
func (e *engine) LoadGraph(ctx context.Context, cfg config.GraphConfig) error {
	for _, nc := range cfg.Nodes {
		en, err := e.loadNode(ctx, nc)
		if err != nil {
			return fmt.Errorf("engine: node %s: %w", nc.Name, err)
		}
		e.addPatch(nc.Name, &patchEntry{en: en, source: nc.Source})
		e.scheduler.Add(en)
	}

	for _, ec := range cfg.Edges {
		src, ok := e.Node(ec.From)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownNode, ec.From)
		}
		sink, ok := e.Node(ec.To)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownNode, ec.To)
		}
		if err := e.scheduler.Connect(src, ec.FromPort, sink, ec.ToPort); err != nil {
			return fmt.Errorf("engine: edge %s:%d -> %s:%d: %w", ec.From, ec.FromPort, ec.To, ec.ToPort, err)
		}
	}
	return nil
}

func (e *engine) loadNode(ctx context.Context, nc config.NodeConfig) (*bridge.ExecNode, error) {
	kind, err := node.ParseKind(nc.Kind)
	if err != nil {
		return nil, err
	}

	if kind == node.KindVideo {
		dec, err := e.open(nc.Path)
		if err != nil {
			return nil, err
		}
		return bridge.NewVideoExecNode(ctx, e.wc, dec, nc.Path), nil
	}

	var source string
	if nc.Source != "" {
		data, err := os.ReadFile(nc.Source)
		if err != nil {
			return nil, err
		}
		source = string(data)
	}

	options := []node.NodeBuilderOption{node.WithLabel(nc.Name)}
	if nc.Width > 0 && nc.Height > 0 {
		options = append(options, node.WithRenderSize(nc.Width, nc.Height))
	}
	n, err := document.New(kind, source, nc.Path, e.env(), options...)
	if err != nil {
		return nil, err
	}
	if err := applyValues(n, nc.Values); err != nil {
		n.Release()
		return nil, err
	}

	en, err := bridge.NewExecNode(ctx, e.wc, n)
	if err != nil {
		common.Logger().Error("node outputs failed", "node", nc.Name, "err", err)
	}
	return en, nil
}

// applyValues sets input ports of n by name.
func applyValues(n node.Node, values map[string][]float64) error {
	inputs := n.Inputs()
	for name, components := range values {
		i := slices.IndexFunc(inputs, func(p *node.Port) bool { return p.Name == name })
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownInput, name)
		}
		c := make([]float32, len(components))
		for j, v := range components {
			c[j] = float32(v)
		}
		v, err := document.ValueOf(inputs[i].Type, c)
		if err != nil {
			return fmt.Errorf("input %s: %w", name, err)
		}
		n.SetValue(i, v)
	}
	return nil
}

func (e *engine) addPatch(name string, entry *patchEntry) {
	e.patchMu.Lock()
	defer e.patchMu.Unlock()
	if _, ok := e.patch[name]; !ok {
		e.order = append(e.order, name)
	}
	e.patch[name] = entry
}

func (e *engine) Node(name string) (*bridge.ExecNode, bool) {
	e.patchMu.Lock()
	defer e.patchMu.Unlock()
	entry, ok := e.patch[name]
	if !ok {
		return nil, false
	}
	return entry.en, true
}

func (e *engine) SourcePaths() []string {
	e.patchMu.Lock()
	defer e.patchMu.Unlock()
	var paths []string
	for _, name := range e.order {
		if p := e.patch[name].source; p != "" && !slices.Contains(paths, p) {
			paths = append(paths, p)
		}
	}
	return paths
}

func (e *engine) Reload(path, source string) {
	e.Invoke(func(ctx context.Context, wc *bridge.WindowContext) {
		e.patchMu.Lock()
		var names []string
		for _, name := range e.order {
			if e.patch[name].source == path {
				names = append(names, name)
			}
		}
		e.patchMu.Unlock()

		for _, name := range names {
			if err := e.reloadNode(ctx, wc, name, source); err != nil {
				common.Logger().Error("reload failed", "node", name, "path", path, "err", err)
			}
		}
	})
}

// reloadNode rebuilds a named node with a new shader source on the render goroutine. The old
// node keeps running when the new source does not compile.
func (e *engine) reloadNode(ctx context.Context, wc *bridge.WindowContext, name, source string) error {
	prev, ok := e.Node(name)
	if !ok {
		return ErrUnknownNode
	}
	old, ok := wc.Graph().Node(prev.ID())
	if !ok {
		return fmt.Errorf("%w: %s is not registered", ErrUnknownNode, name)
	}

	doc := document.Capture(old)
	doc.Source = source
	n, err := doc.Restore(e.env())
	if err != nil {
		return err
	}
	next, err := bridge.NewExecNode(ctx, wc, n)
	if err != nil {
		common.Logger().Error("node outputs failed", "node", name, "err", err)
	}

	e.patchMu.Lock()
	e.patch[name].en = next
	e.patchMu.Unlock()

	swap := func() {
		moved := e.scheduler.Replace(prev, next)
		common.Logger().Info("node reloaded", "node", name, "cables", moved)
	}
	release := func(ctx context.Context, _ *bridge.WindowContext) {
		if err := prev.Close(ctx); err != nil {
			common.Logger().Warn("closing replaced node failed", "node", name, "err", err)
		}
	}
	if e.scheduler.Post(func() {
		swap()
		if !e.Invoke(release) {
			common.Logger().Warn("replaced node left registered", "node", name)
		}
	}) {
		return nil
	}
	swap()
	release(ctx, wc)
	return nil
}

// handleDrop turns files dropped on the window into nodes.
func (e *engine) handleDrop(paths []string) {
	for _, path := range paths {
		doc, err := document.Drop(path)
		if err != nil {
			common.Logger().Warn("dropped file ignored", "path", path, "err", err)
			continue
		}
		e.Invoke(func(ctx context.Context, wc *bridge.WindowContext) {
			if _, err := e.addDocument(ctx, wc, doc); err != nil {
				common.Logger().Error("dropped file failed", "path", path, "err", err)
			}
		})
	}
}

// addDocument registers the node of doc under its label and adds it to the scheduler.
// A label already in use gets a numeric suffix.
func (e *engine) addDocument(ctx context.Context, wc *bridge.WindowContext, doc document.NodeDocument) (*bridge.ExecNode, error) {
	var en *bridge.ExecNode
	if doc.Kind == node.KindVideo.String() {
		dec, err := e.open(doc.Path)
		if err != nil {
			return nil, err
		}
		en = bridge.NewVideoExecNode(ctx, wc, dec, doc.Path)
	} else {
		n, err := doc.Restore(e.env())
		if err != nil {
			return nil, err
		}
		en, err = bridge.NewExecNode(ctx, wc, n)
		if err != nil {
			common.Logger().Error("node outputs failed", "node", doc.Label, "err", err)
		}
	}

	e.addPatch(e.uniqueName(doc.Label), &patchEntry{en: en})
	e.scheduler.Add(en)
	return en, nil
}

func (e *engine) uniqueName(name string) string {
	e.patchMu.Lock()
	defer e.patchMu.Unlock()
	if _, taken := e.patch[name]; !taken {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", name, i)
		if _, taken := e.patch[candidate]; !taken {
			return candidate
		}
	}
}

func (e *engine) Shutdown(ctx context.Context) {
	e.patchMu.Lock()
	entries := make([]*patchEntry, 0, len(e.order))
	for _, name := range slices.Backward(e.order) {
		entries = append(entries, e.patch[name])
	}
	e.patch = make(map[string]*patchEntry)
	e.order = nil
	e.patchMu.Unlock()

	for _, entry := range entries {
		e.scheduler.Remove(entry.en)
		if err := entry.en.Close(ctx); err != nil {
			common.Logger().Warn("closing node failed", "node", entry.en.Label(), "err", err)
		}
	}
}
