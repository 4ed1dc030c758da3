package bridge

import (
	"context"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/graph"
	"github.com/Carmen-Shannon/oxy-gfx/engine/node"
	"github.com/Carmen-Shannon/oxy-gfx/engine/video"
)

// control is the shadow of an externally edited input value.
type control struct {
	value node.Value
	dirty bool
}

// ExecNode is the scheduler-side handle of a registered node. It gathers what the node
// receives during a tick and turns it into one Message.
type ExecNode struct {
	id     node.ID
	label  string
	inputs []node.Type
	// outputs holds the types of the output ports; video nodes keep theirs even when unregistered.
	outputs []node.Type

	exec *ExecContext
	wc   *WindowContext
	dec  video.Decoder

	controls []control
	pending  [][]PortValue
	executed bool
}

// NewExecNode registers n through wc and returns its scheduler handle.
// It must be called from the goroutine that owns the graph.
//
// Parameters:
//   - ctx: carries the trace of the caller
//   - wc: the render side of the bridge
//   - n: the node to register
//
// Returns:
//   - *ExecNode: the handle
//   - error: output setup failures; the node is registered regardless
func NewExecNode(ctx context.Context, wc *WindowContext, n node.Node) (*ExecNode, error) {
	en := newExecNode(wc, n.Label(), portTypes(n.Inputs()), portTypes(n.Outputs()))
	id, err := wc.RegisterNode(ctx, n)
	en.id = id
	return en, err
}

// NewVideoExecNode creates the node of a decoder and registers it when its pixel format is
// supported. Otherwise the handle stays unregistered and behaves as an empty source.
// The decoder is rewound in both cases.
//
// Parameters:
//   - ctx: carries the trace of the caller
//   - wc: the render side of the bridge
//   - dec: the opened decoder, owned by the node from now on
//   - path: the media path
//
// Returns:
//   - *ExecNode: the handle
func NewVideoExecNode(ctx context.Context, wc *WindowContext, dec video.Decoder, path string) *ExecNode {
	en := newExecNode(wc, "video", nil, []node.Type{node.TypeImage})
	en.dec = dec

	n, err := node.NewVideoNode(dec, path, node.WithLabel(path))
	switch {
	case err != nil:
		common.Logger().Warn("video node not registered", "path", path, "format", dec.PixelFormat().String(), "err", err)
	default:
		en.label = n.Label()
		en.dec = nil
		en.id, err = wc.RegisterNode(ctx, n)
		if err != nil {
			common.Logger().Error("video node outputs failed", "path", path, "err", err)
		}
	}

	if err := dec.Seek(0); err != nil {
		common.Logger().Warn("video seek failed", "path", path, "err", err)
	}
	return en
}

func newExecNode(wc *WindowContext, label string, inputs, outputs []node.Type) *ExecNode {
	return &ExecNode{
		id:       node.Invalid,
		label:    label,
		inputs:   inputs,
		outputs:  outputs,
		exec:     wc.Exec(),
		wc:       wc,
		controls: make([]control, len(inputs)),
		pending:  make([][]PortValue, len(inputs)),
	}
}

func portTypes(ports []*node.Port) []node.Type {
	out := make([]node.Type, len(ports))
	for i, p := range ports {
		out[i] = p.Type
	}
	return out
}

// ID returns the graph id, node.Invalid when the node was never registered.
func (en *ExecNode) ID() node.ID {
	return en.id
}

// Label returns the node label.
func (en *ExecNode) Label() string {
	return en.label
}

// Inputs returns the input port types.
func (en *ExecNode) Inputs() []node.Type {
	return en.inputs
}

// Outputs returns the output port types.
func (en *ExecNode) Outputs() []node.Type {
	return en.outputs
}

// Produced reports whether the node ran during the current tick and has an output texture.
func (en *ExecNode) Produced() bool {
	return en.executed && en.id != node.Invalid
}

// Push queues a value received on an input port during the current tick.
// Scheduler goroutine only.
func (en *ExecNode) Push(port int, v node.Value) {
	if port < 0 || port >= len(en.pending) {
		return
	}
	en.pending[port] = append(en.pending[port], PortValue{Value: v})
}

// PushAudio sets the audio block of an input port for the current tick. The last block wins.
// Scheduler goroutine only.
func (en *ExecNode) PushAudio(port int, block [][]float32) {
	if port < 0 || port >= len(en.pending) || block == nil {
		return
	}
	batch := en.pending[port]
	for i, v := range batch {
		if v.IsAudio() {
			batch[i].Audio = block
			return
		}
	}
	en.pending[port] = append(batch, PortValue{Audio: block})
}

// setControl stores an external edit to be sent with the next run.
func (en *ExecNode) setControl(port int, v node.Value) {
	if port < 0 || port >= len(en.controls) {
		return
	}
	en.controls[port] = control{value: v, dirty: true}
}

// run turns one tick of the node into edges and a message.
func (en *ExecNode) run(tk node.Token, incoming []Cable) {
	en.executed = true
	if en.id == node.Invalid {
		en.reset()
		return
	}

	for i := range en.controls {
		c := &en.controls[i]
		if c.dirty {
			en.pending[i] = append([]PortValue{{Value: c.value}}, en.pending[i]...)
			c.dirty = false
		}
	}

	for _, c := range incoming {
		if c.Source.Produced() {
			en.exec.SetEdge(graph.Link{
				Source: graph.PortIndex{Node: c.Source.id, Port: c.Outlet},
				Sink:   graph.PortIndex{Node: en.id, Port: c.Inlet},
			})
		}
	}

	msg := Message{Node: en.id, Token: tk, Inputs: make([][]PortValue, len(en.pending))}
	for i, batch := range en.pending {
		if len(batch) > 0 {
			msg.Inputs[i] = append([]PortValue(nil), batch...)
		}
	}
	en.exec.Push(msg)
	en.reset()
}

func (en *ExecNode) reset() {
	for i := range en.pending {
		en.pending[i] = en.pending[i][:0]
	}
}

// Close unregisters the node. A node that was never registered only closes its decoder.
// It must be called from the goroutine that owns the graph. Closing twice does nothing.
func (en *ExecNode) Close(ctx context.Context) error {
	if en.dec != nil {
		dec := en.dec
		en.dec = nil
		if err := dec.Close(); err != nil {
			common.Logger().Warn("video decoder close failed", "label", en.label, "err", err)
		}
	}
	if en.id < 0 {
		return nil
	}
	id := en.id
	en.id = node.Invalid
	return en.wc.UnregisterNode(ctx, id)
}
