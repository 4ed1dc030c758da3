// Package node defines the processing units of the video graph: typed ports, the per-tick
// time block, the material block packed from control ports, and the built-in variants.
package node

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gfx/engine/shader"
)

var (
	// ErrUnsupportedPixelFormat is returned when a video decoder produces frames no node can sample.
	ErrUnsupportedPixelFormat = errors.New("node: unsupported pixel format")

	// ErrShaderInputs is returned when a fragment stage does not match the declared ports.
	ErrShaderInputs = shader.ErrShaderInputs
)

// ID identifies a registered node. Invalid is never assigned.
type ID int32

// Invalid is the id of a node that was never registered.
const Invalid ID = -1

// Kind names a node variant.
type Kind int

const (
	KindColor Kind = iota
	KindNoise
	KindProduct
	KindScreen
	KindFilter
	KindISF
	KindVideo
)

var kindNames = [...]string{"color", "noise", "product", "screen", "filter", "isf", "video"}

// String returns the lower-case variant name.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("node: unknown kind %q", s)
}

// Token is the scheduler's time for one tick.
type Token struct {
	// Date is the position in the parent interval.
	Date time.Duration
	// ParentDuration is the length of the parent interval, 0 when unbounded.
	ParentDuration time.Duration
}

// node is the implementation of the Node interface shared by every variant.
type node struct {
	kind    Kind
	label   string
	inputs  []*Port
	outputs []*Port

	vertex   shader.Shader
	fragment shader.Shader

	// offsets holds the material offset of each input port; only control ports are meaningful.
	offsets         []uint64
	materialSize    uint64
	materialVersion uint64

	process shader.GPUProcessUniform

	ext        Extension
	onProcess  func(Token)
	onRelease  func()
	renderSize gpu.Size
	window     gpu.Window
	source     string
	path       string
}

// Node is a shader-backed processing unit with typed ports.
//
// Nodes are mutated only by the goroutine that owns the graph: values are applied
// between frames and read while the frame is built.
type Node interface {
	// Kind returns the variant of the node.
	Kind() Kind

	// Label returns a human-readable name used in logs and resource labels.
	Label() string

	// Inputs returns the ordered input ports.
	Inputs() []*Port

	// Outputs returns the ordered output ports.
	Outputs() []*Port

	// IsOutput reports whether the node draws to a window rather than a texture.
	IsOutput() bool

	// Window returns the window of an output node, nil otherwise.
	Window() gpu.Window

	// RenderSize returns the fixed render target size of the node.
	//
	// Returns:
	//   - gpu.Size: the declared size
	//   - bool: false when the node renders at the surface size
	RenderSize() (gpu.Size, bool)

	// VertexShader returns the compiled vertex stage.
	VertexShader() shader.Shader

	// FragmentShader returns the compiled fragment stage.
	FragmentShader() shader.Shader

	// Process advances the time block to tk.
	//
	// Parameters:
	//   - tk: the tick's time token
	Process(tk Token)

	// ProcessUniform returns the time block uploaded every frame.
	ProcessUniform() shader.GPUProcessUniform

	// SetValue applies a control value to an input port. The material version
	// advances only when the stored value changed.
	//
	// Parameters:
	//   - port: the input port index
	//   - v: the received value, converted to the port type
	//
	// Returns:
	//   - bool: true if the port value changed
	SetValue(port int, v Value) bool

	// SetAudio stores an audio block on an audio input port.
	//
	// Parameters:
	//   - port: the input port index
	//   - block: one slice of samples per channel
	SetAudio(port int, block [][]float32)

	// MaterialSize returns the size of the material block, 0 if the node has none.
	MaterialSize() uint64

	// MaterialVersion returns a counter that advances whenever a control port value changes.
	MaterialVersion() uint64

	// PackMaterial writes the control port values into dst at their uniform offsets.
	//
	// Parameters:
	//   - dst: a buffer of at least MaterialSize bytes
	PackMaterial(dst []byte)

	// Extension returns the per-renderer extension of the node, nil if it has none.
	Extension() Extension

	// Source returns the user-editable shader source of filter and ISF nodes.
	Source() string

	// Path returns the media path of video nodes.
	Path() string

	// Release frees what the node owns outside the GPU, such as its decoder.
	Release()
}

var _ Node = &node{}

// newNode creates a node and maps its control ports onto the fragment stage's material members.
func newNode(kind Kind, vertex, fragment shader.Shader, inputs, outputs []*Port, options ...NodeBuilderOption) (*node, error) {
	n := &node{
		kind:            kind,
		label:           kind.String(),
		inputs:          inputs,
		outputs:         outputs,
		vertex:          vertex,
		fragment:        fragment,
		materialVersion: 1,
	}
	for _, opt := range options {
		opt(n)
	}
	if err := n.bindMaterial(); err != nil {
		return nil, err
	}
	return n, nil
}

// bindMaterial assigns the material offset of each control port from the reflected members, in order.
func (n *node) bindMaterial() error {
	var members []shader.Input
	for _, in := range n.fragment.Inputs() {
		if in.Type != shader.InputImage {
			members = append(members, in)
		}
	}

	n.offsets = make([]uint64, len(n.inputs))
	m := 0
	for i, p := range n.inputs {
		if !p.Type.IsControl() {
			continue
		}
		if m >= len(members) {
			return fmt.Errorf("%w: %s: port %d (%s) has no material member", ErrShaderInputs, n.label, i, p.Type)
		}
		if typeOfInput(members[m].Type) != p.Type {
			return fmt.Errorf("%w: %s: port %d is %s, material member %s is %s", ErrShaderInputs, n.label, i, p.Type, members[m].Name, typeOfInput(members[m].Type))
		}
		n.offsets[i] = members[m].Offset
		m++
	}
	if m != len(members) {
		return fmt.Errorf("%w: %s: %d material members for %d control ports", ErrShaderInputs, n.label, len(members), m)
	}
	n.materialSize = n.fragment.MaterialSize()
	return nil
}

func (n *node) Kind() Kind {
	return n.kind
}

func (n *node) Label() string {
	return n.label
}

func (n *node) Inputs() []*Port {
	return n.inputs
}

func (n *node) Outputs() []*Port {
	return n.outputs
}

func (n *node) IsOutput() bool {
	return n.window != nil
}

func (n *node) Window() gpu.Window {
	return n.window
}

func (n *node) RenderSize() (gpu.Size, bool) {
	return n.renderSize, !n.renderSize.Empty()
}

func (n *node) VertexShader() shader.Shader {
	return n.vertex
}

func (n *node) FragmentShader() shader.Shader {
	return n.fragment
}

func (n *node) Process(tk Token) {
	prev := n.process.Time
	n.process.Time = float32(tk.Date.Seconds())
	n.process.TimeDelta = n.process.Time - prev
	if tk.ParentDuration > 0 {
		n.process.Progress = float32(float64(tk.Date) / float64(tk.ParentDuration))
	} else {
		n.process.Progress = 0
	}
	n.process.PassIndex = 0

	if n.onProcess != nil {
		n.onProcess(tk)
	}
}

func (n *node) ProcessUniform() shader.GPUProcessUniform {
	return n.process
}

func (n *node) SetValue(port int, v Value) bool {
	if port < 0 || port >= len(n.inputs) {
		return false
	}
	p := n.inputs[port]
	next, ok := convert(p.Type, p.Value, v)
	if !ok || next.Equal(p.Value) {
		return false
	}
	p.Value = next
	n.materialVersion++
	return true
}

func (n *node) SetAudio(port int, block [][]float32) {
	if port < 0 || port >= len(n.inputs) || n.inputs[port].Type != TypeAudio {
		return
	}
	n.inputs[port].Audio.Set(block)
}

func (n *node) MaterialSize() uint64 {
	return n.materialSize
}

func (n *node) MaterialVersion() uint64 {
	return n.materialVersion
}

func (n *node) PackMaterial(dst []byte) {
	clear(dst[:n.materialSize])
	for i, p := range n.inputs {
		off := n.offsets[i]
		switch p.Type {
		case TypeInt:
			binary.LittleEndian.PutUint32(dst[off:], uint32(p.Value.I))
		case TypeFloat:
			binary.LittleEndian.PutUint32(dst[off:], math.Float32bits(p.Value.F))
		case TypeVec2, TypeVec3, TypeVec4:
			for c := range p.Type.Components() {
				binary.LittleEndian.PutUint32(dst[off+uint64(c)*4:], math.Float32bits(p.Value.V[c]))
			}
		}
	}
}

func (n *node) Extension() Extension {
	return n.ext
}

func (n *node) Source() string {
	return n.source
}

func (n *node) Path() string {
	return n.path
}

func (n *node) Release() {
	if n.onRelease != nil {
		n.onRelease()
		n.onRelease = nil
	}
}
