package node

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gfx/engine/shader"
)

var (
	//go:embed assets/color.frag.wgsl
	colorSource string
	//go:embed assets/noise.frag.wgsl
	noiseSource string
	//go:embed assets/product.frag.wgsl
	productSource string
	//go:embed assets/screen.frag.wgsl
	screenSource string

	// DefaultFilterSource is the fragment stage of a filter created without source.
	//
	//go:embed assets/filter.frag.wgsl
	DefaultFilterSource string
)

// Built-in stages compile on first use.
var (
	fullscreenVertex = sync.OnceValue(func() shader.Shader {
		return shader.MustCompile("fullscreen", shader.StageVertex, shader.FullscreenVertexSource)
	})
	colorFragment = sync.OnceValue(func() shader.Shader {
		return shader.MustCompile("color", shader.StageFragment, colorSource)
	})
	noiseFragment = sync.OnceValue(func() shader.Shader {
		return shader.MustCompile("noise", shader.StageFragment, noiseSource)
	})
	productFragment = sync.OnceValue(func() shader.Shader {
		return shader.MustCompile("product", shader.StageFragment, productSource)
	})
	screenFragment = sync.OnceValue(func() shader.Shader {
		return shader.MustCompile("screen", shader.StageFragment, screenSource)
	})
)

// mustNode panics when a built-in node does not match its own shader.
func mustNode(n *node, err error) Node {
	if err != nil {
		panic(fmt.Sprintf("node: built-in %v", err))
	}
	return n
}

// NewColorNode creates a node filling its output with the color of its single vec4 input.
func NewColorNode(options ...NodeBuilderOption) Node {
	color := newPort("color", TypeVec4)
	color.Value = Vec4(0.6, 0.3, 0.78, 1)
	return mustNode(newNode(KindColor, fullscreenVertex(), colorFragment(),
		[]*Port{color}, []*Port{newPort("", TypeImage)}, options...))
}

// NewNoiseNode creates a node drawing a fixed sine pattern. It has no inputs.
func NewNoiseNode(options ...NodeBuilderOption) Node {
	return mustNode(newNode(KindNoise, fullscreenVertex(), noiseFragment(),
		nil, []*Port{newPort("", TypeImage)}, options...))
}

// NewProductNode creates a node adding its two image inputs.
func NewProductNode(options ...NodeBuilderOption) Node {
	return mustNode(newNode(KindProduct, fullscreenVertex(), productFragment(),
		[]*Port{newPort("t1", TypeImage), newPort("t2", TypeImage)}, []*Port{newPort("", TypeImage)}, options...))
}

// NewScreenNode creates the output node of a window. It presents its single image input.
//
// Parameters:
//   - window: the window the node draws to
//   - options: optional builder options
//
// Returns:
//   - Node: the output node
func NewScreenNode(window gpu.Window, options ...NodeBuilderOption) Node {
	n := mustNode(newNode(KindScreen, fullscreenVertex(), screenFragment(),
		[]*Port{newPort("tex", TypeImage)}, nil, options...)).(*node)
	n.window = window
	n.renderSize = gpu.Size{}
	return n
}

// NewFilterNode creates a node from a user fragment stage. Its inputs are derived from the
// stage: every sampled texture becomes an image port, then every member of the material
// block becomes a control port. An empty source uses DefaultFilterSource.
//
// Parameters:
//   - source: WGSL fragment source
//   - options: optional builder options
//
// Returns:
//   - Node: the filter node
//   - error: error if the source does not compile or declares unsupported inputs
func NewFilterNode(source string, options ...NodeBuilderOption) (Node, error) {
	if source == "" {
		source = DefaultFilterSource
	}
	frag, err := shader.Compile("filter", shader.StageFragment, source)
	if err != nil {
		common.Logger().Warn("filter shader rejected", "err", err)
		return nil, err
	}

	inputs := make([]*Port, 0, len(frag.Inputs()))
	for _, in := range frag.Inputs() {
		inputs = append(inputs, newPort(in.Name, typeOfInput(in.Type)))
	}

	n, err := newNode(KindFilter, fullscreenVertex(), frag, inputs, []*Port{newPort("", TypeImage)}, options...)
	if err != nil {
		return nil, err
	}
	n.source = source
	return n, nil
}
