package node

import "github.com/Carmen-Shannon/oxy-gfx/engine/gpu"

// NodeBuilderOption is a function that configures a node during construction.
type NodeBuilderOption func(*node)

// WithLabel is an option builder that sets the label used in logs and resource labels.
//
// Parameters:
//   - label: the node label
//
// Returns:
//   - NodeBuilderOption: a function that applies the label option to a node
func WithLabel(label string) NodeBuilderOption {
	return func(n *node) {
		n.label = label
	}
}

// WithRenderSize is an option builder that fixes the size of the node's render target
// instead of following the output surface. It has no effect on output nodes.
//
// Parameters:
//   - width: target width in pixels
//   - height: target height in pixels
//
// Returns:
//   - NodeBuilderOption: a function that applies the size option to a node
func WithRenderSize(width, height int) NodeBuilderOption {
	return func(n *node) {
		n.renderSize = gpu.Size{Width: width, Height: height}
	}
}
