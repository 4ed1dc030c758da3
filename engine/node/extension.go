package node

import (
	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
	"github.com/google/uuid"
)

// RenderContext is what a renderer exposes to the extension of one of its nodes.
type RenderContext interface {
	// RendererID identifies the renderer. Extensions key their per-renderer resources by it.
	RendererID() uuid.UUID

	// Backend returns the backend the renderer creates resources with.
	Backend() gpu.Backend

	// EmptyTexture returns the 1x1 placeholder bound to inputs without a source.
	EmptyTexture() gpu.Texture

	// AddSampler appends a sampled texture after the samplers of the node's image inputs.
	// Only valid during CustomInit.
	//
	// Parameters:
	//   - s: the sampler, owned by the extension
	//   - t: the texture initially bound
	//
	// Returns:
	//   - int: the sampler index to pass to SetSamplerTexture
	AddSampler(s gpu.Sampler, t gpu.Texture) int

	// SetSamplerTexture rebinds the texture of sampler i. The resource bindings are rebuilt
	// before the next draw if they were already created.
	//
	// Parameters:
	//   - i: the index returned by AddSampler
	//   - t: the new texture
	SetSamplerTexture(i int, t gpu.Texture)
}

// Extension adds per-renderer GPU work to a node. The renderer calls CustomInit once per
// resource build after the node's own samplers exist, CustomUpdate every frame after the
// node's uniforms are queued, and CustomRelease before the node's resources are released.
type Extension interface {
	CustomInit(rc RenderContext) error
	CustomUpdate(rc RenderContext, batch gpu.UpdateBatch) error
	CustomRelease(rc RenderContext)
}
