package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gfx/engine/node"
	"github.com/Carmen-Shannon/oxy-gfx/engine/shader"
	"github.com/google/uuid"
)

// samplerSlot is one texture/sampler pair of a node. Slots of image inputs come first in port
// order, then the slots added by the node's extension.
type samplerSlot struct {
	port    int
	sampler gpu.Sampler
	texture gpu.Texture
	owned   bool
}

// renderedNode is the implementation of the RenderedNode interface.
type renderedNode struct {
	r     *renderer
	n     node.Node
	label string

	target  gpu.RenderTarget
	texture gpu.Texture

	process  gpu.Buffer
	material gpu.Buffer
	packed   []byte
	packedAt uint64
	uploaded uint64

	slots    []samplerSlot
	bindings gpu.ResourceBindings
	pipeline gpu.Pipeline

	bindingsDirty bool
	initializing  bool
	extReady      bool
}

// RenderedNode is the GPU state of one node on one renderer.
type RenderedNode interface {
	// Node returns the node the state was built for.
	Node() node.Node

	// Target returns the pass target: an offscreen texture, or the surface for the output node.
	Target() gpu.RenderTarget

	// OutputTexture returns the texture downstream nodes sample, nil for the output node.
	OutputTexture() gpu.Texture

	// InputTexture returns the texture bound to an image input port, nil for other ports.
	//
	// Parameters:
	//   - port: the input port index
	//
	// Returns:
	//   - gpu.Texture: the upstream output texture, or the placeholder when unconnected
	InputTexture(port int) gpu.Texture

	// UploadedMaterialVersion returns the material version last queued for upload.
	UploadedMaterialVersion() uint64
}

var (
	_ RenderedNode       = &renderedNode{}
	_ node.RenderContext = &renderedNode{}
)

// initTarget creates the render target of the node at its declared size or the surface size.
func (rn *renderedNode) initTarget(surface gpu.Size) error {
	b := rn.r.backend
	if rn.n.IsOutput() {
		rn.target = b.ScreenRenderTarget()
		return nil
	}

	size, fixed := rn.n.RenderSize()
	if !fixed {
		size = surface
	}
	size.Width = max(size.Width, 1)
	size.Height = max(size.Height, 1)

	tex, err := b.CreateTexture(rn.label+".target", size, gpu.FormatRGBA8, true)
	if err != nil {
		return fmt.Errorf("create target texture %s: %w", rn.label, err)
	}
	rn.texture = tex
	rn.target, err = b.CreateTextureRenderTarget(rn.label+".target", tex)
	if err != nil {
		return fmt.Errorf("create render target %s: %w", rn.label, err)
	}
	return nil
}

// init creates the uniforms, samplers, bindings and pipeline of the node.
func (rn *renderedNode) init() error {
	b := rn.r.backend
	var process shader.GPUProcessUniform
	var err error

	rn.process, err = b.CreateBuffer(rn.label+".process", gpu.BufferUniform, process.Size())
	if err != nil {
		return fmt.Errorf("create process uniform %s: %w", rn.label, err)
	}

	for i, p := range rn.n.Inputs() {
		if p.Type != node.TypeImage {
			continue
		}
		s, err := b.CreateSampler(fmt.Sprintf("%s.sampler%d", rn.label, i), gpu.SamplerDescriptor{
			MinFilter: gpu.FilterLinear,
			MagFilter: gpu.FilterLinear,
			AddressU:  gpu.AddressClampToEdge,
			AddressV:  gpu.AddressClampToEdge,
		})
		if err != nil {
			return fmt.Errorf("create sampler %s: %w", rn.label, err)
		}
		rn.slots = append(rn.slots, samplerSlot{port: i, sampler: s, texture: rn.resolve(i), owned: true})
	}

	if size := rn.n.MaterialSize(); size > 0 {
		rn.material, err = b.CreateBuffer(rn.label+".material", gpu.BufferUniform, int(size))
		if err != nil {
			return fmt.Errorf("create material uniform %s: %w", rn.label, err)
		}
		rn.packed = make([]byte, size)
	}

	if ext := rn.n.Extension(); ext != nil {
		rn.initializing = true
		err = ext.CustomInit(rn)
		rn.initializing = false
		rn.extReady = true
		if err != nil {
			return fmt.Errorf("init extension %s: %w", rn.label, err)
		}
	}

	if err := rn.createBindings(); err != nil {
		return err
	}

	rn.pipeline, err = b.CreateGraphicsPipeline(gpu.PipelineDescriptor{
		Label:    rn.label,
		Vertex:   rn.n.VertexShader().StageDescriptor(),
		Fragment: rn.n.FragmentShader().StageDescriptor(),
		Layout:   rn.n.VertexShader().VertexLayout(),
		Bindings: rn.layout(),
		Target:   rn.target,
		Blend:    true,
	})
	if err != nil {
		return fmt.Errorf("create pipeline %s: %w", rn.label, err)
	}
	return nil
}

// entries returns the bind group 0 entries: renderer block, time block, material block, then samplers.
func (rn *renderedNode) entries() []gpu.Binding {
	entries := []gpu.Binding{
		{Slot: shader.RendererBinding, Kind: gpu.BindingUniformBuffer, Buffer: rn.r.uniform},
		{Slot: shader.ProcessBinding, Kind: gpu.BindingUniformBuffer, Buffer: rn.process},
	}
	if rn.material != nil {
		entries = append(entries, gpu.Binding{Slot: shader.MaterialBinding, Kind: gpu.BindingUniformBuffer, Buffer: rn.material})
	}
	for i, s := range rn.slots {
		tex, smp := shader.SamplerBindings(i)
		entries = append(entries,
			gpu.Binding{Slot: tex, Kind: gpu.BindingTexture, Texture: s.texture},
			gpu.Binding{Slot: smp, Kind: gpu.BindingSampler, Sampler: s.sampler},
		)
	}
	return entries
}

// layout is entries without the resources a pipeline layout does not need.
func (rn *renderedNode) layout() []gpu.Binding {
	entries := rn.entries()
	for i := range entries {
		entries[i].Buffer = nil
		entries[i].Texture = nil
	}
	return entries
}

func (rn *renderedNode) createBindings() error {
	if rn.bindings != nil {
		rn.bindings.Release()
		rn.bindings = nil
	}
	bindings, err := rn.r.backend.CreateResourceBindings(rn.label+".bindings", rn.entries())
	if err != nil {
		return fmt.Errorf("create bindings %s: %w", rn.label, err)
	}
	rn.bindings = bindings
	rn.bindingsDirty = false
	return nil
}

// resolve returns the output texture of the node feeding port, or the placeholder.
func (rn *renderedNode) resolve(port int) gpu.Texture {
	if rn.r.resolver == nil {
		return rn.r.empty
	}
	src, ok := rn.r.resolver.Upstream(rn.n, port)
	if !ok {
		return rn.r.empty
	}
	up, ok := rn.r.byNode[src]
	if !ok || up.texture == nil {
		return rn.r.empty
	}
	return up.texture
}

// relink re-resolves the image inputs and returns how many changed.
func (rn *renderedNode) relink() int {
	changed := 0
	for i := range rn.slots {
		s := &rn.slots[i]
		if s.port < 0 {
			continue
		}
		if t := rn.resolve(s.port); t != s.texture {
			s.texture = t
			changed++
		}
	}
	if changed > 0 {
		rn.bindingsDirty = true
	}
	return changed
}

func (rn *renderedNode) materialDirty() bool {
	return rn.material != nil && rn.n.MaterialVersion() != rn.uploaded
}

// packMaterial writes the control values into the staging block. It only reads the node.
func (rn *renderedNode) packMaterial() {
	rn.n.PackMaterial(rn.packed)
	rn.packedAt = rn.n.MaterialVersion()
}

// update queues the time block, the material block when its version moved, and the extension's uploads.
func (rn *renderedNode) update(batch gpu.UpdateBatch) error {
	process := rn.n.ProcessUniform()
	batch.UpdateDynamicBuffer(rn.process, 0, process.Marshal())

	if rn.materialDirty() {
		if rn.packedAt != rn.n.MaterialVersion() {
			rn.packMaterial()
		}
		batch.UpdateDynamicBuffer(rn.material, 0, rn.packed)
		rn.uploaded = rn.packedAt
		rn.r.metrics.RecordMaterialUpload()
	}

	if ext := rn.n.Extension(); ext != nil {
		if err := ext.CustomUpdate(rn, batch); err != nil {
			return err
		}
	}

	if rn.bindingsDirty {
		return rn.createBindings()
	}
	return nil
}

// release frees what init and initTarget created, the extension's resources first.
func (rn *renderedNode) release() {
	if ext := rn.n.Extension(); ext != nil && rn.extReady {
		ext.CustomRelease(rn)
		rn.extReady = false
	}
	for _, s := range rn.slots {
		if s.owned {
			s.sampler.Release()
		}
	}
	rn.slots = nil
	if rn.process != nil {
		rn.process.Release()
		rn.process = nil
	}
	if rn.material != nil {
		rn.material.Release()
		rn.material = nil
	}
	if rn.pipeline != nil {
		rn.pipeline.Release()
		rn.pipeline = nil
	}
	if rn.bindings != nil {
		rn.bindings.Release()
		rn.bindings = nil
	}
	if rn.target != nil {
		rn.target.Release()
		rn.target = nil
	}
	if rn.texture != nil {
		rn.texture.Release()
		rn.texture = nil
	}
}

func (rn *renderedNode) Node() node.Node {
	return rn.n
}

func (rn *renderedNode) Target() gpu.RenderTarget {
	return rn.target
}

func (rn *renderedNode) OutputTexture() gpu.Texture {
	return rn.texture
}

func (rn *renderedNode) InputTexture(port int) gpu.Texture {
	for _, s := range rn.slots {
		if s.port == port {
			return s.texture
		}
	}
	return nil
}

func (rn *renderedNode) UploadedMaterialVersion() uint64 {
	return rn.uploaded
}

func (rn *renderedNode) RendererID() uuid.UUID {
	return rn.r.id
}

func (rn *renderedNode) Backend() gpu.Backend {
	return rn.r.backend
}

func (rn *renderedNode) EmptyTexture() gpu.Texture {
	return rn.r.empty
}

func (rn *renderedNode) AddSampler(s gpu.Sampler, t gpu.Texture) int {
	if !rn.initializing {
		panic("renderer: AddSampler called outside CustomInit")
	}
	rn.slots = append(rn.slots, samplerSlot{port: -1, sampler: s, texture: t})
	return len(rn.slots) - 1
}

func (rn *renderedNode) SetSamplerTexture(i int, t gpu.Texture) {
	if i < 0 || i >= len(rn.slots) || rn.slots[i].texture == t {
		return
	}
	rn.slots[i].texture = t
	if rn.bindings != nil {
		rn.bindingsDirty = true
	}
}
