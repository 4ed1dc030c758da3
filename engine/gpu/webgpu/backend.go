// Package webgpu implements the gpu backend contract on WebGPU through wgpu-native.
package webgpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrUnsupportedAPI is returned by the factory for APIs this package cannot render with.
	ErrUnsupportedAPI = errors.New("webgpu: unsupported graphics api")

	// ErrNoSurface is returned when the window cannot describe a native surface.
	ErrNoSurface = errors.New("webgpu: window has no native surface")
)

// SurfaceSource is implemented by windows that can describe their native surface.
type SurfaceSource interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
}

// PresentMode controls how frames are delivered to the display.
type PresentMode int

const (
	// PresentModeVSync waits for the vertical blank.
	PresentModeVSync PresentMode = iota
	// PresentModeImmediate presents as soon as the frame is submitted.
	PresentModeImmediate
)

// ParsePresentMode maps "vsync" and "immediate" onto a PresentMode. Anything else is vsync.
func ParsePresentMode(s string) PresentMode {
	if s == "immediate" {
		return PresentModeImmediate
	}
	return PresentModeVSync
}

func (p PresentMode) wgpu() wgpu.PresentMode {
	if p == PresentModeImmediate {
		return wgpu.PresentModeImmediate
	}
	return wgpu.PresentModeFifo
}

// Option is a functional option for configuring a backend.
type Option func(*backend)

// WithPresentMode sets the surface present mode.
//
// Parameters:
//   - mode: vsync or immediate
//
// Returns:
//   - Option: option function to apply
func WithPresentMode(mode PresentMode) Option {
	return func(b *backend) {
		b.presentMode = mode
	}
}

// WithForceSoftware requests the fallback (software) adapter.
//
// Parameters:
//   - force: true to skip hardware adapters
//
// Returns:
//   - Option: option function to apply
func WithForceSoftware(force bool) Option {
	return func(b *backend) {
		b.forceSoftware = force
	}
}

type backend struct {
	mu sync.Mutex

	window        gpu.Window
	presentMode   PresentMode
	forceSoftware bool

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	alphaMode     wgpu.CompositeAlphaMode
	configured    gpu.Size

	screen *renderTarget

	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
}

var _ gpu.Backend = &backend{}

// NewFactory returns a gpu.BackendFactory creating one WebGPU device per output window.
func NewFactory(options ...Option) gpu.BackendFactory {
	return func(api gpu.API, window gpu.Window) (gpu.Backend, error) {
		if api != gpu.APIWebGPU {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedAPI, api)
		}
		return New(window, options...)
	}
}

// New creates a device and a surface for window.
//
// Parameters:
//   - window: the output window, which must implement SurfaceSource
//   - options: functional options
//
// Returns:
//   - gpu.Backend: the backend
//   - error: ErrNoSurface, or the error of requesting the adapter or device
func New(window gpu.Window, options ...Option) (gpu.Backend, error) {
	src, ok := window.(SurfaceSource)
	if !ok {
		return nil, ErrNoSurface
	}
	desc := src.SurfaceDescriptor()
	if desc == nil {
		return nil, ErrNoSurface
	}

	b := &backend{window: window}
	for _, opt := range options {
		opt(b)
	}
	b.screen = &renderTarget{backend: b}

	b.instance = wgpu.CreateInstance(nil)
	b.surface = b.instance.CreateSurface(desc)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.forceSoftware,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("webgpu: request adapter: %w", err)
	}
	b.adapter = a

	limits := wgpu.DefaultLimits()
	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          "oxy-gfx device",
		RequiredLimits: &wgpu.RequiredLimits{Limits: limits},
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("webgpu: request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 || len(capabilities.AlphaModes) == 0 {
		b.Release()
		return nil, ErrNoSurface
	}
	b.surfaceFormat = capabilities.Formats[0]
	b.alphaMode = capabilities.AlphaModes[0]
	b.SurfaceSize()

	common.Logger().Info("webgpu backend ready", "format", b.surfaceFormat, "software", b.forceSoftware)
	return b, nil
}

func (b *backend) API() gpu.API {
	return gpu.APIWebGPU
}

// configureSurface must be called with mu held.
func (b *backend) configureSurface(size gpu.Size) {
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(size.Width),
		Height:      uint32(size.Height),
		PresentMode: b.presentMode.wgpu(),
		AlphaMode:   b.alphaMode,
	})
	b.configured = size
}

func (b *backend) configuredSize() gpu.Size {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.configured
}

func (b *backend) SurfaceSize() gpu.Size {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := gpu.Size{Width: b.window.Width(), Height: b.window.Height()}
	if !size.Empty() && size != b.configured {
		b.configureSurface(size)
	}
	return size
}

func (b *backend) CreateBuffer(label string, usage gpu.BufferUsage, size int) (gpu.Buffer, error) {
	u := wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
	if usage == gpu.BufferVertex {
		u = wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
	}
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  uint64(size),
		Usage: u,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: create buffer %s: %w", label, err)
	}
	return &buffer{buf: buf, size: size}, nil
}

func (b *backend) CreateTexture(label string, size gpu.Size, format gpu.TextureFormat, renderTarget bool) (gpu.Texture, error) {
	usage := wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
	if renderTarget {
		usage |= wgpu.TextureUsageRenderAttachment
	}
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     label,
		Usage:     usage,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              uint32(size.Width),
			Height:             uint32(size.Height),
			DepthOrArrayLayers: 1,
		},
		Format:        textureFormat(format),
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: create texture %s: %w", label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("webgpu: create view %s: %w", label, err)
	}
	return &texture{tex: tex, view: view, size: size, format: format}, nil
}

func (b *backend) CreateSampler(label string, desc gpu.SamplerDescriptor) (gpu.Sampler, error) {
	s, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  addressMode(desc.AddressU),
		AddressModeV:  addressMode(desc.AddressV),
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     filterMode(desc.MagFilter),
		MinFilter:     filterMode(desc.MinFilter),
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: create sampler %s: %w", label, err)
	}
	nearest := desc.MinFilter == gpu.FilterNearest && desc.MagFilter == gpu.FilterNearest
	return &sampler{s: s, nearest: nearest}, nil
}

func (b *backend) CreateTextureRenderTarget(label string, t gpu.Texture) (gpu.RenderTarget, error) {
	tex, ok := t.(*texture)
	if !ok || tex.view == nil {
		return nil, fmt.Errorf("webgpu: render target %s: texture was not created by this backend", label)
	}
	return &renderTarget{backend: b, tex: tex}, nil
}

func (b *backend) ScreenRenderTarget() gpu.RenderTarget {
	return b.screen
}

func (b *backend) CreateResourceBindings(label string, entries []gpu.Binding) (gpu.ResourceBindings, error) {
	layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: layoutEntries(entries),
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: bind group layout %s: %w", label, err)
	}

	groupEntries := make([]wgpu.BindGroupEntry, len(entries))
	for i, e := range entries {
		ge := wgpu.BindGroupEntry{Binding: e.Slot}
		switch e.Kind {
		case gpu.BindingUniformBuffer:
			buf, ok := e.Buffer.(*buffer)
			if !ok {
				layout.Release()
				return nil, fmt.Errorf("webgpu: bindings %s: slot %d has no buffer", label, e.Slot)
			}
			ge.Buffer = buf.buf
			ge.Size = wgpu.WholeSize
		case gpu.BindingTexture:
			tex, ok := e.Texture.(*texture)
			if !ok {
				layout.Release()
				return nil, fmt.Errorf("webgpu: bindings %s: slot %d has no texture", label, e.Slot)
			}
			ge.TextureView = tex.view
		case gpu.BindingSampler:
			s, ok := e.Sampler.(*sampler)
			if !ok {
				layout.Release()
				return nil, fmt.Errorf("webgpu: bindings %s: slot %d has no sampler", label, e.Slot)
			}
			ge.Sampler = s.s
		}
		groupEntries[i] = ge
	}

	group, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  layout,
		Entries: groupEntries,
	})
	if err != nil {
		layout.Release()
		return nil, fmt.Errorf("webgpu: bind group %s: %w", label, err)
	}
	return &bindings{group: group, layout: layout}, nil
}

func (b *backend) shaderModule(stage gpu.ShaderStage) (*wgpu.ShaderModule, error) {
	desc := &wgpu.ShaderModuleDescriptor{Label: stage.Label}
	if stage.Source != "" {
		desc.WGSLDescriptor = &wgpu.ShaderModuleWGSLDescriptor{Code: stage.Source}
	} else {
		desc.SPIRVDescriptor = &wgpu.ShaderModuleSPIRVDescriptor{Code: stage.SPIRV}
	}
	return b.device.CreateShaderModule(desc)
}

func (b *backend) CreateGraphicsPipeline(desc gpu.PipelineDescriptor) (gpu.Pipeline, error) {
	vs, err := b.shaderModule(desc.Vertex)
	if err != nil {
		return nil, fmt.Errorf("webgpu: pipeline %s: vertex: %w", desc.Label, err)
	}
	defer vs.Release()
	fs, err := b.shaderModule(desc.Fragment)
	if err != nil {
		return nil, fmt.Errorf("webgpu: pipeline %s: fragment: %w", desc.Label, err)
	}
	defer fs.Release()

	group, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: layoutEntries(desc.Bindings),
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: pipeline %s: bind group layout: %w", desc.Label, err)
	}
	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: []*wgpu.BindGroupLayout{group},
	})
	if err != nil {
		group.Release()
		return nil, fmt.Errorf("webgpu: pipeline %s: layout: %w", desc.Label, err)
	}

	format := b.surfaceFormat
	if desc.Target != nil && !desc.Target.IsScreen() {
		format = textureFormat(desc.Target.Texture().Format())
	}
	target := wgpu.ColorTargetState{Format: format, WriteMask: wgpu.ColorWriteMaskAll}
	if desc.Blend {
		blend := premultipliedBlend
		target.Blend = &blend
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: desc.Vertex.EntryPoint,
			Buffers:    vertexBuffers(desc.Layout),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: desc.Fragment.EntryPoint,
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		layout.Release()
		group.Release()
		return nil, fmt.Errorf("webgpu: pipeline %s: %w", desc.Label, err)
	}
	return &pipeline{p: created, layout: layout, group: group}, nil
}

func (b *backend) NextResourceUpdateBatch() gpu.UpdateBatch {
	return &updateBatch{}
}

func (b *backend) BeginFrame() (gpu.CommandBuffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface != nil {
		return nil, fmt.Errorf("webgpu: previous frame not presented")
	}
	if b.configured.Empty() {
		return nil, gpu.ErrSurfaceLost
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gpu.ErrSurfaceLost, err)
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return nil, fmt.Errorf("%w: %v", gpu.ErrSurfaceLost, err)
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return nil, fmt.Errorf("webgpu: command encoder: %w", err)
	}

	b.frameEncoder = encoder
	b.frameSurface = surfaceTexture
	b.frameView = view
	return &commandBuffer{b: b}, nil
}

func (b *backend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return nil
	}
	if b.framePass != nil {
		b.endPass()
	}

	cmd, err := b.frameEncoder.Finish(nil)
	if err == nil {
		b.queue.Submit(cmd)
		cmd.Release()
		b.surface.Present()
	}
	b.releaseFrame()
	if err != nil {
		return fmt.Errorf("webgpu: finish frame: %w", err)
	}
	return nil
}

// releaseFrame must be called with mu held.
func (b *backend) releaseFrame() {
	if b.frameEncoder != nil {
		b.frameEncoder.Release()
		b.frameEncoder = nil
	}
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

// endPass must be called with mu held.
func (b *backend) endPass() {
	b.framePass.End()
	b.framePass.Release()
	b.framePass = nil
}

func (b *backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass != nil {
		b.endPass()
	}
	b.releaseFrame()
	b.queue = nil
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// commandBuffer records into the frame encoder of its backend.
type commandBuffer struct {
	b *backend
}

func (c *commandBuffer) BeginPass(target gpu.RenderTarget, clear gpu.Color, batch gpu.UpdateBatch) error {
	b := c.b
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return fmt.Errorf("webgpu: pass outside a frame")
	}
	if b.framePass != nil {
		b.endPass()
	}
	if ub, ok := batch.(*updateBatch); ok && ub != nil {
		ub.flush(b.queue)
	}

	view := b.frameView
	if rt, ok := target.(*renderTarget); ok && rt.tex != nil {
		view = rt.tex.view
	}
	b.framePass = b.frameEncoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: clear.R, G: clear.G, B: clear.B, A: clear.A},
		}},
	})
	return nil
}

func (c *commandBuffer) SetGraphicsPipeline(p gpu.Pipeline) {
	c.withPass(func(pass *wgpu.RenderPassEncoder) {
		pass.SetPipeline(p.(*pipeline).p)
	})
}

func (c *commandBuffer) SetShaderResources(r gpu.ResourceBindings) {
	c.withPass(func(pass *wgpu.RenderPassEncoder) {
		pass.SetBindGroup(0, r.(*bindings).group, nil)
	})
}

func (c *commandBuffer) SetViewport(x, y, width, height float32) {
	c.withPass(func(pass *wgpu.RenderPassEncoder) {
		pass.SetViewport(x, y, width, height, 0, 1)
	})
}

func (c *commandBuffer) SetVertexInput(buf gpu.Buffer) {
	c.withPass(func(pass *wgpu.RenderPassEncoder) {
		pass.SetVertexBuffer(0, buf.(*buffer).buf, 0, wgpu.WholeSize)
	})
}

func (c *commandBuffer) Draw(vertexCount uint32) {
	c.withPass(func(pass *wgpu.RenderPassEncoder) {
		pass.Draw(vertexCount, 1, 0, 0)
	})
}

func (c *commandBuffer) EndPass() {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if c.b.framePass != nil {
		c.b.endPass()
	}
}

func (c *commandBuffer) withPass(fn func(pass *wgpu.RenderPassEncoder)) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if c.b.framePass != nil {
		fn(c.b.framePass)
	}
}
