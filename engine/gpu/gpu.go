// Package gpu defines the graphics backend contract the renderer is written against.
// Implementations live in sub-packages (webgpu for the real device, gputest for tests).
package gpu

import "errors"

// API selects the graphics API an output renders with.
type API int

const (
	// APIWebGPU renders through WebGPU on the platform's native driver.
	APIWebGPU API = iota
	// APINull renders nothing. It is used for headless graphs and tests.
	APINull
)

// String returns the lower-case API name.
func (a API) String() string {
	switch a {
	case APIWebGPU:
		return "webgpu"
	case APINull:
		return "null"
	default:
		return "unknown"
	}
}

// ErrSurfaceLost is returned by BeginFrame when the surface cannot provide a texture this frame.
// The frame is skipped; it is not a renderer failure.
var ErrSurfaceLost = errors.New("gpu: surface texture unavailable")

// Size is a pixel extent.
type Size struct {
	Width  int
	Height int
}

// Empty reports whether the extent has no pixels.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Color is a linear RGBA clear color.
type Color struct {
	R, G, B, A float64
}

// TextureFormat is the pixel format of a texture.
type TextureFormat int

const (
	// FormatRGBA8 is 8-bit unsigned normalized RGBA.
	FormatRGBA8 TextureFormat = iota
	// FormatR8 is a single 8-bit unsigned normalized channel.
	FormatR8
	// FormatR32F is a single 32-bit float channel. It is not filterable.
	FormatR32F
)

// BytesPerPixel returns the texel size of the format.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case FormatR8:
		return 1
	default:
		return 4
	}
}

// BufferUsage describes how a buffer is bound.
type BufferUsage int

const (
	// BufferUniform is a uniform buffer bound to a shader resource slot.
	BufferUniform BufferUsage = iota
	// BufferVertex is a vertex buffer.
	BufferVertex
)

// Filter is a sampler filter mode.
type Filter int

const (
	FilterLinear Filter = iota
	FilterNearest
)

// AddressMode is a sampler address mode.
type AddressMode int

const (
	AddressClampToEdge AddressMode = iota
	AddressRepeat
)

// SamplerDescriptor configures a sampler.
type SamplerDescriptor struct {
	MinFilter, MagFilter Filter
	AddressU, AddressV   AddressMode
}

// BindingKind is the kind of resource bound at a shader slot.
type BindingKind int

const (
	BindingUniformBuffer BindingKind = iota
	BindingTexture
	BindingSampler
)

// Binding is one shader-visible resource at a slot of bind group 0.
type Binding struct {
	Slot    uint32
	Kind    BindingKind
	Buffer  Buffer
	Texture Texture
	Sampler Sampler
}

// VertexFormat is the format of a vertex attribute.
type VertexFormat int

const (
	VertexFloat32 VertexFormat = iota
	VertexFloat32x2
	VertexFloat32x3
	VertexFloat32x4
)

// VertexAttribute is one attribute of an interleaved vertex layout.
type VertexAttribute struct {
	Location uint32
	Format   VertexFormat
	Offset   uint64
}

// VertexLayout describes one interleaved vertex buffer.
type VertexLayout struct {
	Stride     uint64
	Attributes []VertexAttribute
}

// ShaderStage is one compiled stage handed to the backend.
type ShaderStage struct {
	Label      string
	Source     string
	EntryPoint string
	SPIRV      []uint32
}

// PipelineDescriptor describes a graphics pipeline drawing into one render target.
type PipelineDescriptor struct {
	Label    string
	Vertex   ShaderStage
	Fragment ShaderStage
	Layout   VertexLayout
	// Bindings only needs Slot and Kind, plus the Sampler for sampler slots. A texture
	// followed by a nearest-filtering sampler is declared unfilterable.
	Bindings []Binding
	Target   RenderTarget
	// Blend enables premultiplied alpha blending.
	Blend bool
}

// Buffer is a GPU buffer.
type Buffer interface {
	Size() int
	Release()
}

// Texture is a 2D GPU texture.
type Texture interface {
	Size() Size
	Format() TextureFormat
	Release()
}

// Sampler is a texture sampler.
type Sampler interface {
	Release()
}

// RenderTarget is either an offscreen texture or the output surface.
type RenderTarget interface {
	// Texture returns the color texture, or nil for the surface.
	Texture() Texture
	// IsScreen reports whether the target is the output surface.
	IsScreen() bool
	// PixelSize returns the size of the target in pixels.
	PixelSize() Size
	Release()
}

// ResourceBindings is a set of shader resources bound together for a draw.
type ResourceBindings interface {
	Release()
}

// Pipeline is a compiled graphics pipeline.
type Pipeline interface {
	Release()
}

// UpdateBatch collects resource uploads that are flushed at the start of the next render pass.
type UpdateBatch interface {
	// UpdateDynamicBuffer writes data into a buffer that changes every frame.
	UpdateDynamicBuffer(b Buffer, offset int, data []byte)
	// UploadStaticBuffer writes data into a buffer that rarely changes.
	UploadStaticBuffer(b Buffer, offset int, data []byte)
	// UploadTexture replaces the whole content of a texture.
	UploadTexture(t Texture, data []byte, bytesPerRow int)
}

// CommandBuffer records the render passes of one frame.
type CommandBuffer interface {
	// BeginPass flushes batch and starts a pass into target cleared to clear.
	BeginPass(target RenderTarget, clear Color, batch UpdateBatch) error
	SetGraphicsPipeline(p Pipeline)
	SetShaderResources(r ResourceBindings)
	SetViewport(x, y, width, height float32)
	SetVertexInput(b Buffer)
	Draw(vertexCount uint32)
	EndPass()
}

// Window is the part of an output window a backend needs.
// Backends type-assert for their platform surface accessor.
type Window interface {
	Width() int
	Height() int
}

// Backend owns the device and the swapchain of one output surface and creates every
// resource a renderer draws with.
type Backend interface {
	// API returns the graphics API of the backend.
	API() API

	// SurfaceSize returns the current pixel size of the output surface.
	// The swapchain is reconfigured when the size changed since the last call.
	//
	// Returns:
	//   - Size: the surface size in pixels
	SurfaceSize() Size

	// CreateBuffer allocates a buffer.
	//
	// Parameters:
	//   - label: debug label
	//   - usage: uniform or vertex
	//   - size: size in bytes
	//
	// Returns:
	//   - Buffer: the created buffer
	//   - error: error if the device rejected the allocation
	CreateBuffer(label string, usage BufferUsage, size int) (Buffer, error)

	// CreateTexture allocates a sampled 2D texture.
	//
	// Parameters:
	//   - label: debug label
	//   - size: size in pixels
	//   - format: pixel format
	//   - renderTarget: true if the texture will also be rendered into
	//
	// Returns:
	//   - Texture: the created texture
	//   - error: error if the device rejected the allocation
	CreateTexture(label string, size Size, format TextureFormat, renderTarget bool) (Texture, error)

	// CreateSampler creates a sampler.
	CreateSampler(label string, desc SamplerDescriptor) (Sampler, error)

	// CreateTextureRenderTarget wraps a texture created with renderTarget=true as a pass target.
	// The target does not own the texture.
	CreateTextureRenderTarget(label string, t Texture) (RenderTarget, error)

	// ScreenRenderTarget returns the target that draws to the output surface.
	ScreenRenderTarget() RenderTarget

	// CreateResourceBindings creates a bind group from fully populated bindings.
	CreateResourceBindings(label string, bindings []Binding) (ResourceBindings, error)

	// CreateGraphicsPipeline compiles a pipeline for desc.Target.
	CreateGraphicsPipeline(desc PipelineDescriptor) (Pipeline, error)

	// NextResourceUpdateBatch returns an empty batch.
	NextResourceUpdateBatch() UpdateBatch

	// BeginFrame acquires the surface texture and starts recording.
	//
	// Returns:
	//   - CommandBuffer: the command buffer for this frame
	//   - error: ErrSurfaceLost if the frame must be skipped
	BeginFrame() (CommandBuffer, error)

	// EndFrame submits the recorded passes and presents the surface.
	EndFrame() error

	// Release destroys the device and the surface.
	Release()
}

// BackendFactory creates the backend for one output window.
type BackendFactory func(api API, window Window) (Backend, error)
