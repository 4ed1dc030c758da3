// Package gputest provides a recording gpu.Backend for tests that cannot open a device.
package gputest

import (
	"errors"
	"sync"

	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
)

// Window is a resizable stand-in for an output window.
type Window struct {
	mu            sync.Mutex
	width, height int
}

var _ gpu.Window = &Window{}

// NewWindow creates a window of the given pixel size.
func NewWindow(width, height int) *Window {
	return &Window{width: width, height: height}
}

func (w *Window) Width() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width
}

func (w *Window) Height() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.height
}

// Resize changes the reported size.
func (w *Window) Resize(width, height int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.width, w.height = width, height
}

// Buffer records a created buffer.
type Buffer struct {
	Label    string
	Usage    gpu.BufferUsage
	size     int
	Released bool
}

func (b *Buffer) Size() int { return b.size }
func (b *Buffer) Release()  { b.Released = true }

// Texture records a created texture.
type Texture struct {
	Label        string
	size         gpu.Size
	format       gpu.TextureFormat
	RenderTarget bool
	Released     bool
}

func (t *Texture) Size() gpu.Size              { return t.size }
func (t *Texture) Format() gpu.TextureFormat   { return t.format }
func (t *Texture) Release()                    { t.Released = true }

// Sampler records a created sampler.
type Sampler struct {
	Label    string
	Desc     gpu.SamplerDescriptor
	Released bool
}

func (s *Sampler) Release() { s.Released = true }

// RenderTarget records a texture target or the screen.
type RenderTarget struct {
	Label    string
	Tex      *Texture
	Screen   bool
	backend  *Backend
	Released bool
}

func (r *RenderTarget) Texture() gpu.Texture {
	if r.Tex == nil {
		return nil
	}
	return r.Tex
}

func (r *RenderTarget) IsScreen() bool { return r.Screen }

func (r *RenderTarget) PixelSize() gpu.Size {
	if r.Screen {
		return r.backend.SurfaceSize()
	}
	return r.Tex.size
}

func (r *RenderTarget) Release() {
	if !r.Screen {
		r.Released = true
	}
}

// Bindings records a created bind group.
type Bindings struct {
	Label    string
	Entries  []gpu.Binding
	Released bool
}

func (b *Bindings) Release() { b.Released = true }

// TextureAt returns the texture bound at slot, or nil.
func (b *Bindings) TextureAt(slot uint32) gpu.Texture {
	for _, e := range b.Entries {
		if e.Slot == slot && e.Kind == gpu.BindingTexture {
			return e.Texture
		}
	}
	return nil
}

// Pipeline records a created pipeline.
type Pipeline struct {
	Label    string
	Desc     gpu.PipelineDescriptor
	Released bool
}

func (p *Pipeline) Release() { p.Released = true }

// UploadKind tells which UpdateBatch method recorded an upload.
type UploadKind int

const (
	UploadDynamic UploadKind = iota
	UploadStatic
	UploadTexture
)

// Upload is one recorded batch operation. Data is a copy.
type Upload struct {
	Kind    UploadKind
	Buffer  *Buffer
	Texture *Texture
	Offset  int
	Data    []byte
}

// Batch records uploads until a pass flushes it.
type Batch struct {
	Uploads []Upload
}

var _ gpu.UpdateBatch = &Batch{}

func (b *Batch) UpdateDynamicBuffer(buf gpu.Buffer, offset int, data []byte) {
	b.Uploads = append(b.Uploads, Upload{Kind: UploadDynamic, Buffer: buf.(*Buffer), Offset: offset, Data: append([]byte(nil), data...)})
}

func (b *Batch) UploadStaticBuffer(buf gpu.Buffer, offset int, data []byte) {
	b.Uploads = append(b.Uploads, Upload{Kind: UploadStatic, Buffer: buf.(*Buffer), Offset: offset, Data: append([]byte(nil), data...)})
}

func (b *Batch) UploadTexture(t gpu.Texture, data []byte, bytesPerRow int) {
	b.Uploads = append(b.Uploads, Upload{Kind: UploadTexture, Texture: t.(*Texture), Data: append([]byte(nil), data...)})
}

// Pass is one recorded render pass.
type Pass struct {
	Target       *RenderTarget
	Clear        gpu.Color
	Pipeline     *Pipeline
	Bindings     *Bindings
	VertexBuffer *Buffer
	Viewport     [4]float32
	Draws        []uint32
	Uploads      []Upload
	Ended        bool
}

// CommandBuffer records passes into its backend.
type CommandBuffer struct {
	backend *Backend
	current *Pass
}

var _ gpu.CommandBuffer = &CommandBuffer{}

func (c *CommandBuffer) BeginPass(target gpu.RenderTarget, clear gpu.Color, batch gpu.UpdateBatch) error {
	p := &Pass{Target: target.(*RenderTarget), Clear: clear}
	if b, ok := batch.(*Batch); ok && b != nil {
		p.Uploads = b.Uploads
		c.backend.Uploads = append(c.backend.Uploads, b.Uploads...)
		b.Uploads = nil
	}
	c.current = p
	return nil
}

func (c *CommandBuffer) SetGraphicsPipeline(p gpu.Pipeline)      { c.current.Pipeline = p.(*Pipeline) }
func (c *CommandBuffer) SetShaderResources(r gpu.ResourceBindings) { c.current.Bindings = r.(*Bindings) }
func (c *CommandBuffer) SetVertexInput(b gpu.Buffer)             { c.current.VertexBuffer = b.(*Buffer) }
func (c *CommandBuffer) Draw(vertexCount uint32)                 { c.current.Draws = append(c.current.Draws, vertexCount) }

func (c *CommandBuffer) SetViewport(x, y, width, height float32) {
	c.current.Viewport = [4]float32{x, y, width, height}
}

func (c *CommandBuffer) EndPass() {
	c.current.Ended = true
	c.backend.Passes = append(c.backend.Passes, c.current)
	c.current = nil
}

// Backend is a recording gpu.Backend. Every created object is kept so tests can inspect it.
type Backend struct {
	api    gpu.API
	window gpu.Window
	screen *RenderTarget

	Buffers   []*Buffer
	Textures  []*Texture
	Samplers  []*Sampler
	Targets   []*RenderTarget
	Bindings  []*Bindings
	Pipelines []*Pipeline
	Passes    []*Pass
	Uploads   []Upload

	Frames   int
	Released bool

	// FailPipelines makes CreateGraphicsPipeline fail with this error when set.
	FailPipelines error
	// FailFrames makes BeginFrame fail with this error when set.
	FailFrames error
}

var _ gpu.Backend = &Backend{}

// NewBackend creates a recording backend drawing to window.
func NewBackend(api gpu.API, window gpu.Window) *Backend {
	b := &Backend{api: api, window: window}
	b.screen = &RenderTarget{Label: "screen", Screen: true, backend: b}
	return b
}

func (b *Backend) API() gpu.API { return b.api }

func (b *Backend) SurfaceSize() gpu.Size {
	if b.window == nil {
		return gpu.Size{}
	}
	return gpu.Size{Width: b.window.Width(), Height: b.window.Height()}
}

func (b *Backend) CreateBuffer(label string, usage gpu.BufferUsage, size int) (gpu.Buffer, error) {
	buf := &Buffer{Label: label, Usage: usage, size: size}
	b.Buffers = append(b.Buffers, buf)
	return buf, nil
}

func (b *Backend) CreateTexture(label string, size gpu.Size, format gpu.TextureFormat, renderTarget bool) (gpu.Texture, error) {
	if size.Empty() {
		return nil, errors.New("gputest: empty texture size")
	}
	t := &Texture{Label: label, size: size, format: format, RenderTarget: renderTarget}
	b.Textures = append(b.Textures, t)
	return t, nil
}

func (b *Backend) CreateSampler(label string, desc gpu.SamplerDescriptor) (gpu.Sampler, error) {
	s := &Sampler{Label: label, Desc: desc}
	b.Samplers = append(b.Samplers, s)
	return s, nil
}

func (b *Backend) CreateTextureRenderTarget(label string, t gpu.Texture) (gpu.RenderTarget, error) {
	tex, ok := t.(*Texture)
	if !ok || !tex.RenderTarget {
		return nil, errors.New("gputest: texture is not renderable")
	}
	rt := &RenderTarget{Label: label, Tex: tex, backend: b}
	b.Targets = append(b.Targets, rt)
	return rt, nil
}

func (b *Backend) ScreenRenderTarget() gpu.RenderTarget { return b.screen }

func (b *Backend) CreateResourceBindings(label string, bindings []gpu.Binding) (gpu.ResourceBindings, error) {
	rb := &Bindings{Label: label, Entries: append([]gpu.Binding(nil), bindings...)}
	b.Bindings = append(b.Bindings, rb)
	return rb, nil
}

func (b *Backend) CreateGraphicsPipeline(desc gpu.PipelineDescriptor) (gpu.Pipeline, error) {
	if b.FailPipelines != nil {
		return nil, b.FailPipelines
	}
	p := &Pipeline{Label: desc.Label, Desc: desc}
	b.Pipelines = append(b.Pipelines, p)
	return p, nil
}

func (b *Backend) NextResourceUpdateBatch() gpu.UpdateBatch { return &Batch{} }

func (b *Backend) BeginFrame() (gpu.CommandBuffer, error) {
	if b.FailFrames != nil {
		return nil, b.FailFrames
	}
	b.Frames++
	return &CommandBuffer{backend: b}, nil
}

func (b *Backend) EndFrame() error { return nil }

func (b *Backend) Release() { b.Released = true }

// LiveTextures returns the textures that were created and not released.
func (b *Backend) LiveTextures() []*Texture {
	var out []*Texture
	for _, t := range b.Textures {
		if !t.Released {
			out = append(out, t)
		}
	}
	return out
}

// UploadsTo returns the uploads recorded into buf.
func (b *Backend) UploadsTo(buf gpu.Buffer) []Upload {
	var out []Upload
	for _, u := range b.Uploads {
		if u.Buffer != nil && gpu.Buffer(u.Buffer) == buf {
			out = append(out, u)
		}
	}
	return out
}

// ResetRecording forgets recorded passes and uploads but keeps created objects.
func (b *Backend) ResetRecording() {
	b.Passes = nil
	b.Uploads = nil
}

// Factory creates one recording backend per window and remembers them.
type Factory struct {
	Backends []*Backend
	// Err makes Create fail when set.
	Err error
}

// Create implements gpu.BackendFactory.
func (f *Factory) Create(api gpu.API, window gpu.Window) (gpu.Backend, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	b := NewBackend(api, window)
	f.Backends = append(f.Backends, b)
	return b, nil
}
