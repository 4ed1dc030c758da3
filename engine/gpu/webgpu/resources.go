package webgpu

import (
	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

type buffer struct {
	buf  *wgpu.Buffer
	size int
}

func (b *buffer) Size() int { return b.size }

func (b *buffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

type texture struct {
	tex    *wgpu.Texture
	view   *wgpu.TextureView
	size   gpu.Size
	format gpu.TextureFormat
}

func (t *texture) Size() gpu.Size            { return t.size }
func (t *texture) Format() gpu.TextureFormat { return t.format }

func (t *texture) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.tex != nil {
		t.tex.Release()
		t.tex = nil
	}
}

type sampler struct {
	s       *wgpu.Sampler
	nearest bool
}

func (s *sampler) Release() {
	if s.s != nil {
		s.s.Release()
		s.s = nil
	}
}

// renderTarget draws into an offscreen texture it does not own, or into the surface.
type renderTarget struct {
	backend *backend
	tex     *texture
}

func (r *renderTarget) Texture() gpu.Texture {
	if r.tex == nil {
		return nil
	}
	return r.tex
}

func (r *renderTarget) IsScreen() bool { return r.tex == nil }

func (r *renderTarget) PixelSize() gpu.Size {
	if r.tex == nil {
		return r.backend.configuredSize()
	}
	return r.tex.size
}

func (r *renderTarget) Release() {}

type bindings struct {
	group  *wgpu.BindGroup
	layout *wgpu.BindGroupLayout
}

func (b *bindings) Release() {
	if b.group != nil {
		b.group.Release()
		b.group = nil
	}
	if b.layout != nil {
		b.layout.Release()
		b.layout = nil
	}
}

type pipeline struct {
	p      *wgpu.RenderPipeline
	layout *wgpu.PipelineLayout
	group  *wgpu.BindGroupLayout
}

func (p *pipeline) Release() {
	if p.p != nil {
		p.p.Release()
		p.p = nil
	}
	if p.layout != nil {
		p.layout.Release()
		p.layout = nil
	}
	if p.group != nil {
		p.group.Release()
		p.group = nil
	}
}

type uploadKind int

const (
	uploadBuffer uploadKind = iota
	uploadTexture
)

type upload struct {
	kind        uploadKind
	buf         *buffer
	tex         *texture
	offset      int
	bytesPerRow int
	data        []byte
}

// updateBatch queues writes until the pass that consumes it begins.
type updateBatch struct {
	uploads []upload
}

func (u *updateBatch) UpdateDynamicBuffer(b gpu.Buffer, offset int, data []byte) {
	u.uploads = append(u.uploads, upload{kind: uploadBuffer, buf: b.(*buffer), offset: offset, data: data})
}

func (u *updateBatch) UploadStaticBuffer(b gpu.Buffer, offset int, data []byte) {
	u.uploads = append(u.uploads, upload{kind: uploadBuffer, buf: b.(*buffer), offset: offset, data: data})
}

func (u *updateBatch) UploadTexture(t gpu.Texture, data []byte, bytesPerRow int) {
	u.uploads = append(u.uploads, upload{kind: uploadTexture, tex: t.(*texture), bytesPerRow: bytesPerRow, data: data})
}

// flush writes every queued upload through queue.
func (u *updateBatch) flush(queue *wgpu.Queue) {
	for _, up := range u.uploads {
		switch up.kind {
		case uploadBuffer:
			if up.buf.buf == nil {
				continue
			}
			queue.WriteBuffer(up.buf.buf, uint64(up.offset), up.data)
		case uploadTexture:
			if up.tex.tex == nil {
				continue
			}
			size := up.tex.size
			queue.WriteTexture(
				&wgpu.ImageCopyTexture{
					Texture:  up.tex.tex,
					MipLevel: 0,
					Origin:   wgpu.Origin3D{},
					Aspect:   wgpu.TextureAspectAll,
				},
				up.data,
				&wgpu.TextureDataLayout{
					Offset:       0,
					BytesPerRow:  uint32(up.bytesPerRow),
					RowsPerImage: uint32(size.Height),
				},
				&wgpu.Extent3D{
					Width:              uint32(size.Width),
					Height:             uint32(size.Height),
					DepthOrArrayLayers: 1,
				},
			)
		}
	}
	u.uploads = u.uploads[:0]
}
