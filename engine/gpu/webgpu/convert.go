package webgpu

import (
	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// textureFormat maps a gpu texture format onto the WebGPU format of offscreen textures.
func textureFormat(f gpu.TextureFormat) wgpu.TextureFormat {
	switch f {
	case gpu.FormatR8:
		return wgpu.TextureFormatR8Unorm
	case gpu.FormatR32F:
		return wgpu.TextureFormatR32Float
	default:
		return wgpu.TextureFormatRGBA8Unorm
	}
}

func filterMode(f gpu.Filter) wgpu.FilterMode {
	if f == gpu.FilterNearest {
		return wgpu.FilterModeNearest
	}
	return wgpu.FilterModeLinear
}

func addressMode(m gpu.AddressMode) wgpu.AddressMode {
	if m == gpu.AddressRepeat {
		return wgpu.AddressModeRepeat
	}
	return wgpu.AddressModeClampToEdge
}

func vertexFormat(f gpu.VertexFormat) wgpu.VertexFormat {
	switch f {
	case gpu.VertexFloat32:
		return wgpu.VertexFormatFloat32
	case gpu.VertexFloat32x2:
		return wgpu.VertexFormatFloat32x2
	case gpu.VertexFloat32x3:
		return wgpu.VertexFormatFloat32x3
	default:
		return wgpu.VertexFormatFloat32x4
	}
}

// vertexBuffers converts an interleaved layout. A layout without attributes draws without vertex buffers.
func vertexBuffers(l gpu.VertexLayout) []wgpu.VertexBufferLayout {
	if len(l.Attributes) == 0 {
		return nil
	}
	attrs := make([]wgpu.VertexAttribute, len(l.Attributes))
	for i, a := range l.Attributes {
		attrs[i] = wgpu.VertexAttribute{
			Format:         vertexFormat(a.Format),
			Offset:         a.Offset,
			ShaderLocation: a.Location,
		}
	}
	return []wgpu.VertexBufferLayout{{
		ArrayStride: l.Stride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}}
}

// premultipliedBlend blends a premultiplied source over the target.
var premultipliedBlend = wgpu.BlendState{
	Color: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorOne,
		DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		Operation: wgpu.BlendOperationAdd,
	},
	Alpha: wgpu.BlendComponent{
		SrcFactor: wgpu.BlendFactorOne,
		DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
		Operation: wgpu.BlendOperationAdd,
	},
}

// nearestSampler reports whether b binds a sampler that never filters.
func nearestSampler(b gpu.Binding) bool {
	s, ok := b.Sampler.(*sampler)
	return ok && s.nearest
}

// layoutEntries derives bind group layout entries from bindings. Only Slot, Kind and Sampler
// are read, so a pipeline and the bindings drawn with it produce the same layout.
//
// A texture immediately followed by a nearest sampler is declared unfilterable and its sampler
// non-filtering, which is what R32F audio textures require.
func layoutEntries(bindings []gpu.Binding) []wgpu.BindGroupLayoutEntry {
	entries := make([]wgpu.BindGroupLayoutEntry, 0, len(bindings))
	bySlot := make(map[uint32]gpu.Binding, len(bindings))
	for _, b := range bindings {
		bySlot[b.Slot] = b
	}

	for _, b := range bindings {
		e := wgpu.BindGroupLayoutEntry{Binding: b.Slot}
		switch b.Kind {
		case gpu.BindingUniformBuffer:
			e.Visibility = wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
			e.Buffer = wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}
		case gpu.BindingTexture:
			e.Visibility = wgpu.ShaderStageFragment
			sampleType := wgpu.TextureSampleTypeFloat
			if next, ok := bySlot[b.Slot+1]; ok && next.Kind == gpu.BindingSampler && nearestSampler(next) {
				sampleType = wgpu.TextureSampleTypeUnfilterableFloat
			}
			e.Texture = wgpu.TextureBindingLayout{
				SampleType:    sampleType,
				ViewDimension: wgpu.TextureViewDimension2D,
			}
		case gpu.BindingSampler:
			e.Visibility = wgpu.ShaderStageFragment
			samplerType := wgpu.SamplerBindingTypeFiltering
			if nearestSampler(b) {
				samplerType = wgpu.SamplerBindingTypeNonFiltering
			}
			e.Sampler = wgpu.SamplerBindingLayout{Type: samplerType}
		}
		entries = append(entries, e)
	}
	return entries
}
