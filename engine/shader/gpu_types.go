package shader

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPURendererUniformSource is the canonical WGSL definition of the RendererUniform struct.
// Matches GPURendererUniform layout exactly (80 bytes).
//
//go:embed assets/renderer_uniform.wgsl
var GPURendererUniformSource string

// GPUProcessUniformSource is the canonical WGSL definition of the ProcessUniform struct.
// Matches GPUProcessUniform layout exactly (16 bytes).
//
//go:embed assets/process_uniform.wgsl
var GPUProcessUniformSource string

// GPUVertexInputSource is the WGSL vertex input of the fullscreen triangle.
//
//go:embed assets/vertex_input.wgsl
var GPUVertexInputSource string

// GPUVertexOutputSource is the WGSL varyings shared by the fullscreen vertex stage and every fragment stage.
//
//go:embed assets/vertex_output.wgsl
var GPUVertexOutputSource string

// FullscreenVertexSource is the vertex stage every node draws with.
//
//go:embed assets/fullscreen.vert.wgsl
var FullscreenVertexSource string

// Fixed slots of bind group 0.
const (
	RendererBinding = 0
	ProcessBinding  = 1
	MaterialBinding = 2
	// FirstSamplerBinding is the texture slot of the first sampled input; its sampler follows at +1.
	FirstSamplerBinding = 3
)

// SamplerBindings returns the texture and sampler slots of the i-th sampled input.
//
// Parameters:
//   - i: zero-based index of the sampled input
//
// Returns:
//   - uint32: texture slot
//   - uint32: sampler slot
func SamplerBindings(i int) (uint32, uint32) {
	tex := uint32(FirstSamplerBinding + 2*i)
	return tex, tex + 1
}

// GPURendererUniform is the GPU-aligned representation of the renderer uniform buffer shared by all nodes of a renderer.
// Size: 80 bytes.
type GPURendererUniform struct {
	MVP            [16]float32 // offset  0: mat4x4<f32>
	TexcoordAdjust [2]float32  // offset 64: vec2<f32>, texcoord.y = adjust.y + adjust.x * v
	RenderSize     [2]float32  // offset 72: vec2<f32>
}

// Size returns the size of the GPURendererUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g *GPURendererUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPURendererUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPURendererUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.MVP[i]))
	}
	for i := range 2 {
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(g.TexcoordAdjust[i]))
		binary.LittleEndian.PutUint32(buf[72+i*4:], math.Float32bits(g.RenderSize[i]))
	}
	return buf
}

// GPUProcessUniform is the GPU-aligned representation of a node's per-tick time block.
// Size: 16 bytes.
type GPUProcessUniform struct {
	Time      float32 // offset  0: seconds since the start of the parent interval
	TimeDelta float32 // offset  4: seconds since the previous tick
	Progress  float32 // offset  8: position in the parent interval, 0 when the parent has no duration
	PassIndex int32   // offset 12
}

// Size returns the size of the GPUProcessUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (g *GPUProcessUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUProcessUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUProcessUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(g.Time))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(g.TimeDelta))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(g.Progress))
	binary.LittleEndian.PutUint32(buf[12:], uint32(g.PassIndex))
	return buf
}
