package node

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-gfx/engine/video"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRenderContext records what an extension asks of its renderer.
type fakeRenderContext struct {
	id       uuid.UUID
	backend  *gputest.Backend
	empty    gpu.Texture
	samplers []gpu.Sampler
	textures []gpu.Texture
}

func newFakeRenderContext(t *testing.T) *fakeRenderContext {
	b := gputest.NewBackend(gpu.APINull, gputest.NewWindow(64, 64))
	empty, err := b.CreateTexture("empty", gpu.Size{Width: 1, Height: 1}, gpu.FormatRGBA8, false)
	require.NoError(t, err)
	return &fakeRenderContext{id: uuid.New(), backend: b, empty: empty}
}

func (f *fakeRenderContext) RendererID() uuid.UUID     { return f.id }
func (f *fakeRenderContext) Backend() gpu.Backend      { return f.backend }
func (f *fakeRenderContext) EmptyTexture() gpu.Texture { return f.empty }

func (f *fakeRenderContext) AddSampler(s gpu.Sampler, t gpu.Texture) int {
	f.samplers = append(f.samplers, s)
	f.textures = append(f.textures, t)
	return len(f.samplers) - 1
}

func (f *fakeRenderContext) SetSamplerTexture(i int, t gpu.Texture) {
	f.textures[i] = t
}

func floatAt(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func TestColorNodeDefaults(t *testing.T) {
	n := NewColorNode()
	assert.Equal(t, KindColor, n.Kind())
	require.Len(t, n.Inputs(), 1)
	require.Len(t, n.Outputs(), 1)
	assert.Equal(t, TypeVec4, n.Inputs()[0].Type)
	assert.Equal(t, TypeImage, n.Outputs()[0].Type)
	assert.Equal(t, uint64(16), n.MaterialSize())

	buf := make([]byte, n.MaterialSize())
	n.PackMaterial(buf)
	assert.InDelta(t, 0.6, floatAt(buf, 0), 1e-6)
	assert.InDelta(t, 0.3, floatAt(buf, 4), 1e-6)
	assert.InDelta(t, 0.78, floatAt(buf, 8), 1e-6)
	assert.InDelta(t, 1.0, floatAt(buf, 12), 1e-6)
}

func TestSetValueAdvancesVersionOnlyOnChange(t *testing.T) {
	n := NewColorNode()
	v0 := n.MaterialVersion()

	assert.True(t, n.SetValue(0, Vec4(1, 0, 0, 1)))
	v1 := n.MaterialVersion()
	assert.Greater(t, v1, v0)

	assert.False(t, n.SetValue(0, Vec4(1, 0, 0, 1)))
	assert.False(t, n.SetValue(0, String("red")))
	assert.False(t, n.SetValue(3, Float(1)))
	assert.Equal(t, v1, n.MaterialVersion())
}

func TestProcessComputesTimeBlock(t *testing.T) {
	n := NewNoiseNode()
	n.Process(Token{Date: 2 * time.Second, ParentDuration: 4 * time.Second})
	p := n.ProcessUniform()
	assert.InDelta(t, 2.0, p.Time, 1e-6)
	assert.InDelta(t, 2.0, p.TimeDelta, 1e-6)
	assert.InDelta(t, 0.5, p.Progress, 1e-6)

	n.Process(Token{Date: 3 * time.Second})
	p = n.ProcessUniform()
	assert.InDelta(t, 1.0, p.TimeDelta, 1e-6)
	assert.Zero(t, p.Progress)
	assert.Zero(t, p.PassIndex)
}

func TestBuiltinNodePorts(t *testing.T) {
	assert.Empty(t, NewNoiseNode().Inputs())
	assert.Zero(t, NewNoiseNode().MaterialSize())

	p := NewProductNode(WithLabel("mix"))
	assert.Equal(t, "mix", p.Label())
	require.Len(t, p.Inputs(), 2)
	assert.Equal(t, TypeImage, p.Inputs()[1].Type)

	w := gputest.NewWindow(10, 10)
	s := NewScreenNode(w, WithRenderSize(4, 4))
	assert.True(t, s.IsOutput())
	assert.Same(t, w, s.Window())
	assert.Empty(t, s.Outputs())
	_, fixed := s.RenderSize()
	assert.False(t, fixed)

	c := NewColorNode(WithRenderSize(32, 16))
	size, fixed := c.RenderSize()
	assert.True(t, fixed)
	assert.Equal(t, gpu.Size{Width: 32, Height: 16}, size)
}

const gainFilter = `//@oxy:include varyings

struct Material {
    gain: f32,
    offset: vec2<f32>,
}

@group(0) @binding(2) var<uniform> material: Material;
@group(0) @binding(3) var src: texture_2d<f32>;
@group(0) @binding(4) var srcSampler: sampler;

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(src, srcSampler, in.texcoord + material.offset) * material.gain;
}
`

func TestFilterNodeDerivesPorts(t *testing.T) {
	n, err := NewFilterNode(gainFilter)
	require.NoError(t, err)

	require.Len(t, n.Inputs(), 3)
	assert.Equal(t, TypeImage, n.Inputs()[0].Type)
	assert.Equal(t, "src", n.Inputs()[0].Name)
	assert.Equal(t, TypeFloat, n.Inputs()[1].Type)
	assert.Equal(t, TypeVec2, n.Inputs()[2].Type)
	assert.Equal(t, uint64(16), n.MaterialSize())
	assert.Equal(t, gainFilter, n.Source())

	n.SetValue(1, Float(2))
	n.SetValue(2, Vec2(0.25, 0.5))
	buf := make([]byte, n.MaterialSize())
	n.PackMaterial(buf)
	assert.Equal(t, float32(2), floatAt(buf, 0))
	assert.Equal(t, float32(0.25), floatAt(buf, 8))
	assert.Equal(t, float32(0.5), floatAt(buf, 12))
}

func TestFilterNodeDefaultSource(t *testing.T) {
	n, err := NewFilterNode("")
	require.NoError(t, err)
	require.Len(t, n.Inputs(), 1)
	assert.Equal(t, TypeVec4, n.Inputs()[0].Type)
	assert.Equal(t, DefaultFilterSource, n.Source())
}

func TestFilterNodeRejectsBadSource(t *testing.T) {
	_, err := NewFilterNode("@fragment fn fs_main() -> @location(0) vec4<f32> { return undefined_thing; }")
	assert.Error(t, err)
}

const tintISF = `/*{
  "DESCRIPTION": "tint",
  "INPUTS": [
    {"NAME": "amount", "TYPE": "float", "DEFAULT": 0.5},
    {"NAME": "inputImage", "TYPE": "image"},
    {"NAME": "flip", "TYPE": "bool", "DEFAULT": true},
    {"NAME": "tint", "TYPE": "color", "DEFAULT": [1.0, 0.5, 0.25, 1.0]},
    {"NAME": "spectrum", "TYPE": "audioFFT"},
    {"NAME": "wave", "TYPE": "audio", "MAX": 64}
  ]
}*/
@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let c = textureSample(inputImage, inputImageSampler, in.texcoord);
    let w = textureSample(wave, waveSampler, vec2<f32>(in.texcoord.x, 0.0)).r;
    return mix(c, material.tint, material.amount) + vec4<f32>(w, 0.0, 0.0, 0.0) * f32(material.flip) * timing.progress;
}
`

func TestParseISF(t *testing.T) {
	desc, body, err := ParseISF(tintISF)
	require.NoError(t, err)
	assert.Equal(t, "tint", desc.Description)
	assert.Len(t, desc.Inputs, 6)
	assert.Contains(t, body, "fn fs_main")

	_, _, err = ParseISF("@fragment fn fs_main() {}")
	assert.Error(t, err)
	_, _, err = ParseISF("/*{ not json }*/")
	assert.Error(t, err)
}

func TestISFNodePorts(t *testing.T) {
	n, err := NewISFNode(tintISF)
	require.NoError(t, err)

	ports := n.Inputs()
	require.Len(t, ports, 5)
	assert.Equal(t, []Type{TypeFloat, TypeImage, TypeInt, TypeVec4, TypeAudio},
		[]Type{ports[0].Type, ports[1].Type, ports[2].Type, ports[3].Type, ports[4].Type})
	assert.Equal(t, Float(0.5), ports[0].Value)
	assert.Equal(t, Int(1), ports[2].Value)
	assert.Equal(t, Vec4(1, 0.5, 0.25, 1), ports[3].Value)
	assert.Equal(t, 64, ports[4].Audio.FixedSize)
	assert.Equal(t, uint64(32), n.MaterialSize())
	assert.NotNil(t, n.Extension())

	_, err = NewISFNode(`/*{"INPUTS": [{"NAME": "m", "TYPE": "matrix"}]}*/`)
	assert.Error(t, err)
}

func TestISFAudioExtensionUploadsTexture(t *testing.T) {
	n, err := NewISFNode(tintISF)
	require.NoError(t, err)
	rc := newFakeRenderContext(t)
	ext := n.Extension()

	require.NoError(t, ext.CustomInit(rc))
	require.Len(t, rc.samplers, 1)
	assert.Equal(t, gpu.FilterNearest, rc.samplers[0].(*gputest.Sampler).Desc.MinFilter)
	assert.Same(t, rc.empty, rc.textures[0])

	batch := &gputest.Batch{}
	require.NoError(t, ext.CustomUpdate(rc, batch))
	assert.Same(t, rc.empty, rc.textures[0])
	assert.Empty(t, batch.Uploads)

	n.SetAudio(4, [][]float32{{1, 2, 3}, {4}})
	require.NoError(t, ext.CustomUpdate(rc, batch))
	tex := rc.textures[0].(*gputest.Texture)
	assert.Equal(t, gpu.FormatR32F, tex.Format())
	assert.Equal(t, gpu.Size{Width: 64, Height: 2}, tex.Size())
	require.Len(t, batch.Uploads, 1)
	assert.Len(t, batch.Uploads[0].Data, 64*2*4)

	require.NoError(t, ext.CustomUpdate(rc, batch))
	assert.Len(t, batch.Uploads, 1)

	ext.CustomRelease(rc)
	assert.True(t, tex.Released)
	assert.True(t, rc.samplers[0].(*gputest.Sampler).Released)
}

func yuvFrames() []*video.Frame {
	return []*video.Frame{{
		Planes:  [][]byte{make([]byte, 8), {1, 2}, {3, 4}},
		Strides: []int{4, 2, 2},
		Width:   4,
		Height:  2,
	}}
}

func TestVideoNodeUploadsEachFrameOnce(t *testing.T) {
	dec := video.NewMemoryDecoder(video.PixelFormatYUV420P, 4, 2, yuvFrames(), true)
	n, err := NewVideoNode(dec, "clip.mp4")
	require.NoError(t, err)
	assert.Empty(t, n.Inputs())
	assert.Equal(t, "clip.mp4", n.Path())

	rc := newFakeRenderContext(t)
	ext := n.Extension()
	require.NoError(t, ext.CustomInit(rc))
	require.Len(t, rc.textures, 3)
	assert.Equal(t, gpu.Size{Width: 4, Height: 2}, rc.textures[0].Size())
	assert.Equal(t, gpu.Size{Width: 2, Height: 1}, rc.textures[1].Size())
	assert.Equal(t, gpu.FormatR8, rc.textures[2].Format())

	batch := &gputest.Batch{}
	require.NoError(t, ext.CustomUpdate(rc, batch))
	assert.Empty(t, batch.Uploads)

	n.Process(Token{})
	require.NoError(t, ext.CustomUpdate(rc, batch))
	assert.Len(t, batch.Uploads, 3)
	require.NoError(t, ext.CustomUpdate(rc, batch))
	assert.Len(t, batch.Uploads, 3)

	other := newFakeRenderContext(t)
	require.NoError(t, ext.CustomInit(other))
	otherBatch := &gputest.Batch{}
	require.NoError(t, ext.CustomUpdate(other, otherBatch))
	assert.Len(t, otherBatch.Uploads, 3)

	n.Release()
	_, err = dec.ReadFrame()
	assert.Error(t, err)
}

func TestVideoNodeRGB0(t *testing.T) {
	frame := &video.Frame{Planes: [][]byte{make([]byte, 16)}, Strides: []int{8}, Width: 2, Height: 2}
	dec := video.NewMemoryDecoder(video.PixelFormatRGB0, 2, 2, []*video.Frame{frame}, false)
	n, err := NewVideoNode(dec, "still.png")
	require.NoError(t, err)

	rc := newFakeRenderContext(t)
	require.NoError(t, n.Extension().CustomInit(rc))
	require.Len(t, rc.textures, 1)
	assert.Equal(t, gpu.FormatRGBA8, rc.textures[0].Format())
}

func TestVideoNodeRejectsUnknownFormat(t *testing.T) {
	dec := video.NewMemoryDecoder(video.PixelFormatUnknown, 2, 2, nil, false)
	_, err := NewVideoNode(dec, "clip.hap")
	assert.True(t, errors.Is(err, ErrUnsupportedPixelFormat))
}
