package shader

import (
	"errors"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blendSource = `//@oxy:include varyings
//@oxy:include process
//@oxy:group 0 1 storage_uniform timing process

struct Material {
    mix: f32,
    tint: vec4<f32>,
    offset: vec2<f32>,
    steps: i32,
}

@group(0) @binding(2) var<uniform> material: Material;
@group(0) @binding(3) var first: texture_2d<f32>;
@group(0) @binding(4) var firstSampler: sampler;
@group(0) @binding(5) var second: texture_2d<f32>;
@group(0) @binding(6) var secondSampler: sampler;

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    let a = textureSample(first, firstSampler, in.texcoord + material.offset);
    let b = textureSample(second, secondSampler, in.texcoord);
    return mix(a, b, material.mix) * material.tint;
}
`

func TestPreProcessorExpandsIncludesAndGroups(t *testing.T) {
	pp := NewPreProcessor()
	out, err := pp.Process(blendSource)
	require.NoError(t, err)

	assert.Contains(t, out, "struct VertexOutput")
	assert.Contains(t, out, "struct ProcessUniform")
	assert.Contains(t, out, "@group(0) @binding(1) var<uniform> timing: ProcessUniform;")
	assert.NotContains(t, out, "@oxy:")

	require.Len(t, pp.Declarations(), 1)
	decl := pp.Declarations()[0]
	assert.Equal(t, AnnotationTypeBindingGroup, decl.Type)
	assert.Equal(t, 0, *decl.Group)
	assert.Equal(t, 1, *decl.Binding)
}

func TestPreProcessorIncludesOnce(t *testing.T) {
	out, err := NewPreProcessor().Process("//@oxy:include process\n//@oxy:include process\n")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "struct ProcessUniform"))
}

func TestPreProcessorRejectsMalformedAnnotations(t *testing.T) {
	cases := []string{
		"//@oxy:include camera",
		"//@oxy:include",
		"//@oxy:group 0 x storage_uniform a process",
		"//@oxy:group 0 1 storage_read a process",
		"//@oxy:group 0 1 storage_uniform a",
		"//@oxy:provider 0 1 material",
		"//@oxy:",
	}
	for _, src := range cases {
		_, err := NewPreProcessor().Process(src)
		assert.Error(t, err, src)
	}
}

func TestReflectInputsOrdersImagesBeforeMaterial(t *testing.T) {
	processed, err := NewPreProcessor().Process(blendSource)
	require.NoError(t, err)

	inputs, size, err := reflectInputs(processed)
	require.NoError(t, err)

	require.Len(t, inputs, 6)
	assert.Equal(t, Input{Name: "first", Type: InputImage, Binding: 3}, inputs[0])
	assert.Equal(t, Input{Name: "second", Type: InputImage, Binding: 5}, inputs[1])
	assert.Equal(t, Input{Name: "mix", Type: InputFloat, Binding: -1, Offset: 0}, inputs[2])
	assert.Equal(t, Input{Name: "tint", Type: InputVec4, Binding: -1, Offset: 16}, inputs[3])
	assert.Equal(t, Input{Name: "offset", Type: InputVec2, Binding: -1, Offset: 32}, inputs[4])
	assert.Equal(t, Input{Name: "steps", Type: InputInt, Binding: -1, Offset: 40}, inputs[5])
	assert.Equal(t, uint64(48), size)
}

func TestReflectInputsRejectsMisplacedTexture(t *testing.T) {
	src := `@group(0) @binding(5) var tex: texture_2d<f32>;`
	_, _, err := reflectInputs(src)
	assert.True(t, errors.Is(err, ErrShaderInputs))
}

func TestReflectInputsRejectsUnsupportedMember(t *testing.T) {
	src := `struct Material { m: mat4x4<f32>, }
@group(0) @binding(2) var<uniform> material: Material;`
	_, _, err := reflectInputs(src)
	assert.True(t, errors.Is(err, ErrShaderInputs))
}

func TestReflectInputsIgnoresCommentedDeclarations(t *testing.T) {
	src := `// @group(0) @binding(3) var tex: texture_2d<f32>;
/* @group(0) @binding(2) var<uniform> material: Material; */`
	inputs, size, err := reflectInputs(src)
	require.NoError(t, err)
	assert.Empty(t, inputs)
	assert.Zero(t, size)
}

func TestUniformLayout(t *testing.T) {
	offsets, size, err := UniformLayout([]string{"f32", "vec3<f32>", "f32", "vec2<f32>", "i32"})
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 16, 28, 32, 40}, offsets)
	assert.Equal(t, uint64(48), size)

	_, _, err = UniformLayout([]string{"texture_2d<f32>"})
	assert.Error(t, err)
}

func TestParseVertexLayoutOfFullscreenStage(t *testing.T) {
	processed, err := NewPreProcessor().Process(FullscreenVertexSource)
	require.NoError(t, err)

	layout, ok := parseVertexLayout(processed)
	require.True(t, ok)
	assert.Equal(t, uint64(16), layout.Stride)
	assert.Equal(t, []gpu.VertexAttribute{
		{Location: 0, Format: gpu.VertexFloat32x2, Offset: 0},
		{Location: 1, Format: gpu.VertexFloat32x2, Offset: 8},
	}, layout.Attributes)
	assert.Equal(t, "vs_main", parseEntryPoint(processed, StageVertex))
}

func TestGPUTypesMarshal(t *testing.T) {
	var r GPURendererUniform
	assert.Equal(t, 80, r.Size())
	assert.Len(t, r.Marshal(), 80)

	p := GPUProcessUniform{Time: 1, PassIndex: -1}
	assert.Equal(t, 16, p.Size())
	data := p.Marshal()
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, data[0:4])
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, data[12:16])
}

func TestSamplerBindings(t *testing.T) {
	tex, smp := SamplerBindings(0)
	assert.Equal(t, uint32(3), tex)
	assert.Equal(t, uint32(4), smp)
	tex, smp = SamplerBindings(2)
	assert.Equal(t, uint32(7), tex)
	assert.Equal(t, uint32(8), smp)
}

func TestCompileFragmentStage(t *testing.T) {
	s, err := Compile("blend", StageFragment, blendSource)
	require.NoError(t, err)
	assert.Equal(t, "fs_main", s.EntryPoint())
	assert.NotEmpty(t, s.Binary())
	assert.Len(t, s.Inputs(), 6)
	assert.Equal(t, uint64(48), s.MaterialSize())
	assert.Equal(t, "blend", s.StageDescriptor().Label)
}

func TestCompileFailures(t *testing.T) {
	_, err := Compile("none", StageFragment, "fn helper() {}")
	assert.True(t, errors.Is(err, ErrCompile))

	_, err = Compile("broken", StageFragment, "@fragment fn fs_main() -> @location(0) vec4<f32> { return nope; }")
	assert.True(t, errors.Is(err, ErrCompile))
}
