package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-gfx/engine/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gainFilter = `//@oxy:include varyings

struct Material {
    gain: f32,
}

@group(0) @binding(2) var<uniform> material: Material;
@group(0) @binding(3) var src: texture_2d<f32>;
@group(0) @binding(4) var srcSampler: sampler;

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSample(src, srcSampler, in.texcoord) * material.gain;
}
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		convertTo = ""
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidatePrintsInputs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gain.wgsl")
	require.NoError(t, os.WriteFile(path, []byte(gainFilter), 0o644))

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "filter")
	assert.Contains(t, out, "src")
	assert.Contains(t, out, "gain")
	assert.Contains(t, out, "float")
}

func TestValidateRejectsMedia(t *testing.T) {
	_, err := execute(t, "validate", filepath.Join(t.TempDir(), "clip.mp4"))
	assert.Error(t, err)
}

func TestInspectConvertsDocument(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "graph.oxg")
	doc := document.GraphDocument{
		Nodes: []document.NodeDocument{
			{Kind: "color", Label: "bg", Inputs: []document.PortDocument{{Name: "color", Type: "vec4", Value: []float32{1, 0, 0, 1}}}},
			{Kind: "screen", Label: "out"},
		},
		Edges: []document.EdgeDocument{{From: 0, To: 1}},
	}
	require.NoError(t, document.Save(src, doc))

	dst := filepath.Join(dir, "graph.yaml")
	out, err := execute(t, "inspect", src, "--output", dst)
	require.NoError(t, err)
	assert.Contains(t, out, "label: bg")

	saved, err := document.Load(dst)
	require.NoError(t, err)
	assert.Equal(t, doc, saved)
}
