package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() GraphDocument {
	return GraphDocument{
		Nodes: []NodeDocument{
			{Kind: "color", Label: "c", Inputs: []PortDocument{{Name: "color", Type: "vec4", Value: []float32{1, 0.5, 0, 1}}}},
			{Kind: "filter", Source: gainFilter, Width: 64, Height: 32},
			{Kind: "video", Path: "clip.mp4"},
			{Kind: "screen"},
		},
		Edges: []EdgeDocument{{From: 0, To: 1}, {From: 1, To: 3}},
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	data, err := MarshalYAML(sampleGraph())
	require.NoError(t, err)
	assert.Contains(t, string(data), "kind: filter")
	assert.False(t, IsBinary(data))

	doc, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, sampleGraph(), doc)
}

func TestBinaryRoundTrip(t *testing.T) {
	data, err := MarshalBinary(sampleGraph())
	require.NoError(t, err)
	assert.True(t, IsBinary(data))

	doc, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, sampleGraph(), doc)
}

func TestBinaryRejectsCorruptData(t *testing.T) {
	data, err := MarshalBinary(sampleGraph())
	require.NoError(t, err)

	_, err = UnmarshalBinary(data[:len(binaryMagic)+3])
	assert.ErrorIs(t, err, ErrBadDocument)
	_, err = UnmarshalBinary([]byte("nodes: []"))
	assert.ErrorIs(t, err, ErrBadDocument)
}

func TestSaveChoosesFormatByExtension(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"graph.yaml", "graph.oxg"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(path, sampleGraph()))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, filepath.Ext(name) == ".oxg", IsBinary(raw), name)

		doc, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, sampleGraph(), doc)
	}

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
