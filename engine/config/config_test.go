package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Graph.Nodes, 2)
	assert.Equal(t, slog.LevelInfo, cfg.Log.SlogLevel())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "player.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
window:
  title: stage
  width: 640
engine:
  frame_rate: 30
log:
  level: debug
metrics:
  addr: localhost:9100
graph:
  nodes:
    - name: clip
      kind: video
      path: clip.mp4
    - name: tint
      kind: filter
      values:
        gain: [0.5]
    - name: out
      kind: screen
  edges:
    - {from: clip, to: tint}
    - {from: tint, to: out}
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "stage", cfg.Window.Title)
	assert.Equal(t, 640, cfg.Window.Width)
	assert.Equal(t, 720, cfg.Window.Height)
	assert.Equal(t, 30.0, cfg.Engine.FrameRate)
	assert.Equal(t, 60.0, cfg.Engine.TickRate)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
	require.Len(t, cfg.Graph.Nodes, 3)
	assert.Equal(t, []float64{0.5}, cfg.Graph.Nodes[1].Values["gain"])
	require.Len(t, cfg.Graph.Edges, 2)
	assert.Equal(t, "out", cfg.Graph.Edges[1].To)
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(dir, "elsewhere", "tint.wgsl")
	path := filepath.Join(dir, "player.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
graph:
  nodes:
    - {name: clip, kind: video, path: media/clip.mp4}
    - {name: tint, kind: filter, source: shaders/tint.wgsl}
    - {name: abs, kind: filter, source: `+abs+`}
    - {name: out, kind: screen}
  edges: []
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "media", "clip.mp4"), cfg.Graph.Nodes[0].Path)
	assert.Equal(t, filepath.Join(dir, "shaders", "tint.wgsl"), cfg.Graph.Nodes[1].Source)
	assert.Equal(t, abs, cfg.Graph.Nodes[2].Source)
	assert.Empty(t, cfg.Graph.Nodes[3].Source)
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad present mode", "renderer: {present_mode: fifo}", "PresentMode"},
		{"zero width", "window: {width: 0}", "Width"},
		{"bad exporter", "tracing: {exporter: jaeger}", "Exporter"},
		{"bad level", "log: {level: trace}", "Level"},
		{"bad metrics addr", "metrics: {addr: nope}", "Addr"},
		{"unknown kind", "graph: {nodes: [{name: a, kind: blur}]}", "Kind"},
		{"video without path", "graph: {nodes: [{name: a, kind: video}]}", "Path"},
		{"duplicate name", "graph: {nodes: [{name: a, kind: color}, {name: a, kind: noise}], edges: []}", "duplicate"},
		{"unknown edge node", "graph: {nodes: [{name: a, kind: color}], edges: [{from: a, to: b}]}", `unknown node "b"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("window: [1, 2"))
	assert.Error(t, err)
}

func TestExamplePlayerConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "examples", "player.yaml"))
	require.NoError(t, err)
	require.Len(t, cfg.Graph.Nodes, 3)
	assert.Equal(t, filepath.Join("..", "..", "examples", "shaders", "wave.wgsl"), cfg.Graph.Nodes[1].Source)
	assert.FileExists(t, cfg.Graph.Nodes[1].Source)
}
