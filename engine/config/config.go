// Package config loads the player configuration from YAML and validates it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate is a singleton validator instance.
var validate = validator.New()

// Config is the whole player configuration.
type Config struct {
	Window   WindowConfig   `yaml:"window"`
	Engine   EngineConfig   `yaml:"engine"`
	Renderer RendererConfig `yaml:"renderer"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Graph    GraphConfig    `yaml:"graph"`
}

// WindowConfig describes the output window.
type WindowConfig struct {
	Title  string `yaml:"title" validate:"required"`
	Width  int    `yaml:"width" validate:"min=1,max=16384"`
	Height int    `yaml:"height" validate:"min=1,max=16384"`
}

// EngineConfig sets the rates of the scheduler and render loops in Hz.
type EngineConfig struct {
	TickRate  float64 `yaml:"tick_rate" validate:"gt=0,lte=1000"`
	FrameRate float64 `yaml:"frame_rate" validate:"gt=0,lte=1000"`
}

// RendererConfig configures the GPU backend.
type RendererConfig struct {
	PresentMode   string `yaml:"present_mode" validate:"oneof=vsync immediate"`
	ForceSoftware bool   `yaml:"force_software"`
	// Workers is the size of the pool packing material blocks.
	Workers int `yaml:"workers" validate:"min=1,max=64"`
}

// BridgeConfig sizes the queue between the scheduler and the render loop.
type BridgeConfig struct {
	QueueCapacity int `yaml:"queue_capacity" validate:"min=1"`
}

// LogConfig sets the minimum log level.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// MetricsConfig sets where Prometheus metrics are served. Empty disables the server.
type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// TracingConfig selects the span exporter.
type TracingConfig struct {
	Exporter string `yaml:"exporter" validate:"oneof=none stdout"`
}

// GraphConfig lists the nodes and cables built at startup.
type GraphConfig struct {
	Nodes []NodeConfig `yaml:"nodes" validate:"dive"`
	Edges []EdgeConfig `yaml:"edges" validate:"dive"`
}

// NodeConfig is one node of the startup graph.
type NodeConfig struct {
	Name string `yaml:"name" validate:"required"`
	Kind string `yaml:"kind" validate:"required,oneof=color noise product screen filter isf video"`
	// Source is the shader file of filter and isf nodes. An empty filter source uses the default shader.
	Source string `yaml:"source"`
	// Path is the media file of video nodes.
	Path string `yaml:"path" validate:"required_if=Kind video"`
	// Values sets input ports by name; scalars use one element.
	Values map[string][]float64 `yaml:"values"`
	Width  int                  `yaml:"width" validate:"min=0"`
	Height int                  `yaml:"height" validate:"min=0"`
}

// EdgeConfig connects an output port of one named node to an input port of another.
type EdgeConfig struct {
	From     string `yaml:"from" validate:"required"`
	FromPort int    `yaml:"from_port" validate:"min=0"`
	To       string `yaml:"to" validate:"required"`
	ToPort   int    `yaml:"to_port" validate:"min=0"`
}

// Default returns the configuration used for every field a file leaves out.
// Its graph draws a color generator to the window.
func Default() Config {
	return Config{
		Window:   WindowConfig{Title: "oxy-gfx", Width: 1280, Height: 720},
		Engine:   EngineConfig{TickRate: 60, FrameRate: 60},
		Renderer: RendererConfig{PresentMode: "vsync", Workers: 2},
		Bridge:   BridgeConfig{QueueCapacity: 4096},
		Log:      LogConfig{Level: "info"},
		Tracing:  TracingConfig{Exporter: "none"},
		Graph: GraphConfig{
			Nodes: []NodeConfig{
				{Name: "color", Kind: "color"},
				{Name: "screen", Kind: "screen"},
			},
			Edges: []EdgeConfig{{From: "color", To: "screen"}},
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
//
// Parameters:
//   - path: the configuration file
//
// Returns:
//   - Config: the loaded configuration
//   - error: read, parse or validation failure
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, err
	}
	cfg.Graph.resolve(filepath.Dir(path))
	return cfg, nil
}

// resolve makes relative shader and media paths relative to dir.
func (g *GraphConfig) resolve(dir string) {
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Source != "" && !filepath.IsAbs(n.Source) {
			n.Source = filepath.Join(dir, n.Source)
		}
		if n.Path != "" && !filepath.IsAbs(n.Path) {
			n.Path = filepath.Join(dir, n.Path)
		}
	}
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

// Validate checks the struct tags, then that node names are unique and cables name known nodes.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}

	names := make(map[string]bool, len(c.Graph.Nodes))
	for _, n := range c.Graph.Nodes {
		if names[n.Name] {
			return fmt.Errorf("graph.nodes: duplicate name %q", n.Name)
		}
		names[n.Name] = true
	}
	for i, e := range c.Graph.Edges {
		if !names[e.From] {
			return fmt.Errorf("graph.edges[%d]: unknown node %q", i, e.From)
		}
		if !names[e.To] {
			return fmt.Errorf("graph.edges[%d]: unknown node %q", i, e.To)
		}
	}
	return nil
}

// formatValidationError turns validator errors into one readable error.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// SlogLevel returns the slog level of the configured log level.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
