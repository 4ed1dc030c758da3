package engine

import (
	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gfx/engine/metrics"
	"github.com/Carmen-Shannon/oxy-gfx/engine/video"
	"github.com/Carmen-Shannon/oxy-gfx/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables frame rate and memory reporting.
//
// Parameters:
//   - enabled: if true, enables the profiler
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled.Store(enabled)
	}
}

// WithTickRate sets the scheduler tick rate in Hz.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - hz: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(hz float64) EngineBuilderOption {
	return func(e *engine) {
		e.engineTickRate = rateInterval(hz)
	}
}

// WithFrameRate sets the render loop rate in Hz.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - hz: target frames per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFrameRate(hz float64) EngineBuilderOption {
	return func(e *engine) {
		e.frameInterval = rateInterval(hz)
	}
}

// WithWindow sets the window the engine pumps messages for. Screen nodes draw into it
// and files dropped onto it become nodes.
//
// Parameters:
//   - w: an open Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
		e.output = w
	}
}

// WithOutput sets the window screen nodes draw into without pumping its messages.
// It is used for headless outputs.
//
// Parameters:
//   - w: the output window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithOutput(w gpu.Window) EngineBuilderOption {
	return func(e *engine) {
		e.output = w
	}
}

// WithMetrics sets the registry the profiler reports to.
//
// Parameters:
//   - reg: the metrics registry
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithMetrics(reg *metrics.Registry) EngineBuilderOption {
	return func(e *engine) {
		e.metrics = reg
	}
}

// WithVideoOpener replaces video.Open for video nodes.
//
// Parameters:
//   - open: the opener
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithVideoOpener(open video.Opener) EngineBuilderOption {
	return func(e *engine) {
		e.open = open
	}
}
