// Package engine drives a video graph: a tick goroutine runs the host scheduler and a render
// goroutine applies its messages and draws every output.
package engine

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/bridge"
	"github.com/Carmen-Shannon/oxy-gfx/engine/config"
	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gfx/engine/metrics"
	"github.com/Carmen-Shannon/oxy-gfx/engine/node"
	"github.com/Carmen-Shannon/oxy-gfx/engine/profiler"
	"github.com/Carmen-Shannon/oxy-gfx/engine/video"
	"github.com/Carmen-Shannon/oxy-gfx/engine/window"
)

// InvokeFunc runs on the render goroutine, which owns the graph.
type InvokeFunc func(ctx context.Context, wc *bridge.WindowContext)

// engine implements the Engine interface.
// Coordinates the tick, render, and window threads.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates
	invokeChannel   chan InvokeFunc

	running atomic.Bool
	wg      sync.WaitGroup
	start   time.Time

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window window.Window
	output gpu.Window
	open   video.Opener

	scheduler *bridge.Scheduler
	wc        *bridge.WindowContext
	metrics   *metrics.Registry

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	paused atomic.Bool
	rewind atomic.Bool

	engineTickRate time.Duration
	frameInterval  time.Duration

	patchMu sync.Mutex
	patch   map[string]*patchEntry
	order   []string
}

// Engine is the main entry point for the engine.
// It orchestrates the scheduler loop, the render loop, and window management.
type Engine interface {
	// Window returns the output window, nil when running headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Scheduler returns the host scheduler driven by the tick loop.
	Scheduler() *bridge.Scheduler

	// WindowContext returns the render side of the bridge.
	WindowContext() *bridge.WindowContext

	// EnableProfiler enables frame rate and memory reporting.
	EnableProfiler()

	// DisableProfiler disables frame rate and memory reporting.
	DisableProfiler()

	// Pause stops or resumes the transport. A paused engine keeps rendering but sends no ticks.
	Pause(paused bool)

	// Rewind restarts the transport at date zero on the next tick.
	Rewind()

	// SetTickRate sets the scheduler tick rate in Hz.
	// If the engine is running, the change takes effect immediately.
	//
	// Parameters:
	//   - hz: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(hz float64)

	// LoadGraph builds, registers, and connects the nodes of cfg.
	// It must be called before Run or from an InvokeFunc.
	LoadGraph(ctx context.Context, cfg config.GraphConfig) error

	// Node returns the exec node built for a named node of the loaded graph.
	Node(name string) (*bridge.ExecNode, bool)

	// SourcePaths returns the shader files the loaded graph was built from.
	SourcePaths() []string

	// Invoke queues fn to run on the render goroutine before the next frame. It never blocks.
	//
	// Returns:
	//   - bool: false when the engine has quit or the queue is full
	Invoke(fn InvokeFunc) bool

	// Reload rebuilds every node whose shader was loaded from path with the new source.
	// Input values whose name and type survive are kept, as are the cables into and out of the node.
	Reload(path, source string)

	// Run starts the tick and render goroutines. With a window it runs the window message loop
	// on the calling goroutine, which must be the main thread. It returns when the window closes,
	// Quit is called, or ctx is done.
	//
	// Returns:
	//   - error: always nil; render errors are logged
	Run(ctx context.Context) error

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Shutdown closes every exec node of the loaded graph. Call it after Run returned.
	Shutdown(ctx context.Context)
}

// NewEngine creates a new Engine driving sched and wc.
// Options are applied directly to the engine struct via the option-builder pattern.
//
// Parameters:
//   - wc: the render side of the bridge, owning the graph
//   - sched: the host scheduler
//   - options: functional options for engine configuration (window, rates, profiling)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(wc *bridge.WindowContext, sched *bridge.Scheduler, options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		invokeChannel:   make(chan InvokeFunc, 64),
		quitChannel:     make(chan struct{}),
		scheduler:       sched,
		wc:              wc,
		engineTickRate:  time.Second / 60,
		frameInterval:   time.Second / 60,
		open:            video.Open,
		patch:           make(map[string]*patchEntry),
	}

	for _, opt := range options {
		opt(e)
	}
	e.profiler = profiler.NewProfiler(e.metrics)

	if e.window != nil {
		e.window.SetDropCallback(e.handleDrop)
		e.window.SetKeyCallback(e.handleKey)
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Scheduler() *bridge.Scheduler {
	return e.scheduler
}

func (e *engine) WindowContext() *bridge.WindowContext {
	return e.wc
}

func (e *engine) Run(ctx context.Context) error {
	e.start = time.Now()
	e.running.Store(true)
	e.handle(ctx)

	if e.window != nil {
		e.window.SetUpdateCallback(func() {
			select {
			case <-e.quitChannel:
				e.window.Stop()
			default:
			}
		})
		e.window.ProcessMessages()
		e.signalQuit()
	}

	e.wg.Wait()
	return nil
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		close(e.quitChannel)
	})
}

// handle launches the tick, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle(ctx context.Context) {
	e.wg.Add(3)
	go e.handleTick()
	go e.handleRender(ctx)
	go e.handleQuit(ctx)
}

// handleTick runs the fixed-rate scheduler loop in its own goroutine.
// Listens for dynamic rate changes via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleTick() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	var date time.Duration
	last := e.start
	for {
		select {
		case <-e.quitChannel:
			return
		case now := <-ticker.C:
			if e.rewind.Swap(false) {
				date = 0
			}
			if e.paused.Load() {
				last = now
				continue
			}
			date += now.Sub(last)
			last = now
			e.scheduler.Tick(node.Token{Date: date})
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the frame loop on a locked OS thread.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender(ctx context.Context) {
	defer e.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Error("render goroutine recovered from panic", "panic", r)
			e.signalQuit()
		}
	}()

	ticker := time.NewTicker(e.frameInterval)
	defer ticker.Stop()

	var lastErr string
	for {
		select {
		case <-e.quitChannel:
			return
		case fn := <-e.invokeChannel:
			fn(ctx, e.wc)
		case <-ticker.C:
			e.frame(ctx, &lastErr)
		}
	}
}

// frame applies the scheduler's messages and draws every output. A render error is logged
// once until it changes.
func (e *engine) frame(ctx context.Context, lastErr *string) {
	e.drainInvoked(ctx)
	e.wc.Tick(ctx)

	err := e.wc.Render(ctx)
	switch {
	case err != nil && err.Error() != *lastErr:
		common.Logger().Error("render failed", "err", err)
		*lastErr = err.Error()
	case err == nil:
		*lastErr = ""
	}

	if e.profilingEnabled.Load() {
		e.profiler.Tick()
	}
}

// handleKey maps key presses to transport and profiler toggles.
func (e *engine) handleKey(key int) {
	switch key {
	case common.KeyP:
		enabled := !e.profilingEnabled.Load()
		e.profilingEnabled.Store(enabled)
		common.Logger().Info("profiler toggled", "enabled", enabled)
	case common.KeySpace:
		paused := !e.paused.Load()
		e.paused.Store(paused)
		common.Logger().Info("transport toggled", "paused", paused)
	case common.KeyR:
		e.rewind.Store(true)
	}
}

// drainInvoked runs every queued InvokeFunc.
func (e *engine) drainInvoked(ctx context.Context) {
	for {
		select {
		case fn := <-e.invokeChannel:
			fn(ctx, e.wc)
		default:
			return
		}
	}
}

// handleQuit blocks until the quit channel is closed or ctx is done.
func (e *engine) handleQuit(ctx context.Context) {
	defer e.wg.Done()
	select {
	case <-e.quitChannel:
	case <-ctx.Done():
		e.signalQuit()
	}
}

func (e *engine) Invoke(fn InvokeFunc) bool {
	select {
	case <-e.quitChannel:
		return false
	default:
	}
	select {
	case e.invokeChannel <- fn:
		return true
	default:
		common.Logger().Warn("invoke queue full, call dropped")
		return false
	}
}

// EnableProfiler enables frame rate and memory reporting.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables frame rate and memory reporting.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

func (e *engine) Pause(paused bool) {
	e.paused.Store(paused)
}

func (e *engine) Rewind() {
	e.rewind.Store(true)
}

// SetTickRate sets the scheduler tick rate in Hz.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(hz float64) {
	newRate := rateInterval(hz)

	if e.running.Load() {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

// rateInterval converts a rate in Hz into a ticker period, 60Hz for non-positive rates.
func rateInterval(hz float64) time.Duration {
	if hz <= 0 {
		hz = 60
	}
	return time.Duration(float64(time.Second) / hz)
}
