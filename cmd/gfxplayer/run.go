package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine"
	"github.com/Carmen-Shannon/oxy-gfx/engine/bridge"
	"github.com/Carmen-Shannon/oxy-gfx/engine/config"
	"github.com/Carmen-Shannon/oxy-gfx/engine/document"
	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu/webgpu"
	"github.com/Carmen-Shannon/oxy-gfx/engine/graph"
	"github.com/Carmen-Shannon/oxy-gfx/engine/metrics"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/telemetry"
	"github.com/Carmen-Shannon/oxy-gfx/engine/window"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func loadConfig() (config.Config, error) {
	if configPath == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(configPath)
}

func runPlayer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Metrics.Addr = common.Coalesce(metricsAddr, cfg.Metrics.Addr)

	common.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()})))
	log := common.Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{ServiceName: "gfxplayer", Exporter: cfg.Tracing.Exporter})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracing shutdown failed", "err", err)
		}
	}()

	reg := metrics.NewRegistry()
	pool := worker.NewDynamicWorkerPool(cfg.Renderer.Workers, 256, time.Second)
	defer pool.Stop()

	win, err := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithWidth(cfg.Window.Width),
		window.WithHeight(cfg.Window.Height),
		window.WithMaxWidth(max(cfg.Window.Width, 1600)),
		window.WithMaxHeight(max(cfg.Window.Height, 1200)),
		window.WithMinWidth(min(cfg.Window.Width, 600)),
		window.WithMinHeight(min(cfg.Window.Height, 200)),
	)
	if err != nil {
		return err
	}
	defer win.Close()

	factory := webgpu.NewFactory(
		webgpu.WithPresentMode(webgpu.ParsePresentMode(cfg.Renderer.PresentMode)),
		webgpu.WithForceSoftware(cfg.Renderer.ForceSoftware),
	)
	g := graph.NewGraph(factory,
		graph.WithMetrics(reg),
		graph.WithRendererOptions(renderer.WithWorkerPool(pool), renderer.WithMetrics(reg)),
	)
	defer g.Release()

	exec := bridge.NewExecContext(cfg.Bridge.QueueCapacity, reg)
	wc := bridge.NewWindowContext(g, exec, gpu.APIWebGPU, reg)
	sched := bridge.NewScheduler(exec, 256)

	eng := engine.NewEngine(wc, sched,
		engine.WithWindow(win),
		engine.WithTickRate(cfg.Engine.TickRate),
		engine.WithFrameRate(cfg.Engine.FrameRate),
		engine.WithMetrics(reg),
		engine.WithProfiling(cfg.Log.Level == "debug"),
	)
	defer eng.Shutdown(context.Background())

	if err := eng.LoadGraph(ctx, cfg.Graph); err != nil {
		return err
	}
	log.Info("graph loaded", "nodes", len(cfg.Graph.Nodes), "edges", len(cfg.Graph.Edges))

	services, sctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Addr != "" {
		serveMetrics(sctx, services, cfg.Metrics.Addr, reg)
	}
	if watch {
		if err := watchSources(sctx, services, eng); err != nil {
			return err
		}
	}

	// A failing service stops the player.
	runCtx, cancelRun := context.WithCancel(ctx)
	services.Go(func() error {
		<-sctx.Done()
		cancelRun()
		return nil
	})

	err = eng.Run(runCtx)
	stop()
	cancelRun()
	if werr := services.Wait(); werr != nil {
		return errors.Join(err, werr)
	}
	return err
}

// serveMetrics runs the Prometheus endpoint until ctx is done.
func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, reg *metrics.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g.Go(func() error {
		common.Logger().Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// watchSources reloads the loaded shader files when they are saved.
func watchSources(ctx context.Context, g *errgroup.Group, eng engine.Engine) error {
	w, err := document.NewWatcher(eng.Reload, 0)
	if err != nil {
		return err
	}
	for _, path := range eng.SourcePaths() {
		if err := w.Add(path); err != nil {
			w.Stop()
			return err
		}
	}
	w.Start(ctx)

	g.Go(func() error {
		<-ctx.Done()
		w.Stop()
		return nil
	})
	return nil
}
