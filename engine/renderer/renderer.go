// Package renderer turns an ordered chain of nodes into GPU passes on one output surface.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gfx/engine/metrics"
	"github.com/Carmen-Shannon/oxy-gfx/engine/node"
	"github.com/Carmen-Shannon/oxy-gfx/engine/shader"
	"github.com/Carmen-Shannon/oxy-gfx/engine/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// fullscreenTriangle is one triangle covering the viewport, interleaved {position, texcoord}.
var fullscreenTriangle = [...]float32{
	-1, -1, 0, 1,
	3, -1, 2, 1,
	-1, 3, 0, -1,
}

// Resolver finds the node feeding an input port.
type Resolver interface {
	// Upstream returns the node whose output is connected to input port of sink.
	//
	// Parameters:
	//   - sink: the node owning the input port
	//   - port: the input port index
	//
	// Returns:
	//   - node.Node: the source node
	//   - bool: false when the port has no edge
	Upstream(sink node.Node, port int) (node.Node, bool)
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	id       uuid.UUID
	label    string
	backend  gpu.Backend
	resolver Resolver
	metrics  *metrics.Registry

	pool     worker.DynamicWorkerPool
	ownsPool bool
	workers  int

	nodes    []node.Node
	rendered []*renderedNode
	byNode   map[node.Node]*renderedNode

	empty    gpu.Texture
	vertices gpu.Buffer
	uniform  gpu.Buffer

	built    bool
	ready    bool
	lastSize gpu.Size
	err      error
}

// Renderer draws the nodes of one output chain into one surface.
//
// A Renderer is used from the goroutine that owns the graph. Resources are built lazily by
// Render after SetNodes or a surface resize, and a build failure is kept and returned by every
// later Render.
type Renderer interface {
	// ID returns the identity extensions key their per-renderer resources by.
	ID() uuid.UUID

	// Label returns the name used in logs, metrics and resource labels.
	Label() string

	// Backend returns the backend the renderer draws with.
	Backend() gpu.Backend

	// SetNodes stages the nodes to draw, in dependency order with the output node last.
	// Existing resources are released when the list changed; they are rebuilt on the next Render.
	//
	// Parameters:
	//   - nodes: the ordered chain
	SetNodes(nodes []node.Node)

	// Nodes returns the staged chain.
	Nodes() []node.Node

	// Relink re-resolves the textures bound to every image input from the resolver.
	//
	// Returns:
	//   - int: the number of inputs whose texture changed
	Relink() int

	// MaybeRebuild rebuilds every resource when the surface size changed or the chain was restaged.
	//
	// Parameters:
	//   - ctx: carries the trace of the caller
	//
	// Returns:
	//   - error: the build failure, which is also kept for later calls
	MaybeRebuild(ctx context.Context) error

	// Render draws one frame. It does nothing when fewer than two nodes are staged.
	//
	// Parameters:
	//   - ctx: carries the trace of the caller
	//
	// Returns:
	//   - error: a build or submission failure
	Render(ctx context.Context) error

	// RenderedNode returns the GPU state built for n.
	//
	// Parameters:
	//   - n: a staged node
	//
	// Returns:
	//   - RenderedNode: the built state
	//   - bool: false when n is not staged or resources are not built
	RenderedNode(n node.Node) (RenderedNode, bool)

	// Err returns the build failure that stopped the renderer, if any.
	Err() error

	// Release frees every resource the renderer created. The backend is not released.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a renderer drawing through backend.
//
// Parameters:
//   - backend: the backend of the output surface
//   - resolver: finds the source of each image input, may be nil
//   - options: builder options
//
// Returns:
//   - Renderer: the new renderer
func NewRenderer(backend gpu.Backend, resolver Resolver, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		id:       uuid.New(),
		backend:  backend,
		resolver: resolver,
		byNode:   make(map[node.Node]*renderedNode),
		workers:  2,
	}
	for _, option := range options {
		option(r)
	}
	if r.label == "" {
		r.label = "renderer-" + r.id.String()[:8]
	}
	if r.pool == nil {
		// Queue size of 64 covers the material blocks of a typical chain.
		r.pool = worker.NewDynamicWorkerPool(r.workers, 64, time.Second)
		r.ownsPool = true
	}
	return r
}

func (r *renderer) ID() uuid.UUID {
	return r.id
}

func (r *renderer) Label() string {
	return r.label
}

func (r *renderer) Backend() gpu.Backend {
	return r.backend
}

func (r *renderer) SetNodes(nodes []node.Node) {
	if sameNodes(r.nodes, nodes) {
		return
	}
	r.releaseNodes()
	r.nodes = append([]node.Node(nil), nodes...)
	r.built = false
	r.err = nil
}

func (r *renderer) Nodes() []node.Node {
	return r.nodes
}

func (r *renderer) Relink() int {
	changed := 0
	for _, rn := range r.rendered {
		changed += rn.relink()
	}
	return changed
}

func (r *renderer) MaybeRebuild(ctx context.Context) error {
	if r.err != nil {
		return r.err
	}
	size := r.backend.SurfaceSize()
	if r.built && size == r.lastSize {
		return nil
	}

	reason := "resize"
	if !r.built {
		reason = "restage"
	}
	_, span := telemetry.Tracer("renderer").Start(ctx, "renderer.rebuild")
	span.SetAttributes(
		attribute.String("renderer", r.label),
		attribute.String("reason", reason),
		attribute.Int("nodes", len(r.nodes)),
		attribute.Int("width", size.Width),
		attribute.Int("height", size.Height),
	)
	defer span.End()

	r.releaseNodes()
	r.lastSize = size
	if err := r.build(); err != nil {
		r.err = fmt.Errorf("renderer %s: %w", r.label, err)
		span.RecordError(r.err)
		span.SetStatus(codes.Error, "build failed")
		r.metrics.RecordRenderError()
		common.Logger().Error("renderer build failed", "renderer", r.label, "err", err)
		r.releaseNodes()
		return r.err
	}
	r.built = true
	r.metrics.RecordRebuild(reason)
	common.Logger().Info("renderer rebuilt", "renderer", r.label, "reason", reason, "width", size.Width, "height", size.Height)
	return nil
}

// build creates the shared resources once, then the targets of every node, then their pipelines.
// Targets come first so every input can resolve its upstream texture.
func (r *renderer) build() error {
	if err := r.initShared(); err != nil {
		return err
	}

	for _, n := range r.nodes {
		rn := &renderedNode{r: r, n: n, label: r.label + "." + n.Label()}
		if err := rn.initTarget(r.lastSize); err != nil {
			rn.release()
			return err
		}
		r.rendered = append(r.rendered, rn)
		r.byNode[n] = rn
	}
	for _, rn := range r.rendered {
		if err := rn.init(); err != nil {
			return err
		}
	}
	return nil
}

// initShared creates the placeholder texture, the triangle vertices and the renderer block.
func (r *renderer) initShared() error {
	var err error
	if r.empty == nil {
		r.empty, err = r.backend.CreateTexture(r.label+".empty", gpu.Size{Width: 1, Height: 1}, gpu.FormatRGBA8, false)
		if err != nil {
			return fmt.Errorf("create placeholder texture: %w", err)
		}
	}
	if r.vertices == nil {
		r.vertices, err = r.backend.CreateBuffer(r.label+".vertices", gpu.BufferVertex, len(fullscreenTriangle)*4)
		if err != nil {
			return fmt.Errorf("create vertex buffer: %w", err)
		}
	}
	if r.uniform == nil {
		var u shader.GPURendererUniform
		r.uniform, err = r.backend.CreateBuffer(r.label+".renderer", gpu.BufferUniform, u.Size())
		if err != nil {
			return fmt.Errorf("create renderer uniform: %w", err)
		}
	}
	return nil
}

// uploadShared queues the vertices, the renderer block and the placeholder pixel.
func (r *renderer) uploadShared(batch gpu.UpdateBatch) {
	batch.UploadStaticBuffer(r.vertices, 0, common.SliceToBytes(fullscreenTriangle[:]))

	u := shader.GPURendererUniform{
		TexcoordAdjust: [2]float32{1, 0},
		RenderSize:     [2]float32{float32(r.lastSize.Width), float32(r.lastSize.Height)},
	}
	common.Identity(u.MVP[:])
	batch.UploadStaticBuffer(r.uniform, 0, u.Marshal())
	batch.UploadTexture(r.empty, make([]byte, 4), 4)
	r.ready = true
}

func (r *renderer) Render(ctx context.Context) error {
	if r.err != nil {
		return r.err
	}
	if len(r.nodes) <= 1 {
		return nil
	}
	start := time.Now()
	if err := r.MaybeRebuild(ctx); err != nil {
		return err
	}

	cb, err := r.backend.BeginFrame()
	if err != nil {
		if errors.Is(err, gpu.ErrSurfaceLost) {
			r.metrics.RecordSkippedFrame(r.label)
			common.Logger().Debug("frame skipped", "renderer", r.label, "err", err)
			return nil
		}
		r.metrics.RecordRenderError()
		return fmt.Errorf("renderer %s: begin frame: %w", r.label, err)
	}

	r.prepareMaterials()

	for i, rn := range r.rendered {
		batch := r.backend.NextResourceUpdateBatch()
		if i == 0 && !r.ready {
			r.uploadShared(batch)
		}
		if err := rn.update(batch); err != nil {
			r.err = fmt.Errorf("renderer %s: update %s: %w", r.label, rn.n.Label(), err)
			r.metrics.RecordRenderError()
			_ = r.backend.EndFrame()
			return r.err
		}
		if err := cb.BeginPass(rn.target, gpu.Color{A: 1}, batch); err != nil {
			r.metrics.RecordRenderError()
			_ = r.backend.EndFrame()
			return fmt.Errorf("renderer %s: begin pass %s: %w", r.label, rn.n.Label(), err)
		}
		size := rn.target.PixelSize()
		cb.SetGraphicsPipeline(rn.pipeline)
		cb.SetShaderResources(rn.bindings)
		cb.SetViewport(0, 0, float32(size.Width), float32(size.Height))
		cb.SetVertexInput(r.vertices)
		cb.Draw(3)
		cb.EndPass()
	}

	if err := r.backend.EndFrame(); err != nil {
		r.metrics.RecordRenderError()
		return fmt.Errorf("renderer %s: end frame: %w", r.label, err)
	}
	r.metrics.RecordFrame(r.label, time.Since(start))
	return nil
}

// prepareMaterials packs the material block of every node whose version moved, in parallel.
// Nodes are not mutated while the frame is built, so packing only reads them.
func (r *renderer) prepareMaterials() {
	var wg sync.WaitGroup
	taskID := 0
	for _, rn := range r.rendered {
		if !rn.materialDirty() {
			continue
		}
		wg.Add(1)
		rnCap := rn
		id := taskID
		taskID++
		r.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				rnCap.packMaterial()
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func (r *renderer) RenderedNode(n node.Node) (RenderedNode, bool) {
	rn, ok := r.byNode[n]
	if !ok {
		return nil, false
	}
	return rn, true
}

func (r *renderer) Err() error {
	return r.err
}

// releaseNodes frees every per-node resource and marks the shared uploads stale.
func (r *renderer) releaseNodes() {
	for i := len(r.rendered) - 1; i >= 0; i-- {
		r.rendered[i].release()
	}
	r.rendered = nil
	clear(r.byNode)
	r.built = false
	r.ready = false
}

func (r *renderer) Release() {
	r.releaseNodes()
	if r.empty != nil {
		r.empty.Release()
		r.empty = nil
	}
	if r.vertices != nil {
		r.vertices.Release()
		r.vertices = nil
	}
	if r.uniform != nil {
		r.uniform.Release()
		r.uniform = nil
	}
	if r.ownsPool {
		r.pool.Stop()
		r.ownsPool = false
	}
}

func sameNodes(a, b []node.Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

