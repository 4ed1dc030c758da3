package renderer

import (
	"context"
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-gfx/engine/metrics"
	"github.com/Carmen-Shannon/oxy-gfx/engine/node"
	"github.com/Carmen-Shannon/oxy-gfx/engine/video"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// links is a Resolver backed by a map of sink -> port -> source.
type links map[node.Node]map[int]node.Node

func (l links) Upstream(sink node.Node, port int) (node.Node, bool) {
	src, ok := l[sink][port]
	return src, ok
}

func (l links) connect(src, sink node.Node, port int) {
	if l[sink] == nil {
		l[sink] = make(map[int]node.Node)
	}
	l[sink][port] = src
}

type fixture struct {
	window  *gputest.Window
	backend *gputest.Backend
	links   links
	reg     *metrics.Registry
	r       Renderer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		window: gputest.NewWindow(64, 48),
		links:  links{},
		reg:    metrics.NewRegistry(),
	}
	f.backend = gputest.NewBackend(gpu.APINull, f.window)
	f.r = NewRenderer(f.backend, f.links, WithLabel("test"), WithMetrics(f.reg), WithWorkers(2))
	t.Cleanup(f.r.Release)
	return f
}

func (f *fixture) rendered(t *testing.T, n node.Node) *renderedNode {
	t.Helper()
	rn, ok := f.r.RenderedNode(n)
	require.True(t, ok)
	return rn.(*renderedNode)
}

func TestRenderNeedsTwoNodes(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.r.Render(context.Background()))

	f.r.SetNodes([]node.Node{node.NewScreenNode(f.window)})
	require.NoError(t, f.r.Render(context.Background()))
	assert.Equal(t, 0, f.backend.Frames)
	assert.Empty(t, f.backend.Passes)
}

func TestColorToScreenBindsUpstreamTexture(t *testing.T) {
	f := newFixture(t)
	color := node.NewColorNode()
	screen := node.NewScreenNode(f.window)
	f.links.connect(color, screen, 0)
	f.r.SetNodes([]node.Node{color, screen})

	require.NoError(t, f.r.Render(context.Background()))

	colorRN := f.rendered(t, color)
	screenRN := f.rendered(t, screen)
	require.NotNil(t, colorRN.OutputTexture())
	assert.Same(t, colorRN.OutputTexture(), screenRN.InputTexture(0))
	assert.NotSame(t, f.r.(*renderer).empty, screenRN.InputTexture(0))
	assert.True(t, screenRN.Target().IsScreen())
	assert.Nil(t, screenRN.OutputTexture())

	require.Len(t, f.backend.Passes, 2)
	for _, p := range f.backend.Passes {
		assert.Equal(t, []uint32{3}, p.Draws)
		assert.True(t, p.Ended)
		assert.Equal(t, gpu.Color{A: 1}, p.Clear)
		assert.Equal(t, [4]float32{0, 0, 64, 48}, p.Viewport)
	}
	assert.Same(t, colorRN.Target(), gpu.RenderTarget(f.backend.Passes[0].Target))
	assert.True(t, f.backend.Passes[1].Target.Screen)
	assert.Same(t, screenRN.bindings, gpu.ResourceBindings(f.backend.Passes[1].Bindings))
	assert.Equal(t, gpu.Texture(colorRN.OutputTexture()), f.backend.Passes[1].Bindings.TextureAt(3))

	pipeline := f.backend.Passes[0].Pipeline
	assert.True(t, pipeline.Desc.Blend)
	assert.Equal(t, uint64(16), pipeline.Desc.Layout.Stride)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.reg.RebuildsTotal.WithLabelValues("restage")))
}

func TestSharedBuffersUploadedOncePerBuild(t *testing.T) {
	f := newFixture(t)
	f.r.SetNodes([]node.Node{node.NewColorNode(), node.NewScreenNode(f.window)})

	require.NoError(t, f.r.Render(context.Background()))
	require.NoError(t, f.r.Render(context.Background()))

	r := f.r.(*renderer)
	vertexUploads := f.backend.UploadsTo(r.vertices)
	require.Len(t, vertexUploads, 1)
	assert.Equal(t, gputest.UploadStatic, vertexUploads[0].Kind)
	assert.Len(t, vertexUploads[0].Data, 48)

	uniformUploads := f.backend.UploadsTo(r.uniform)
	require.Len(t, uniformUploads, 1)
	assert.Len(t, uniformUploads[0].Data, 80)
	assert.Equal(t, float32(64), floatAt(uniformUploads[0].Data, 72))
	assert.Equal(t, float32(48), floatAt(uniformUploads[0].Data, 76))
	assert.Equal(t, float32(1), floatAt(uniformUploads[0].Data, 64))
	assert.Equal(t, float32(0), floatAt(uniformUploads[0].Data, 68))
}

func TestMaterialUploadedOnlyWhenVersionMoves(t *testing.T) {
	f := newFixture(t)
	color := node.NewColorNode()
	f.r.SetNodes([]node.Node{color, node.NewScreenNode(f.window)})

	require.NoError(t, f.r.Render(context.Background()))
	require.NoError(t, f.r.Render(context.Background()))

	rn := f.rendered(t, color)
	require.Len(t, f.backend.UploadsTo(rn.material), 1)
	assert.Equal(t, color.MaterialVersion(), rn.UploadedMaterialVersion())

	require.True(t, color.SetValue(0, node.Vec4(1, 0, 0, 1)))
	require.NoError(t, f.r.Render(context.Background()))
	require.NoError(t, f.r.Render(context.Background()))

	uploads := f.backend.UploadsTo(rn.material)
	require.Len(t, uploads, 2)
	assert.Equal(t, float32(1), floatAt(uploads[1].Data, 0))
	assert.Equal(t, float32(0), floatAt(uploads[1].Data, 4))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.reg.MaterialUploadsTotal))
}

func TestTimeBlockUploadedEveryFrame(t *testing.T) {
	f := newFixture(t)
	color := node.NewColorNode()
	f.r.SetNodes([]node.Node{color, node.NewScreenNode(f.window)})

	require.NoError(t, f.r.Render(context.Background()))
	require.NoError(t, f.r.Render(context.Background()))

	rn := f.rendered(t, color)
	uploads := f.backend.UploadsTo(rn.process)
	require.Len(t, uploads, 2)
	assert.Equal(t, gputest.UploadDynamic, uploads[0].Kind)
	assert.Len(t, uploads[0].Data, 16)
}

func TestUnconnectedInputUsesPlaceholder(t *testing.T) {
	f := newFixture(t)
	product := node.NewProductNode()
	color := node.NewColorNode()
	screen := node.NewScreenNode(f.window)
	f.links.connect(color, product, 0)
	f.links.connect(product, screen, 0)
	f.r.SetNodes([]node.Node{color, product, screen})

	require.NoError(t, f.r.Render(context.Background()))

	rn := f.rendered(t, product)
	assert.Same(t, f.rendered(t, color).OutputTexture(), rn.InputTexture(0))
	assert.Same(t, f.r.(*renderer).empty, rn.InputTexture(1))
	assert.Nil(t, rn.InputTexture(5))
}

func TestRelinkRebindsChangedInputs(t *testing.T) {
	f := newFixture(t)
	color := node.NewColorNode()
	noise := node.NewNoiseNode()
	screen := node.NewScreenNode(f.window)
	f.links.connect(color, screen, 0)
	f.r.SetNodes([]node.Node{color, noise, screen})
	require.NoError(t, f.r.Render(context.Background()))

	assert.Equal(t, 0, f.r.Relink())

	f.links.connect(noise, screen, 0)
	assert.Equal(t, 1, f.r.Relink())
	rn := f.rendered(t, screen)
	old := rn.bindings
	require.NoError(t, f.r.Render(context.Background()))

	assert.Same(t, f.rendered(t, noise).OutputTexture(), rn.InputTexture(0))
	assert.NotSame(t, old, rn.bindings)
	assert.True(t, old.(*gputest.Bindings).Released)
	assert.Equal(t, gpu.Texture(f.rendered(t, noise).OutputTexture()), rn.bindings.(*gputest.Bindings).TextureAt(3))
}

func TestResizeRebuildsTargets(t *testing.T) {
	f := newFixture(t)
	color := node.NewColorNode()
	fixed := node.NewNoiseNode(node.WithRenderSize(32, 16))
	screen := node.NewScreenNode(f.window)
	f.r.SetNodes([]node.Node{color, fixed, screen})
	require.NoError(t, f.r.Render(context.Background()))

	oldColor := f.rendered(t, color).OutputTexture().(*gputest.Texture)
	assert.Equal(t, gpu.Size{Width: 64, Height: 48}, oldColor.Size())
	assert.Equal(t, gpu.Size{Width: 32, Height: 16}, f.rendered(t, fixed).OutputTexture().Size())

	f.window.Resize(128, 96)
	require.NoError(t, f.r.Render(context.Background()))

	assert.True(t, oldColor.Released)
	assert.Equal(t, gpu.Size{Width: 128, Height: 96}, f.rendered(t, color).OutputTexture().Size())
	assert.Equal(t, gpu.Size{Width: 32, Height: 16}, f.rendered(t, fixed).OutputTexture().Size())
	assert.True(t, f.rendered(t, screen).Target().IsScreen())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.reg.RebuildsTotal.WithLabelValues("resize")))

	last := f.backend.Passes[len(f.backend.Passes)-1]
	assert.Equal(t, [4]float32{0, 0, 128, 96}, last.Viewport)
}

func TestBuildFailureIsSticky(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")
	f.backend.FailPipelines = boom
	f.r.SetNodes([]node.Node{node.NewColorNode(), node.NewScreenNode(f.window)})

	err := f.r.Render(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, err, f.r.Err())

	f.backend.FailPipelines = nil
	assert.Equal(t, err, f.r.Render(context.Background()))
	assert.Equal(t, 0, f.backend.Frames)
	assert.Len(t, f.backend.LiveTextures(), 1)
}

func TestSurfaceLostSkipsFrame(t *testing.T) {
	f := newFixture(t)
	f.backend.FailFrames = gpu.ErrSurfaceLost
	f.r.SetNodes([]node.Node{node.NewColorNode(), node.NewScreenNode(f.window)})

	require.NoError(t, f.r.Render(context.Background()))
	assert.NoError(t, f.r.Err())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.reg.FramesSkippedTotal.WithLabelValues("test")))
}

func TestSetNodesReleasesPreviousResources(t *testing.T) {
	f := newFixture(t)
	color := node.NewColorNode()
	screen := node.NewScreenNode(f.window)
	f.r.SetNodes([]node.Node{color, screen})
	require.NoError(t, f.r.Render(context.Background()))
	target := f.rendered(t, color).OutputTexture().(*gputest.Texture)

	f.r.SetNodes([]node.Node{color, screen})
	assert.False(t, target.Released)

	f.r.SetNodes([]node.Node{node.NewNoiseNode(), screen})
	assert.True(t, target.Released)
	_, ok := f.r.RenderedNode(color)
	assert.False(t, ok)
}

func TestReleaseFreesEverything(t *testing.T) {
	f := newFixture(t)
	f.r.SetNodes([]node.Node{node.NewColorNode(), node.NewNoiseNode(), node.NewScreenNode(f.window)})
	require.NoError(t, f.r.Render(context.Background()))

	f.r.Release()
	assert.Empty(t, f.backend.LiveTextures())
	for _, b := range f.backend.Buffers {
		assert.True(t, b.Released, b.Label)
	}
	for _, s := range f.backend.Samplers {
		assert.True(t, s.Released, s.Label)
	}
	for _, p := range f.backend.Pipelines {
		assert.True(t, p.Released, p.Label)
	}
}

func TestExtensionSamplersFollowImageInputs(t *testing.T) {
	f := newFixture(t)
	frame := &video.Frame{Planes: [][]byte{make([]byte, 16)}, Strides: []int{8}, Width: 2, Height: 2}
	dec := video.NewMemoryDecoder(video.PixelFormatRGB0, 2, 2, []*video.Frame{frame}, true)
	vn, err := node.NewVideoNode(dec, "clip.mov")
	require.NoError(t, err)
	screen := node.NewScreenNode(f.window)
	f.links.connect(vn, screen, 0)
	f.r.SetNodes([]node.Node{vn, screen})

	vn.Process(node.Token{})
	require.NoError(t, f.r.Render(context.Background()))
	require.NoError(t, f.r.Render(context.Background()))

	rn := f.rendered(t, vn)
	require.Len(t, rn.slots, 1)
	assert.Equal(t, -1, rn.slots[0].port)
	plane := rn.slots[0].texture.(*gputest.Texture)
	assert.Equal(t, gpu.Size{Width: 2, Height: 2}, plane.Size())
	assert.Equal(t, gpu.Texture(plane), rn.bindings.(*gputest.Bindings).TextureAt(3))

	var planeUploads int
	for _, u := range f.backend.Uploads {
		if u.Texture == plane {
			planeUploads++
		}
	}
	assert.Equal(t, 1, planeUploads)

	f.r.Release()
	assert.True(t, plane.Released)
}
