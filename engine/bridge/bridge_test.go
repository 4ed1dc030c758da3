package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu"
	"github.com/Carmen-Shannon/oxy-gfx/engine/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-gfx/engine/graph"
	"github.com/Carmen-Shannon/oxy-gfx/engine/metrics"
	"github.com/Carmen-Shannon/oxy-gfx/engine/node"
	"github.com/Carmen-Shannon/oxy-gfx/engine/video"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	reg     *metrics.Registry
	factory *gputest.Factory
	exec    *ExecContext
	wc      *WindowContext
	sched   *Scheduler
}

func newHarness(t *testing.T, capacity int) *harness {
	t.Helper()
	h := &harness{reg: metrics.NewRegistry(), factory: &gputest.Factory{}}
	g := graph.NewGraph(h.factory.Create, graph.WithMetrics(h.reg))
	t.Cleanup(g.Release)
	h.exec = NewExecContext(capacity, h.reg)
	h.wc = NewWindowContext(g, h.exec, gpu.APINull, h.reg)
	h.sched = NewScheduler(h.exec, 16)
	return h
}

func (h *harness) add(t *testing.T, n node.Node) *ExecNode {
	t.Helper()
	en, err := NewExecNode(context.Background(), h.wc, n)
	require.NoError(t, err)
	h.sched.Add(en)
	return en
}

func tick(d time.Duration) node.Token {
	return node.Token{Date: d}
}

func TestColorToScreenAfterOneTick(t *testing.T) {
	h := newHarness(t, 0)
	color := node.NewColorNode()
	screen := node.NewScreenNode(gputest.NewWindow(32, 32))
	ce := h.add(t, color)
	se := h.add(t, screen)
	assert.Equal(t, node.ID(0), ce.ID())
	assert.Equal(t, node.ID(1), se.ID())
	require.NoError(t, h.sched.Connect(ce, 0, se, 0))

	assert.True(t, h.sched.Tick(tick(0)))
	applied, relinked := h.wc.Tick(context.Background())
	assert.Equal(t, 2, applied)
	assert.True(t, relinked)
	require.NoError(t, h.wc.Render(context.Background()))

	r, ok := h.wc.Graph().Renderer(se.ID())
	require.True(t, ok)
	crn, ok := r.RenderedNode(color)
	require.True(t, ok)
	srn, ok := r.RenderedNode(screen)
	require.True(t, ok)
	assert.Same(t, crn.OutputTexture(), srn.InputTexture(0))
}

func TestRelinkOnlyWhenEdgesChange(t *testing.T) {
	h := newHarness(t, 0)
	ce := h.add(t, node.NewColorNode())
	ne := h.add(t, node.NewNoiseNode())
	se := h.add(t, node.NewScreenNode(gputest.NewWindow(8, 8)))
	require.NoError(t, h.sched.Connect(ce, 0, se, 0))

	h.sched.Tick(tick(0))
	_, relinked := h.wc.Tick(context.Background())
	require.True(t, relinked)

	for i := 1; i <= 3; i++ {
		assert.False(t, h.sched.Tick(tick(time.Duration(i)*time.Millisecond)))
		_, relinked = h.wc.Tick(context.Background())
		assert.False(t, relinked)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(h.reg.RelinksTotal))

	require.True(t, h.sched.Disconnect(se, 0))
	require.NoError(t, h.sched.Connect(ne, 0, se, 0))
	assert.True(t, h.sched.Tick(tick(time.Second)))
	_, relinked = h.wc.Tick(context.Background())
	assert.True(t, relinked)
	assert.Equal(t, 2.0, testutil.ToFloat64(h.reg.RelinksTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.reg.EdgeSetsPublishedTotal))

	want := graph.NewEdgeSet(graph.Link{
		Source: graph.PortIndex{Node: ne.ID(), Port: 0},
		Sink:   graph.PortIndex{Node: se.ID(), Port: 0},
	})
	assert.True(t, h.wc.Graph().EdgeSet().Equal(want))
}

func TestTwoTicksBeforeDrainRelinkOnce(t *testing.T) {
	h := newHarness(t, 0)
	ce := h.add(t, node.NewColorNode())
	ne := h.add(t, node.NewNoiseNode())
	se := h.add(t, node.NewScreenNode(gputest.NewWindow(8, 8)))
	require.NoError(t, h.sched.Connect(ce, 0, se, 0))
	h.sched.Tick(tick(0))

	h.sched.Disconnect(se, 0)
	require.NoError(t, h.sched.Connect(ne, 0, se, 0))
	h.sched.Tick(tick(time.Millisecond))

	applied, relinked := h.wc.Tick(context.Background())
	assert.Equal(t, 6, applied)
	assert.True(t, relinked)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.reg.RelinksTotal))

	sn, _ := h.wc.Graph().Node(se.ID())
	up, ok := h.wc.Graph().Upstream(sn, 0)
	require.True(t, ok)
	nn, _ := h.wc.Graph().Node(ne.ID())
	assert.Same(t, nn, up)
}

func TestControlAppliedAtNextTick(t *testing.T) {
	h := newHarness(t, 0)
	color := node.NewColorNode()
	ce := h.add(t, color)
	v0 := color.MaterialVersion()

	require.True(t, h.sched.SetControl(ce, 0, node.Vec4(1, 0, 0, 1)))
	assert.Equal(t, v0, color.MaterialVersion())

	h.sched.Tick(tick(2 * time.Second))
	assert.Equal(t, v0, color.MaterialVersion())
	h.wc.Tick(context.Background())

	assert.Equal(t, [4]float32{1, 0, 0, 1}, color.Inputs()[0].Value.V)
	assert.Greater(t, color.MaterialVersion(), v0)
	assert.Equal(t, float32(2), color.ProcessUniform().Time)

	// the control is sent once
	v1 := color.MaterialVersion()
	h.sched.Tick(tick(3 * time.Second))
	h.wc.Tick(context.Background())
	assert.Equal(t, v1, color.MaterialVersion())
	assert.Equal(t, 2.0, testutil.ToFloat64(h.reg.MessagesAppliedTotal))
}

func TestMessageCarriesPushedValues(t *testing.T) {
	h := newHarness(t, 0)
	ce := h.add(t, node.NewColorNode())
	h.sched.SetControl(ce, 0, node.Vec4(0, 1, 0, 1))
	h.sched.drainWork()
	ce.Push(0, node.Vec4(0, 0, 1, 1))
	ce.PushAudio(0, [][]float32{{1}})
	ce.PushAudio(0, [][]float32{{2}})
	ce.Push(5, node.Float(1))

	h.exec.StartTick()
	ce.run(node.Token{Date: time.Second, ParentDuration: 4 * time.Second}, nil)
	h.exec.EndTick()

	var msgs []Message
	h.exec.Drain(func(m Message) { msgs = append(msgs, m) })
	require.Len(t, msgs, 1)
	m := msgs[0]
	assert.Equal(t, ce.ID(), m.Node)
	assert.Equal(t, 4*time.Second, m.Token.ParentDuration)
	require.Len(t, m.Inputs, 1)
	require.Len(t, m.Inputs[0], 3)
	assert.Equal(t, node.Vec4(0, 1, 0, 1), m.Inputs[0][0].Value)
	assert.Equal(t, node.Vec4(0, 0, 1, 1), m.Inputs[0][1].Value)
	assert.Equal(t, [][]float32{{2}}, m.Inputs[0][2].Audio)

	// pending values were consumed
	h.exec.StartTick()
	ce.run(node.Token{}, nil)
	h.exec.Drain(func(m Message) { msgs = append(msgs, m) })
	require.Len(t, msgs, 2)
	assert.Empty(t, msgs[1].Inputs[0])
}

func TestFullQueueDropsMessages(t *testing.T) {
	h := newHarness(t, 1)
	h.add(t, node.NewColorNode())
	h.add(t, node.NewNoiseNode())

	h.sched.Tick(tick(0))
	assert.Equal(t, 1, h.exec.queue.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.reg.MessagesDroppedTotal))

	applied, _ := h.wc.Tick(context.Background())
	assert.Equal(t, 1, applied)
}

func TestUnregisterMidSession(t *testing.T) {
	h := newHarness(t, 0)
	ce := h.add(t, node.NewColorNode())
	se := h.add(t, node.NewScreenNode(gputest.NewWindow(8, 8)))
	require.NoError(t, h.sched.Connect(ce, 0, se, 0))
	h.sched.Tick(tick(0))
	h.wc.Tick(context.Background())
	require.NoError(t, h.wc.Render(context.Background()))

	// messages queued before the removal still target the node
	h.sched.Tick(tick(time.Millisecond))
	removed := ce.ID()
	h.sched.Remove(ce)
	require.NoError(t, ce.Close(context.Background()))
	assert.Equal(t, node.Invalid, ce.ID())
	assert.Empty(t, h.wc.Graph().Edges())

	h.wc.Tick(context.Background())
	for _, e := range h.wc.Graph().Edges() {
		assert.NotEqual(t, removed, e.Source.Node)
	}
	require.NoError(t, h.wc.Render(context.Background()))

	h.sched.Tick(tick(2 * time.Millisecond))
	_, relinked := h.wc.Tick(context.Background())
	assert.True(t, relinked)
	assert.Empty(t, h.wc.Graph().Edges())

	require.NoError(t, ce.Close(context.Background()))
	assert.Equal(t, []node.ID{se.ID()}, h.wc.Graph().IDs())
}

func TestVideoExecNodeRewindsDecoder(t *testing.T) {
	h := newHarness(t, 0)
	f0 := &video.Frame{Planes: [][]byte{make([]byte, 4)}, Strides: []int{4}, Width: 1, Height: 1, Timestamp: 0}
	f1 := &video.Frame{Planes: [][]byte{make([]byte, 4)}, Strides: []int{4}, Width: 1, Height: 1, Timestamp: time.Second}
	dec := video.NewMemoryDecoder(video.PixelFormatRGB0, 1, 1, []*video.Frame{f0, f1}, false)
	_, err := dec.ReadFrame()
	require.NoError(t, err)

	en := NewVideoExecNode(context.Background(), h.wc, dec, "clip.mp4")
	require.NotEqual(t, node.Invalid, en.ID())
	assert.Equal(t, "clip.mp4", en.Label())

	f, err := dec.ReadFrame()
	require.NoError(t, err)
	assert.Same(t, f0, f)

	require.NoError(t, en.Close(context.Background()))
	_, err = dec.ReadFrame()
	assert.Error(t, err)
}

func TestVideoExecNodeUnsupportedFormat(t *testing.T) {
	h := newHarness(t, 0)
	dec := video.NewMemoryDecoder(video.PixelFormatUnknown, 2, 2, nil, false)
	en := NewVideoExecNode(context.Background(), h.wc, dec, "clip.hap")
	se := h.add(t, node.NewScreenNode(gputest.NewWindow(8, 8)))
	h.sched.Add(en)
	require.NoError(t, h.sched.Connect(en, 0, se, 0))

	assert.Equal(t, node.Invalid, en.ID())
	assert.Equal(t, []node.ID{se.ID()}, h.wc.Graph().IDs())

	assert.False(t, h.sched.Tick(tick(0)))
	assert.False(t, en.Produced())
	applied, relinked := h.wc.Tick(context.Background())
	assert.Equal(t, 1, applied)
	assert.False(t, relinked)

	require.NoError(t, en.Close(context.Background()))
	require.NoError(t, en.Close(context.Background()))
	assert.Equal(t, []node.ID{se.ID()}, h.wc.Graph().IDs())
	assert.Error(t, dec.Seek(0))
}

func TestConnectChecksPorts(t *testing.T) {
	h := newHarness(t, 0)
	c1 := h.add(t, node.NewColorNode())
	c2 := h.add(t, node.NewColorNode())
	se := h.add(t, node.NewScreenNode(gputest.NewWindow(8, 8)))

	assert.ErrorIs(t, h.sched.Connect(c1, 0, c2, 0), graph.ErrTypeMismatch)
	assert.ErrorIs(t, h.sched.Connect(c1, 1, se, 0), graph.ErrPortOutOfRange)
	require.NoError(t, h.sched.Connect(c1, 0, se, 0))
	assert.ErrorIs(t, h.sched.Connect(c2, 0, se, 0), graph.ErrSinkOccupied)
	assert.False(t, h.sched.Disconnect(c2, 0))
}

func TestEdgeHandoffAcrossGoroutines(t *testing.T) {
	h := newHarness(t, 0)
	ce := h.add(t, node.NewColorNode())
	ne := h.add(t, node.NewNoiseNode())
	se := h.add(t, node.NewScreenNode(gputest.NewWindow(8, 8)))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			h.sched.Disconnect(se, 0)
			src := ce
			if i%2 == 1 {
				src = ne
			}
			_ = h.sched.Connect(src, 0, se, 0)
			h.sched.Tick(tick(time.Duration(i) * time.Millisecond))
		}
	}()
	for i := 0; i < 200; i++ {
		h.wc.Tick(context.Background())
	}
	wg.Wait()
	h.wc.Tick(context.Background())

	want := graph.NewEdgeSet(graph.Link{
		Source: graph.PortIndex{Node: ne.ID(), Port: 0},
		Sink:   graph.PortIndex{Node: se.ID(), Port: 0},
	})
	assert.True(t, h.wc.Graph().EdgeSet().Equal(want))
}

func TestReplaceKeepsMatchingCables(t *testing.T) {
	h := newHarness(t, 0)
	ce := h.add(t, node.NewColorNode())
	ne := h.add(t, node.NewNoiseNode())
	pe := h.add(t, node.NewProductNode())
	se := h.add(t, node.NewScreenNode(gputest.NewWindow(8, 8)))
	require.NoError(t, h.sched.Connect(ce, 0, pe, 0))
	require.NoError(t, h.sched.Connect(ne, 0, pe, 1))
	require.NoError(t, h.sched.Connect(pe, 0, se, 0))
	h.sched.Tick(tick(0))
	h.wc.Tick(context.Background())

	next := h.add(t, node.NewColorNode())
	h.sched.Remove(next)
	assert.Equal(t, 1, h.sched.Replace(ne, next))
	assert.Equal(t, []*ExecNode{ce, next, pe, se}, h.sched.Nodes())
	require.NoError(t, ne.Close(context.Background()))

	assert.True(t, h.sched.Tick(tick(time.Millisecond)))
	h.wc.Tick(context.Background())
	want := graph.NewEdgeSet(
		graph.Link{Source: graph.PortIndex{Node: ce.ID(), Port: 0}, Sink: graph.PortIndex{Node: pe.ID(), Port: 0}},
		graph.Link{Source: graph.PortIndex{Node: next.ID(), Port: 0}, Sink: graph.PortIndex{Node: pe.ID(), Port: 1}},
		graph.Link{Source: graph.PortIndex{Node: pe.ID(), Port: 0}, Sink: graph.PortIndex{Node: se.ID(), Port: 0}},
	)
	assert.True(t, h.wc.Graph().EdgeSet().Equal(want))
}

func TestReplaceDropsMismatchedCables(t *testing.T) {
	h := newHarness(t, 0)
	ce := h.add(t, node.NewColorNode())
	se := h.add(t, node.NewScreenNode(gputest.NewWindow(8, 8)))
	require.NoError(t, h.sched.Connect(ce, 0, se, 0))

	screenless := newExecNode(h.wc, "none", nil, nil)
	assert.Equal(t, 0, h.sched.Replace(ce, screenless))
	assert.False(t, h.sched.Disconnect(se, 0))
}
