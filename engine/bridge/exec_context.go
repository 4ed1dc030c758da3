package bridge

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/graph"
	"github.com/Carmen-Shannon/oxy-gfx/engine/metrics"
)

// ExecContext is the scheduler side of the bridge. It accumulates the live edges of a tick,
// publishes the set when it differs from the previous tick's, and queues node messages.
//
// StartTick, SetEdge, EndTick and Push are called from the scheduler goroutine only.
// TakeEdges and Drain are called from the goroutine that owns the graph.
type ExecContext struct {
	queue   *MessageQueue
	metrics *metrics.Registry

	current graph.EdgeSet
	prev    graph.EdgeSet

	mu      sync.Mutex
	pending graph.EdgeSet
	dirty   atomic.Bool
}

// NewExecContext creates a context with a message queue of the given capacity.
//
// Parameters:
//   - capacity: queue size, DefaultQueueCapacity when not positive
//   - reg: metrics registry, may be nil
//
// Returns:
//   - *ExecContext: the new context
func NewExecContext(capacity int, reg *metrics.Registry) *ExecContext {
	return &ExecContext{queue: NewMessageQueue(capacity), metrics: reg}
}

// StartTick clears the edge accumulator.
func (c *ExecContext) StartTick() {
	c.current.Reset()
}

// SetEdge records a live edge for the current tick.
func (c *ExecContext) SetEdge(l graph.Link) {
	c.current.Insert(l)
}

// EndTick freezes the accumulated edges and publishes them if they differ from the last tick.
//
// Returns:
//   - bool: true if a new edge set was published
func (c *ExecContext) EndTick() bool {
	if c.current.Equal(c.prev) {
		return false
	}
	c.prev = c.current.Clone()
	published := c.prev.Clone()

	c.mu.Lock()
	c.pending = published
	c.dirty.Store(true)
	c.mu.Unlock()

	c.metrics.RecordEdgeSetPublished()
	return true
}

// TakeEdges returns the last published edge set if one arrived since the previous call.
//
// Returns:
//   - graph.EdgeSet: the published set
//   - bool: false when nothing changed
func (c *ExecContext) TakeEdges() (graph.EdgeSet, bool) {
	if !c.dirty.Load() {
		return graph.EdgeSet{}, false
	}
	c.mu.Lock()
	set := c.pending
	c.pending = graph.EdgeSet{}
	c.dirty.Store(false)
	c.mu.Unlock()
	return set, true
}

// Push queues m without blocking. A full queue drops the message.
//
// Returns:
//   - bool: false when the message was dropped
func (c *ExecContext) Push(m Message) bool {
	if c.queue.Push(m) {
		return true
	}
	c.metrics.RecordMessageDropped()
	common.Logger().Debug("message dropped, queue full", "node", m.Node)
	return false
}

// Drain pops the messages queued when it was called and hands each to fn. Messages pushed
// meanwhile wait for the next call, so a fast scheduler cannot keep the caller draining.
//
// Returns:
//   - int: the number of messages drained
func (c *ExecContext) Drain(fn func(Message)) int {
	limit := c.queue.Len()
	n := 0
	for n < limit {
		m, ok := c.queue.Pop()
		if !ok {
			break
		}
		fn(m)
		n++
	}
	return n
}
