package bridge

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/graph"
	"github.com/Carmen-Shannon/oxy-gfx/engine/node"
)

// Cable connects an outlet of one exec node to an inlet of another on the scheduler side.
// A cable becomes a graph edge for the ticks where its source produced a texture.
type Cable struct {
	Source *ExecNode
	Outlet int
	Sink   *ExecNode
	Inlet  int
}

// Scheduler runs exec nodes once per tick in cable order, registration order breaking ties.
// Host edits are queued with Post or SetControl and applied at the start of the next tick.
type Scheduler struct {
	exec *ExecContext

	mu     sync.Mutex
	nodes  []*ExecNode
	cables []Cable

	work chan func()
}

// NewScheduler creates a scheduler feeding exec.
//
// Parameters:
//   - exec: the scheduler side of the bridge
//   - workCapacity: how many host edits can wait for the next tick
//
// Returns:
//   - *Scheduler: the new scheduler
func NewScheduler(exec *ExecContext, workCapacity int) *Scheduler {
	if workCapacity <= 0 {
		workCapacity = 256
	}
	return &Scheduler{exec: exec, work: make(chan func(), workCapacity)}
}

// Add appends en to the execution plan.
func (s *Scheduler) Add(en *ExecNode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.nodes, en) {
		s.nodes = append(s.nodes, en)
	}
}

// Remove takes en out of the plan with every cable touching it.
func (s *Scheduler) Remove(en *ExecNode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = slices.DeleteFunc(s.nodes, func(o *ExecNode) bool { return o == en })
	s.cables = slices.DeleteFunc(s.cables, func(c Cable) bool { return c.Source == en || c.Sink == en })
}

// Replace puts next in the place of prev. Cables keep their other end and move to next
// when the port still exists with the same type; the others are dropped.
//
// Returns:
//   - int: the number of cables moved to next
func (s *Scheduler) Replace(prev, next *ExecNode) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := slices.Index(s.nodes, prev); i >= 0 {
		s.nodes[i] = next
	} else if !slices.Contains(s.nodes, next) {
		s.nodes = append(s.nodes, next)
	}

	moved := 0
	kept := s.cables[:0]
	for _, c := range s.cables {
		if c.Source == prev {
			if c.Outlet >= len(next.outputs) || next.outputs[c.Outlet] != prev.outputs[c.Outlet] {
				continue
			}
			c.Source = next
			moved++
		}
		if c.Sink == prev {
			if c.Inlet >= len(next.inputs) || next.inputs[c.Inlet] != prev.inputs[c.Inlet] {
				continue
			}
			c.Sink = next
			moved++
		}
		kept = append(kept, c)
	}
	clear(s.cables[len(kept):])
	s.cables = kept
	return moved
}

// Nodes returns the nodes in registration order.
func (s *Scheduler) Nodes() []*ExecNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.nodes)
}

// Connect adds a cable after checking its ports.
//
// Returns:
//   - error: graph.ErrPortOutOfRange, graph.ErrTypeMismatch or graph.ErrSinkOccupied
func (s *Scheduler) Connect(src *ExecNode, outlet int, sink *ExecNode, inlet int) error {
	if outlet < 0 || outlet >= len(src.outputs) || inlet < 0 || inlet >= len(sink.inputs) {
		return fmt.Errorf("%w: %s:%d -> %s:%d", graph.ErrPortOutOfRange, src.label, outlet, sink.label, inlet)
	}
	if src.outputs[outlet] != sink.inputs[inlet] {
		return fmt.Errorf("%w: %s is %s, %s is %s", graph.ErrTypeMismatch, src.label, src.outputs[outlet], sink.label, sink.inputs[inlet])
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cables {
		if c.Sink == sink && c.Inlet == inlet {
			return fmt.Errorf("%w: %s:%d", graph.ErrSinkOccupied, sink.label, inlet)
		}
	}
	s.cables = append(s.cables, Cable{Source: src, Outlet: outlet, Sink: sink, Inlet: inlet})
	return nil
}

// Disconnect removes the cable into an inlet and reports whether there was one.
func (s *Scheduler) Disconnect(sink *ExecNode, inlet int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.cables)
	s.cables = slices.DeleteFunc(s.cables, func(c Cable) bool { return c.Sink == sink && c.Inlet == inlet })
	return len(s.cables) != n
}

// Post queues fn to run at the start of the next tick. It never blocks.
//
// Returns:
//   - bool: false when the work queue is full and fn was dropped
func (s *Scheduler) Post(fn func()) bool {
	select {
	case s.work <- fn:
		return true
	default:
		common.Logger().Warn("scheduler work queue full, edit dropped")
		return false
	}
}

// SetControl queues an edit of an input value of en, sent with its next message.
func (s *Scheduler) SetControl(en *ExecNode, port int, v node.Value) bool {
	return s.Post(func() { en.setControl(port, v) })
}

// Tick runs one scheduling tick: host edits, then every node in order, then the edge publish.
//
// Parameters:
//   - tk: the time of the tick
//
// Returns:
//   - bool: true if the live edge set changed
func (s *Scheduler) Tick(tk node.Token) bool {
	s.drainWork()

	s.mu.Lock()
	nodes := slices.Clone(s.nodes)
	cables := slices.Clone(s.cables)
	s.mu.Unlock()

	index := make(map[*ExecNode]int, len(nodes))
	for i, en := range nodes {
		index[en] = i
		en.executed = false
	}
	incoming := make([][]Cable, len(nodes))
	deps := make([][]int, len(nodes))
	for _, c := range cables {
		si, ok1 := index[c.Sink]
		so, ok2 := index[c.Source]
		if !ok1 || !ok2 {
			continue
		}
		incoming[si] = append(incoming[si], c)
		deps[si] = append(deps[si], so)
	}
	order, ok := common.StableTopoSort(len(nodes), func(i int) []int { return deps[i] })
	if !ok {
		common.Logger().Warn("scheduler cables form a cycle, running in registration order")
	}

	s.exec.StartTick()
	for _, i := range order {
		nodes[i].run(tk, incoming[i])
	}
	return s.exec.EndTick()
}

func (s *Scheduler) drainWork() {
	for {
		select {
		case fn := <-s.work:
			fn()
		default:
			return
		}
	}
}
