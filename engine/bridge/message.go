// Package bridge carries per-tick values and live edges from the scheduler goroutine to the
// goroutine that owns the graph, without either side waiting on the other.
package bridge

import (
	"github.com/Carmen-Shannon/oxy-gfx/engine/node"
)

// PortValue is one entry received on an input port: a control value or an audio block.
type PortValue struct {
	Value node.Value
	// Audio is one slice of samples per channel. A non-nil Audio makes the entry an audio block.
	Audio [][]float32
}

// IsAudio reports whether the entry is an audio block.
func (v PortValue) IsAudio() bool {
	return v.Audio != nil
}

// Message is everything one node received during one tick.
type Message struct {
	Node  node.ID
	Token node.Token
	// Inputs holds one batch per input port, in port order. An empty batch means no update.
	Inputs [][]PortValue
}

// MessageQueue is a bounded queue of messages. Push and Pop never block.
type MessageQueue struct {
	ch chan Message
}

// DefaultQueueCapacity is the queue size used when none is configured.
const DefaultQueueCapacity = 4096

// NewMessageQueue creates a queue holding at most capacity messages.
func NewMessageQueue(capacity int) *MessageQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &MessageQueue{ch: make(chan Message, capacity)}
}

// Push enqueues m and reports false when the queue is full.
func (q *MessageQueue) Push(m Message) bool {
	select {
	case q.ch <- m:
		return true
	default:
		return false
	}
}

// Pop dequeues the oldest message and reports false when the queue is empty.
func (q *MessageQueue) Pop() (Message, bool) {
	select {
	case m := <-q.ch:
		return m, true
	default:
		return Message{}, false
	}
}

// Len returns the number of queued messages.
func (q *MessageQueue) Len() int {
	return len(q.ch)
}
