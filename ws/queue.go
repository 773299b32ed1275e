// File: ws/queue.go
// Author: momentics <momentics@gmail.com>
//
// OutboundQueue decouples application-level Session.Enqueue calls
// from the TX window's immediately available space: messages queue here
// and drain into TX opportunistically whenever the session gets a
// chance to write (OnData, Heartbeat). Backed by github.com/eapache/
// queue, the buffer-pool library's own ring-growable queue dependency
// (declared in its go.mod but never imported by any file it ships),
// here finally given a single-producer-single-consumer home: the
// caller (cmd) pushes from a stdin-reading goroutine, the session pops
// during the next FSM-driven write chance on the reactor goroutine -
// the mutex below is the only synchronization those two goroutines
// share, since eapache/queue.Queue itself assumes a single caller.
package ws

import (
	"sync"

	"github.com/eapache/queue"
)

type outboundMsg struct {
	opcode  byte
	payload []byte
}

// OutboundQueue is an unbounded FIFO of pending outbound messages,
// safe for one concurrent producer and one concurrent consumer.
type OutboundQueue struct {
	mu sync.Mutex
	q  *queue.Queue
}

// NewOutboundQueue constructs an empty queue.
func NewOutboundQueue() *OutboundQueue {
	return &OutboundQueue{q: queue.New()}
}

// Push enqueues one message.
func (o *OutboundQueue) Push(opcode byte, payload []byte) {
	o.mu.Lock()
	o.q.Add(outboundMsg{opcode: opcode, payload: payload})
	o.mu.Unlock()
}

// Len reports the number of queued messages.
func (o *OutboundQueue) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.q.Length()
}

// Peek returns the oldest message without removing it.
func (o *OutboundQueue) Peek() (outboundMsg, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.q.Length() == 0 {
		return outboundMsg{}, false
	}
	return o.q.Peek().(outboundMsg), true
}

// Pop discards the oldest message, previously returned by Peek.
func (o *OutboundQueue) Pop() {
	o.mu.Lock()
	o.q.Remove()
	o.mu.Unlock()
}

// Reset drops all queued messages.
func (o *OutboundQueue) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for o.q.Length() > 0 {
		o.q.Remove()
	}
}
