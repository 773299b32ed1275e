// File: fsm/arm.go
// Author: momentics <momentics@gmail.com>
//
// Arming policy: translates a TransportStatus into the next
// edge-triggered subscription, or a transition to Error. Kept separate
// from connection.go because every other state-handling method in this
// package funnels its want_read/want_write outcomes through here.
package fsm

import "github.com/momentics/manet-ws/api"

// arm reacts to a non-OK, non-close TransportStatus by re-subscribing for
// the edge that would let the stalled operation proceed, or by tearing
// down on TransportError. TransportOK and TransportClose are handled by
// their callers directly; arm is never called with them.
func (c *Connection) arm(status api.TransportStatus) {
	switch status {
	case api.TransportWantRead:
		// A stalled read always wants read; also keep write interest
		// armed if there is still buffered TX, so a write that was
		// previously deferred is not silently dropped.
		c.subscribe(true, !c.pair.TXWindow().Empty())
	case api.TransportWantWrite:
		// A stalled write wants write; also keep read interest armed
		// while in a state that consumes inbound data, matching the
		// "always listening in Protocol/CloseProtocol" invariant.
		wantRead := c.state == Protocol || c.state == CloseProtocol
		c.subscribe(wantRead, true)
	case api.TransportError:
		c.toError()
	default:
		// TransportOK / TransportClose: caller's responsibility.
	}
}

// subscribe re-arms edge-triggered interest for the connection's fd.
func (c *Connection) subscribe(wantRead, wantWrite bool) {
	if c.fd < 0 {
		return
	}
	_ = c.backend.Subscribe(c.fd, c.cookie, wantRead, wantWrite)
}
