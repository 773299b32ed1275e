// File: fsm/pump.go
// Author: momentics <momentics@gmail.com>
//
// Read/write pump loops for the Protocol, CloseProtocol and DrainProtocol
// states. Each loop drains the transport across one
// edge-triggered readiness notification until it hits want_read/
// want_write (re-arm and return), close (advance state) or error
// (terminal). The no-progress guards below are what keep a
// misbehaving transport from spinning the single reactor thread.
package fsm

import "github.com/momentics/manet-ws/api"

// protocolReadLoop drains the transport into RX and feeds the session
// while in Protocol. It guards against RX
// overflow on entry, since a well-formed session must keep rx.Rbuf()
// strictly shrinking to make room for the next read.
func (c *Connection) protocolReadLoop() {
	for c.state == Protocol {
		rxw := c.pair.RXWindow()
		if rxw.Full() {
			c.toError()
			return
		}
		beforeRead := len(rxw.Rbuf())
		status := c.transport.Read(rxw)
		switch status {
		case api.TransportOK:
			afterRead := len(rxw.Rbuf())
			grew := afterRead > beforeRead
			progressed := c.protocolConsume()
			if c.state != Protocol {
				return
			}
			if !grew && !progressed {
				// Read made no progress and the session could not
				// consume anything either; wait for the next edge.
				return
			}
		case api.TransportWantRead, api.TransportWantWrite:
			c.arm(status)
			return
		case api.TransportClose:
			c.enterCloseTransport()
			return
		case api.TransportError:
			c.toError()
			return
		}
	}
}

// protocolConsume repeatedly calls session.OnData while RX keeps
// shrinking (the bounded-progress guarantee). It reports whether
// at least one call shrank RX.
func (c *Connection) protocolConsume() bool {
	progressed := false
	for c.state == Protocol {
		rxw := c.pair.RXWindow()
		before := len(rxw.Rbuf())
		status := c.session.OnData(c.pair)
		c.bindProtocol(status)
		if status != api.ProtocolOK {
			return progressed
		}
		after := len(rxw.Rbuf())
		if after >= before {
			return progressed
		}
		progressed = true
	}
	return progressed
}

// closeProtocolReadLoop is protocolReadLoop's counterpart for
// CloseProtocol: it drives OnShutdown instead of OnData. A transport
// close seen while draining is treated
// the same as in Protocol: advance straight to CloseTransport.
func (c *Connection) closeProtocolReadLoop() {
	shutdowner, ok := c.session.(api.OnShutdowner)
	if !ok {
		// enterCloseProtocol already redirected sessions without this
		// capability to DrainProtocol; nothing to do if we still
		// somehow land here.
		return
	}
	for c.state == CloseProtocol {
		rxw := c.pair.RXWindow()
		beforeRead := len(rxw.Rbuf())
		status := c.transport.Read(rxw)
		switch status {
		case api.TransportOK:
			afterRead := len(rxw.Rbuf())
			grew := afterRead > beforeRead
			progressed := false
			for c.state == CloseProtocol {
				before := len(rxw.Rbuf())
				pstatus := shutdowner.OnShutdown(c.pair)
				switch pstatus {
				case api.ProtocolClose:
					c.transportWrite(true)
					if c.state == CloseProtocol {
						c.state = DrainProtocol
					}
					return
				case api.ProtocolError:
					c.toError()
					return
				case api.ProtocolOK:
					c.transportWrite(true)
					if c.state != CloseProtocol {
						return
					}
				}
				after := len(rxw.Rbuf())
				if after >= before {
					break
				}
				progressed = true
			}
			if !grew && !progressed {
				return
			}
		case api.TransportWantRead, api.TransportWantWrite:
			c.arm(status)
			return
		case api.TransportClose:
			c.enterCloseTransport()
			return
		case api.TransportError:
			c.toError()
			return
		}
	}
}

// drainProtocolReadLoop discards everything the transport hands back
// while in DrainProtocol.
func (c *Connection) drainProtocolReadLoop() {
	rxw := c.pair.RXWindow()
	for c.state == DrainProtocol {
		status := c.transport.Read(rxw)
		switch status {
		case api.TransportOK:
			rxw.Reset()
		case api.TransportWantRead, api.TransportWantWrite:
			c.arm(status)
			return
		case api.TransportClose:
			c.enterCloseTransport()
			return
		case api.TransportError:
			c.toError()
			return
		}
	}
}

// transportWrite drains TX to the transport.
// On a no-progress TransportOK (a misbehaving transport) it treats the
// call as want_write rather than spinning. When reArm is true and TX
// ends up empty in a state that still reads, it re-subscribes for
// read-only interest.
func (c *Connection) transportWrite(reArm bool) {
	txw := c.pair.TXWindow()
	for !txw.Empty() {
		before := len(txw.Rbuf())
		status := c.transport.Write(txw)
		switch status {
		case api.TransportOK:
			after := len(txw.Rbuf())
			if after >= before {
				c.arm(api.TransportWantWrite)
				return
			}
		case api.TransportWantRead, api.TransportWantWrite:
			c.arm(status)
			return
		case api.TransportClose:
			c.enterCloseTransport()
			return
		case api.TransportError:
			c.toError()
			return
		}
	}
	if reArm && (c.state == Protocol || c.state == CloseProtocol) {
		c.subscribe(true, false)
	}
}
