// File: fsm/connection.go
// Author: momentics <momentics@gmail.com>
//
// Connection is the per-socket state machine, the core of
// this reactor. It owns exactly one fd at a time, one RX/TX window pair,
// one transport endpoint and one protocol session, and advances purely
// in response to events handed to it by the Reactor — it never blocks
// and never spawns a goroutine. Grounded on original_source's
// include/manet/reactor/connection.hpp and reactor.hpp state tables, with
// the read/write pump shapes adapted from the buffer-pool library's
// protocol/connection.go recvLoop/sendLoop (there goroutine-driven, here
// re-entrant calls from a single poll loop).
package fsm

import (
	"github.com/momentics/manet-ws/api"
	"github.com/momentics/manet-ws/dial"
	"github.com/momentics/manet-ws/iobuf"
	"github.com/momentics/manet-ws/pool"
)

// Connection is one client connection's state machine.
type Connection struct {
	host string
	port uint16

	fd     int
	cookie uintptr

	state State

	backend api.Backend
	pair    *iobuf.Pair

	transportFactory api.EndpointFactory
	transport        api.Endpoint
	handshaker       api.Handshaker
	shutdowner       api.Shutdowner

	sessionFactory api.SessionFactory
	session        api.Session
}

// New builds a Connection targeting host:port. It starts in Uninit and
// owns no fd until Attach/Dial is called.
func New(host string, port uint16, backend api.Backend, wp *pool.WindowPool, tf api.EndpointFactory, sf api.SessionFactory) *Connection {
	return &Connection{
		host:             host,
		port:             port,
		fd:               -1,
		state:            Uninit,
		backend:          backend,
		pair:             iobuf.NewPair(wp),
		transportFactory: tf,
		sessionFactory:   sf,
		session:          sf(host, port),
	}
}

// Attach installs the reactor-assigned cookie (the opaque handle
// returned to the caller by Backend.Poll) and performs the initial dial.
func (c *Connection) Attach(cookie uintptr, dialer *dial.Dialer) {
	c.cookie = cookie
	c.Dial(dialer)
}

// State, FD and Cookie are read-only accessors the Reactor uses for
// bookkeeping and event routing.
func (c *Connection) State() State     { return c.state }
func (c *Connection) FD() int          { return c.fd }
func (c *Connection) Cookie() uintptr  { return c.cookie }

// Closed reports whether the connection reached the restart-eligible
// terminal state.
func (c *Connection) Closed() bool { return c.state == Closed }

// Done reports whether the connection reached any terminal state.
func (c *Connection) Done() bool { return c.state == Closed || c.state == Error }

// Dial issues the non-blocking connect:
//   - dial error or fd < 0           -> Error (no fd to close)
//   - synchronous connect success    -> enterConnected directly
//   - EINPROGRESS                    -> subscribe(want_write) -> InProgress
func (c *Connection) Dial(dialer *dial.Dialer) {
	res, err := dialer.Dial(c.host, c.port)
	if err != nil || res.FD < 0 {
		c.toError()
		return
	}
	c.fd = res.FD
	if res.InProgress {
		c.state = InProgress
		c.subscribe(false, true)
		return
	}
	c.enterConnected()
}

// HandleEvent advances the state machine in response to one readiness
// notification. It is the Reactor's sole entry point into a Connection
// once Attach has run.
func (c *Connection) HandleEvent(ev api.Event) {
	if ev.Err {
		c.toError()
		return
	}
	switch c.state {
	case InProgress:
		c.handleInProgress(ev)
	case Transport:
		c.stepHandshake()
	case Protocol:
		if ev.Readable {
			c.protocolReadLoop()
		}
		if c.state == Protocol && ev.Writable {
			c.transportWrite(true)
		}
	case CloseProtocol:
		if ev.Readable {
			c.closeProtocolReadLoop()
		}
		if c.state == CloseProtocol && ev.Writable {
			c.transportWrite(true)
		}
	case DrainProtocol:
		if ev.Readable {
			c.drainProtocolReadLoop()
		}
		if c.state == DrainProtocol {
			c.transportWrite(false)
			if c.pair.TXWindow().Empty() {
				c.enterCloseTransport()
			}
		}
	case CloseTransport:
		c.stepShutdown()
	case Uninit, Closed, Error:
		// Terminal or not-yet-dialed: nothing to do with a stray event.
	}
}

func (c *Connection) handleInProgress(ev api.Event) {
	if ev.Closed {
		c.toError()
		return
	}
	if !ev.Writable {
		return
	}
	errno, err := c.backend.SocketError(c.fd)
	if err != nil || errno != 0 {
		c.toError()
		return
	}
	c.enterConnected()
}

// enterConnected constructs the transport endpoint over the now-connected
// fd:
//   - factory fails                -> Error, skip transport destroy
//   - endpoint is a Handshaker     -> Transport, attempt a step now
//   - otherwise                    -> subscribe(want_read), enter Protocol
func (c *Connection) enterConnected() {
	ep, ok := c.transportFactory(c.fd)
	if !ok {
		c.toError()
		return
	}
	c.transport = ep
	if hs, ok := ep.(api.Handshaker); ok {
		c.handshaker = hs
		c.state = Transport
		c.stepHandshake()
		return
	}
	c.subscribe(true, false)
	c.enterProtocol()
}

func (c *Connection) stepHandshake() {
	status := c.handshaker.HandshakeStep()
	switch status {
	case api.TransportOK:
		c.enterProtocol()
	case api.TransportClose:
		// Peer rejected the handshake outright.
		c.toError()
	case api.TransportWantRead, api.TransportWantWrite:
		c.arm(status)
	case api.TransportError:
		c.toError()
	}
}

// enterProtocol moves into steady state and gives the session its entry
// hook, if it has one. Read interest is
// armed unconditionally here: this both implements the no-handshake
// "Else" transition and makes sure a transport whose handshake just
// completed is listening too.
func (c *Connection) enterProtocol() {
	c.state = Protocol
	c.subscribe(true, !c.pair.TXWindow().Empty())
	if oc, ok := c.session.(api.OnConnecter); ok {
		status := oc.OnConnect(c.pair)
		c.bindProtocol(status)
		return
	}
	c.transportWrite(true)
}

// bindProtocol routes a ProtocolStatus returned by OnConnect/OnData/
// OnShutdown:
//   - ok    -> transport_write()
//   - close -> transport_write(); then CloseProtocol if the session has
//     an in-band shutdown handshake, else CloseTransport if TX is
//     already empty, else DrainProtocol to flush it first.
//   - error -> Error
func (c *Connection) bindProtocol(status api.ProtocolStatus) {
	switch status {
	case api.ProtocolOK:
		c.transportWrite(true)
	case api.ProtocolClose:
		c.transportWrite(true)
		if c.state != Protocol {
			// transportWrite already drove us to Error/CloseTransport.
			return
		}
		if _, ok := c.session.(api.OnShutdowner); ok {
			c.enterCloseProtocol()
		} else if c.pair.TXWindow().Empty() {
			c.enterCloseTransport()
		} else {
			c.state = DrainProtocol
		}
	case api.ProtocolError:
		c.toError()
	}
}

func (c *Connection) enterCloseProtocol() {
	c.state = CloseProtocol
	if _, ok := c.session.(api.OnShutdowner); !ok {
		// Stop() can reach here even without an in-band shutdown
		// handshake; behave as though the peer already finished one.
		c.state = DrainProtocol
	}
}

// enterCloseTransport runs the transport's optional shutdown step. An
// endpoint without a Shutdowner closes immediately.
func (c *Connection) enterCloseTransport() {
	c.state = CloseTransport
	if sd, ok := c.transport.(api.Shutdowner); ok {
		c.shutdowner = sd
		c.stepShutdown()
		return
	}
	c.toClosed()
}

func (c *Connection) stepShutdown() {
	status := c.shutdowner.ShutdownStep()
	switch status {
	case api.TransportOK:
		c.toClosed()
	case api.TransportWantRead, api.TransportWantWrite:
		c.arm(status)
	default:
		c.toError()
	}
}

// Heartbeat is driven by the Reactor's periodic tick (every
// heartbeatEvery poll cycles, 64 by default). Only Protocol sessions
// receive it.
func (c *Connection) Heartbeat() {
	if c.state != Protocol {
		return
	}
	if hb, ok := c.session.(api.Heartbeater); ok {
		hb.Heartbeat(c.pair.TXWindow())
	}
	c.transportWrite(true)
}

// Stop begins a graceful shutdown, then steps once immediately without
// waiting for the next event: Uninit and InProgress close at once,
// Transport moves to CloseTransport and Protocol to CloseProtocol.
// Every other state (already closing, or terminal) is a no-op.
func (c *Connection) Stop() {
	switch c.state {
	case Uninit, InProgress:
		c.toClosed()
		return
	case Transport:
		c.enterCloseTransport()
	case Protocol:
		c.enterCloseProtocol()
	default:
		return
	}
	c.stepOnce()
}

// stepOnce gives a state that was just entered synchronously (via Stop)
// one chance to make progress before the next real event arrives.
func (c *Connection) stepOnce() {
	switch c.state {
	case CloseTransport:
		c.stepShutdown()
	case CloseProtocol:
		c.transportWrite(true)
	case DrainProtocol:
		c.transportWrite(false)
		if c.pair.TXWindow().Empty() {
			c.enterCloseTransport()
		}
	}
}

// Restart rebuilds the session and re-dials.
// Valid only from Closed; Error connections are never eligible.
func (c *Connection) Restart(dialer *dial.Dialer) error {
	if c.state != Closed {
		return api.ErrNotRestartable
	}
	c.teardown()
	c.session = c.sessionFactory(c.host, c.port)
	c.handshaker = nil
	c.shutdowner = nil
	c.state = Uninit
	c.Dial(dialer)
	return nil
}

func (c *Connection) toClosed() {
	c.teardown()
	c.state = Closed
}

func (c *Connection) toError() {
	c.teardown()
	c.pair.Release()
	c.state = Error
}

// teardown releases transport and session resources and closes the fd
// exactly once. It is safe to call repeatedly: a nil transport or
// fd == -1 short-circuits each step.
func (c *Connection) teardown() {
	if c.transport != nil {
		c.transport.Destroy()
		c.transport = nil
	}
	c.handshaker = nil
	c.shutdowner = nil
	if td, ok := c.session.(api.Teardowner); ok {
		td.Teardown()
	}
	if c.fd >= 0 {
		_ = c.backend.Clear(c.fd)
		_ = c.backend.Close(c.fd)
		c.fd = -1
	}
	c.pair.RXWindow().Reset()
	c.pair.TXWindow().Reset()
}
