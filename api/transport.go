// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the Transport contract: a per-connection endpoint
// constructed over a raw, already-connected file descriptor, offering an
// optional handshake step, non-blocking Read/Write against the layered
// buffers, and an optional shutdown step. Concrete endpoints live in
// package transport (plain TCP, TLS).

package api

// Endpoint is the per-connection transport state. It is exclusively
// owned by one Connection, constructed in enter_connected and destroyed
// in teardown.
type Endpoint interface {
	// Read pulls zero or more bytes from the network into rx.Wbuf(),
	// advancing Wrote. Returns TransportOK iff at least one byte was
	// written or a subsequent call would immediately make progress.
	Read(rx Output) TransportStatus

	// Write drains tx.Rbuf() to the network, advancing Read. A
	// well-behaved endpoint consumes at least one byte per TransportOK.
	Write(tx Input) TransportStatus

	// Destroy releases transport-owned resources. It never closes the
	// underlying file descriptor; that is the Connection's job.
	Destroy()
}

// Handshaker is an optional capability: endpoints that require a
// handshake before Read/Write may be used (e.g. TLS) implement it.
type Handshaker interface {
	// HandshakeStep is called repeatedly by the FSM's Transport state
	// until it returns TransportOK.
	HandshakeStep() TransportStatus
}

// Shutdowner is an optional capability: endpoints with a graceful
// close/shutdown handshake (e.g. TLS close_notify) implement it.
type Shutdowner interface {
	// ShutdownStep is called repeatedly by the FSM's CloseTransport
	// state until it returns TransportOK (clean) or a terminal,
	// non-OK status.
	ShutdownStep() TransportStatus
}

// EndpointFactory constructs a concrete Endpoint over a connected,
// non-blocking file descriptor. It returns (nil, false) on failure; the
// FSM surfaces that as an Error transition without calling Destroy on a
// nonexistent endpoint.
type EndpointFactory func(fd int) (Endpoint, bool)
