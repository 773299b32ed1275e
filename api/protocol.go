// File: api/protocol.go
// Author: momentics <momentics@gmail.com>
//
// Defines the Protocol contract: per-connection Session
// state plus a set of optional capabilities detected by type assertion,
// the Go analog of the C++ HasConnectHandler/HasShutdown trait-detection
// idiom.

package api

// Session is the required Protocol capability: every session must be
// able to consume bytes that have already landed in rx.
type Session interface {
	// OnData is invoked after the transport makes read progress, and
	// repeatedly while it keeps shrinking rx.Rbuf() (bounded-progress
	// guarantee). Returning ProtocolOK without consuming any
	// bytes must be treated by the caller as "need more data".
	OnData(io IO) ProtocolStatus
}

// OnConnecter is optional: sessions that must emit something on entry
// to the Protocol state (e.g. a WebSocket upgrade request) implement
// it.
type OnConnecter interface {
	OnConnect(io IO) ProtocolStatus
}

// OnShutdowner is optional: sessions that drive a graceful in-band
// shutdown handshake (still reading) implement it.
type OnShutdowner interface {
	OnShutdown(io IO) ProtocolStatus
}

// Heartbeater is optional: sessions that want to emit unsolicited data
// on every reactor tick (while in the Protocol state) implement it.
type Heartbeater interface {
	Heartbeat(tx Output)
}

// Teardowner is optional: sessions holding resources beyond Go's GC
// reach (registered callbacks, pooled buffers) implement it to release
// them before the file descriptor is closed.
type Teardowner interface {
	Teardown()
}

// SessionFactory rebuilds a Session from stored configuration; called
// once at Connection construction and again on every restart().
type SessionFactory func(host string, port uint16) Session
