// File: fsm/state.go
// Author: momentics <momentics@gmail.com>
//
// Connection state enum. Grounded on original_source's
// include/manet/reactor/connection.hpp state machine and the buffer-pool
// library's protocol/connection.go lifecycle comments.
package fsm

// State is one node of the Connection state machine.
type State int

const (
	// Uninit is the state between construction and the first Dial call.
	Uninit State = iota
	// InProgress is a socket with a connect(2) pending EINPROGRESS.
	InProgress
	// Transport is a connected socket whose endpoint still needs a
	// handshake step (e.g. TLS) before Protocol data may flow.
	Transport
	// Protocol is normal steady-state operation: session consumes RX and
	// produces TX.
	Protocol
	// CloseProtocol is a graceful, still-reading protocol shutdown
	// handshake (e.g. a WebSocket close frame exchange).
	CloseProtocol
	// DrainProtocol discards incoming bytes while flushing any remaining
	// TX, on the way to CloseTransport.
	DrainProtocol
	// CloseTransport runs the transport's optional shutdown step (e.g.
	// TLS close_notify).
	CloseTransport
	// Closed is a terminal, restart-eligible state: no owned fd.
	Closed
	// Error is a terminal, non-restart-eligible state: no owned fd.
	Error
)

func (s State) String() string {
	switch s {
	case Uninit:
		return "uninit"
	case InProgress:
		return "in_progress"
	case Transport:
		return "transport"
	case Protocol:
		return "protocol"
	case CloseProtocol:
		return "close_protocol"
	case DrainProtocol:
		return "drain_protocol"
	case CloseTransport:
		return "close_transport"
	case Closed:
		return "closed"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}
