// File: api/backend.go
// Author: momentics <momentics@gmail.com>
//
// Defines the event backend contract: non-blocking sockets,
// edge-triggered readiness subscription, a process-wide wake signal, and
// event classification. Generalized from the buffer-pool library's
// EventReactor (reactor/reactor.go) into the exact subscribe/clear/
// signal/poll surface the connection FSM requires.

package api

// Event is one readiness notification returned by Backend.Poll.
type Event struct {
	UserData uintptr
	Readable bool
	Writable bool
	Err      bool
	Closed   bool
	IsSignal bool
}

// Backend abstracts the OS-specific edge-triggered multiplexer (epoll,
// kqueue, ...). A single Backend instance drives one Reactor.
type Backend interface {
	// Socket creates a non-blocking, stream, IPv4 TCP socket.
	Socket() (fd int, err error)

	// Connect issues a non-blocking connect(2) against addr, which must
	// already be a resolved IP literal (see ResolveCandidates).
	// inProgress=false and err=nil means the connection completed
	// synchronously; inProgress=true and err==syscall.EINPROGRESS means
	// the caller must wait for a writable edge.
	Connect(fd int, addr string, port uint16) (inProgress bool, err error)

	// ResolveCandidates resolves host to every IPv4 address the caller
	// should try, in order, so a Dial that fails synchronously against
	// one candidate can move on to the next.
	ResolveCandidates(host string) ([]string, error)

	// SocketError returns the pending SO_ERROR for fd (0 means none).
	SocketError(fd int) (int, error)

	// Read/Write map directly to the POSIX syscalls with EAGAIN/EINTR
	// translated by the caller (transport layer), not here.
	Read(fd int, p []byte) (int, error)
	Write(fd int, p []byte) (int, error)

	// Close releases fd.
	Close(fd int) error

	// Subscribe atomically (re-)arms edge-triggered interest for fd.
	// Calling it again fully replaces the prior interest set.
	Subscribe(fd int, userData uintptr, wantRead, wantWrite bool) error

	// Clear removes all subscriptions for fd.
	Clear(fd int) error

	// Signal posts a wake event observable by the next Poll call.
	// Exactly one Event with IsSignal=true is delivered per call.
	Signal() error

	// Poll blocks up to the backend's budget (~100ms) and returns
	// readiness events into dst, returning the count filled.
	Poll(dst []Event) (int, error)

	// Shutdown releases backend-owned resources (epoll fd, wake fd).
	Shutdown() error
}
