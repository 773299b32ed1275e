// File: dial/dialer.go
// Author: momentics <momentics@gmail.com>
//
// Dialer resolves host:port and attempts a non-blocking connect,
// reporting synchronous success or "in progress". Grounded on the
// buffer-pool library's lowlevel/client/transport.go (nonblocking
// socket wrapping) and transport/tcp/listener.go's address-resolution
// style, generalized to the backend contract instead of net.Conn.
package dial

import (
	"github.com/momentics/manet-ws/api"
)

// Result is the outcome of Dial.
type Result struct {
	FD         int
	InProgress bool
}

// Dialer issues non-blocking connect attempts through an api.Backend.
type Dialer struct {
	backend api.Backend
}

// New constructs a Dialer bound to backend.
func New(backend api.Backend) *Dialer {
	return &Dialer{backend: backend}
}

// Dial resolves host to every IPv4 candidate and tries each in turn
// until one connects or all fail:
//   - synchronous success -> Result{fd, false}, nil
//   - EINPROGRESS         -> Result{fd, true}, nil
//   - a candidate's connect fails synchronously -> close fd, try next
//   - resolution/connect failure on every candidate -> Result{-1,...}, err
func (d *Dialer) Dial(host string, port uint16) (Result, error) {
	candidates, err := d.backend.ResolveCandidates(host)
	if err != nil || len(candidates) == 0 {
		return Result{FD: -1}, api.ErrDialFailed
	}
	for _, addr := range candidates {
		fd, err := d.backend.Socket()
		if err != nil {
			continue
		}
		inProgress, err := d.backend.Connect(fd, addr, port)
		if err == nil || inProgress {
			return Result{FD: fd, InProgress: inProgress}, nil
		}
		_ = d.backend.Close(fd)
	}
	return Result{FD: -1}, api.ErrDialFailed
}
