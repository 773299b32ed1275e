//go:build unix

// File: transport/plain.go
// Author: momentics <momentics@gmail.com>
//
// Plain TCP transport endpoint: maps trivially to
// read/write syscalls with EAGAIN -> want_*, EINTR -> retry, 0 bytes ->
// close. Grounded on the buffer-pool library's
// lowlevel/client/transport.go, rewritten from net.Conn batch Send/Recv
// onto the raw non-blocking fd the Dialer produced.
package transport

import (
	"golang.org/x/sys/unix"

	"github.com/momentics/manet-ws/api"
)

// PlainEndpoint is an api.Endpoint with no handshake or shutdown
// step: it satisfies only api.Endpoint, not api.Handshaker or
// api.Shutdowner, so the FSM skips straight from enter_connected to
// enter_Protocol.
type PlainEndpoint struct {
	backend api.Backend
	fd      int
}

// NewPlainEndpoint returns an api.EndpointFactory bound to backend.
func NewPlainEndpoint(backend api.Backend) api.EndpointFactory {
	return func(fd int) (api.Endpoint, bool) {
		return &PlainEndpoint{backend: backend, fd: fd}, true
	}
}

func (p *PlainEndpoint) Read(rx api.Output) api.TransportStatus {
	buf := rx.Wbuf()
	if len(buf) == 0 {
		// No space left; the FSM treats a full RX window as fatal
		// overflow before ever calling Read again, so this only
		// happens if the caller mis-sequenced.
		return api.TransportWantRead
	}
	for {
		n, err := p.backend.Read(p.fd, buf)
		if err == nil {
			if n == 0 {
				return api.TransportClose
			}
			rx.Wrote(n)
			return api.TransportOK
		}
		switch err {
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return api.TransportWantRead
		default:
			return api.TransportError
		}
	}
}

func (p *PlainEndpoint) Write(tx api.Input) api.TransportStatus {
	buf := tx.Rbuf()
	if len(buf) == 0 {
		return api.TransportOK
	}
	for {
		n, err := p.backend.Write(p.fd, buf)
		if err == nil {
			if n == 0 {
				// A well-behaved transport consumes >=1 byte per OK;
				// zero-byte success is treated the same
				// as want_write so the FSM arms and retries instead of
				// spinning (the no-progress write guard).
				return api.TransportWantWrite
			}
			tx.Read(n)
			return api.TransportOK
		}
		switch err {
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return api.TransportWantWrite
		default:
			return api.TransportError
		}
	}
}

func (p *PlainEndpoint) Destroy() {}

var _ api.Endpoint = (*PlainEndpoint)(nil)
