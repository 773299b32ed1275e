//go:build unix

// File: transport/tls.go
// Author: momentics <momentics@gmail.com>
//
// TLS transport endpoint. Only the handshake/shutdown/read/
// write contract matters here, not the concrete TLS library's own
// internals. This wraps the raw non-blocking fd in a
// standard net.Conn (via os.NewFile/net.FileConn, which the Go runtime
// integrates with its own netpoller) and drives crypto/tls.Conn with
// zero-deadline probes so Handshake/Read/Write never actually block the
// single reactor thread; a probe timeout is translated back into a
// want_read/want_write result. Grounded on original_source's
// include/manet/transport/tls.hpp state machine and
// src/manet/transport/tls_bio.cc's read/write pump shape.
package transport

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/manet-ws/api"
)

// errWantRead / errWantWrite are sentinel errors nbConn returns instead
// of a generic timeout so the endpoint can tell which edge crypto/tls
// was blocked on.
var (
	errWantRead  = errors.New("transport: tls probe wants read")
	errWantWrite = errors.New("transport: tls probe wants write")
)

// nbConn adapts a blocking net.Conn into a non-blocking one by arming
// an immediate deadline before every call and translating the resulting
// timeout into a directional sentinel.
type nbConn struct {
	net.Conn
}

func (c *nbConn) Read(p []byte) (int, error) {
	_ = c.Conn.SetReadDeadline(time.Now())
	n, err := c.Conn.Read(p)
	if isTimeout(err) {
		return n, errWantRead
	}
	return n, err
}

func (c *nbConn) Write(p []byte) (int, error) {
	_ = c.Conn.SetWriteDeadline(time.Now())
	n, err := c.Conn.Write(p)
	if isTimeout(err) {
		return n, errWantWrite
	}
	return n, err
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// TLSEndpoint drives a crypto/tls.Conn's handshake and close_notify
// shutdown as discrete, resumable steps.
type TLSEndpoint struct {
	raw       *os.File
	conn      *tls.Conn
	shutdown1 bool // close_notify sent
}

// NewTLSEndpoint returns an api.EndpointFactory that dials serverName
// over TLS >= 1.2 with peer verification and SNI.
func NewTLSEndpoint(serverName string, cfg *tls.Config) api.EndpointFactory {
	return func(fd int) (api.Endpoint, bool) {
		dupFD, err := unix.Dup(fd)
		if err != nil {
			return nil, false
		}
		f := os.NewFile(uintptr(dupFD), "manet-tls")
		nc, err := net.FileConn(f)
		if err != nil {
			_ = f.Close()
			return nil, false
		}
		conf := cfg.Clone()
		if conf == nil {
			conf = &tls.Config{}
		}
		if conf.ServerName == "" {
			conf.ServerName = serverName
		}
		if conf.MinVersion == 0 {
			conf.MinVersion = tls.VersionTLS12
		}
		tc := tls.Client(&nbConn{Conn: nc}, conf)
		return &TLSEndpoint{raw: f, conn: tc}, true
	}
}

func (t *TLSEndpoint) HandshakeStep() api.TransportStatus {
	err := t.conn.Handshake()
	switch {
	case err == nil:
		return api.TransportOK
	case errors.Is(err, errWantRead):
		return api.TransportWantRead
	case errors.Is(err, errWantWrite):
		return api.TransportWantWrite
	case errors.Is(err, io.EOF):
		return api.TransportClose
	default:
		return api.TransportError
	}
}

func (t *TLSEndpoint) Read(rx api.Output) api.TransportStatus {
	buf := rx.Wbuf()
	if len(buf) == 0 {
		return api.TransportWantRead
	}
	n, err := t.conn.Read(buf)
	if n > 0 {
		rx.Wrote(n)
	}
	switch {
	case err == nil:
		return api.TransportOK
	case errors.Is(err, errWantRead):
		if n > 0 {
			return api.TransportOK
		}
		return api.TransportWantRead
	case errors.Is(err, errWantWrite):
		return api.TransportWantWrite
	case errors.Is(err, io.EOF):
		return api.TransportClose
	default:
		return api.TransportError
	}
}

func (t *TLSEndpoint) Write(tx api.Input) api.TransportStatus {
	buf := tx.Rbuf()
	if len(buf) == 0 {
		return api.TransportOK
	}
	n, err := t.conn.Write(buf)
	if n > 0 {
		tx.Read(n)
	}
	switch {
	case err == nil:
		return api.TransportOK
	case errors.Is(err, errWantWrite):
		if n > 0 {
			return api.TransportOK
		}
		return api.TransportWantWrite
	case errors.Is(err, errWantRead):
		return api.TransportWantRead
	default:
		return api.TransportError
	}
}

// ShutdownStep drives the close_notify exchange: the first call sends
// our close_notify, subsequent calls drain the peer's until it arrives
// (surfaced by crypto/tls as io.EOF) or the connection errors.
func (t *TLSEndpoint) ShutdownStep() api.TransportStatus {
	if !t.shutdown1 {
		err := t.conn.CloseWrite()
		t.shutdown1 = true
		switch {
		case err == nil:
			return api.TransportWantRead
		case errors.Is(err, errWantWrite):
			t.shutdown1 = false
			return api.TransportWantWrite
		default:
			return api.TransportError
		}
	}
	var discard [256]byte
	_, err := t.conn.Read(discard[:])
	switch {
	case errors.Is(err, io.EOF):
		return api.TransportOK
	case errors.Is(err, errWantRead):
		return api.TransportWantRead
	case err == nil:
		return api.TransportWantRead
	default:
		return api.TransportError
	}
}

// Destroy closes both the tls.Conn (and the FileConn's own duplicated
// fd underneath it) and t.raw, the separate os.File dup net.FileConn
// left independently owned.
func (t *TLSEndpoint) Destroy() {
	_ = t.conn.Close()
	_ = t.raw.Close()
}

var (
	_ api.Endpoint    = (*TLSEndpoint)(nil)
	_ api.Handshaker  = (*TLSEndpoint)(nil)
	_ api.Shutdowner  = (*TLSEndpoint)(nil)
)
