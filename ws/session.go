// File: ws/session.go
// Author: momentics <momentics@gmail.com>
//
// Session is the RFC 6455 client protocol implementation of api.Session:
// Idle -> HandshakeSent -> Open. The closing handshake is tracked by the
// closeSent/peerClosed flags; stateClosingSent is never entered. It
// speaks entirely in terms of api.IO byte windows, never
// blocks, and never spawns a goroutine - the fragment-reassembly and
// control-frame handling rules are adapted from the buffer-pool
// library's protocol/connection.go recvLoop/handleControl, restructured
// from a channel-fed goroutine onto the FSM's pull-based OnData/
// OnShutdown/Heartbeat calls.
package ws

import (
	"bytes"

	"github.com/momentics/manet-ws/api"
	"github.com/momentics/manet-ws/logging"
)

type sessionState int

const (
	stateIdle sessionState = iota
	stateHandshakeSent
	stateOpen
	stateClosingSent
)

// MessageHandler receives a complete, reassembled text or binary
// message. opcode is OpcodeText or OpcodeBinary.
type MessageHandler func(opcode byte, payload []byte)

// Session implements api.Session plus every optional capability the
// WebSocket client protocol needs (api.OnConnecter, api.OnShutdowner,
// api.Heartbeater, api.Teardowner).
type Session struct {
	host  string
	path  string
	extra []Header

	state sessionState
	key   string

	fragmenting bool
	fragOpcode  byte
	fragBuf     []byte

	requestDeflate    bool
	deflateNegotiated bool

	peerClosed bool
	closeSent  bool

	outq      *OutboundQueue
	onMessage MessageHandler

	heartbeatTick int
	pingEvery     int
}

// NewSessionFactory returns an api.SessionFactory that builds a fresh
// Session for path on every Connection construction/restart. extra is
// sent after the five mandatory upgrade headers on every (re)connect.
// pingEvery is in reactor heartbeat ticks (one tick is 64 poll cycles
// unless heartbeat_ticks is configured);
// 0 disables idle pings. onMessage may be nil, in which case received
// messages are only logged. onCreate, if non-nil, is called with every
// freshly built Session (including on restart), letting the caller keep
// a current handle for Enqueue without the factory leaking the
// Connection/FSM layer's internals. requestDeflate, if set, offers
// permessage-deflate on every (re)connect; the frame codec never
// compresses, so a negotiated deflate only changes what
// DeflateNegotiated reports.
func NewSessionFactory(path string, extra []Header, pingEvery int, requestDeflate bool, onMessage MessageHandler, onCreate func(*Session)) api.SessionFactory {
	return func(host string, port uint16) api.Session {
		s := &Session{
			host:           host,
			path:           path,
			extra:          extra,
			outq:           NewOutboundQueue(),
			onMessage:      onMessage,
			pingEvery:      pingEvery,
			requestDeflate: requestDeflate,
		}
		if onCreate != nil {
			onCreate(s)
		}
		return s
	}
}

// DeflateNegotiated reports whether the server accepted this session's
// permessage-deflate offer on the current (re)connect.
func (s *Session) DeflateNegotiated() bool { return s.deflateNegotiated }

// Enqueue queues a text/binary application message for delivery; it is
// safe to call at any point in the session's life, including before the
// handshake completes. opcode must be OpcodeText or OpcodeBinary.
func (s *Session) Enqueue(opcode byte, payload []byte) {
	s.outq.Push(opcode, payload)
}

// OnConnect sends the upgrade request.
func (s *Session) OnConnect(io api.IO) api.ProtocolStatus {
	req, key, err := buildRequest(s.host, s.path, s.extra, s.requestDeflate)
	if err != nil {
		return api.ProtocolError
	}
	tx := io.TX()
	buf := tx.Wbuf()
	if len(buf) < len(req) {
		return api.ProtocolError
	}
	n := copy(buf, req)
	tx.Wrote(n)
	s.key = key
	s.state = stateHandshakeSent
	return api.ProtocolOK
}

// OnData dispatches to the handshake-response parser or the frame
// parser depending on session state.
func (s *Session) OnData(io api.IO) api.ProtocolStatus {
	switch s.state {
	case stateHandshakeSent:
		return s.consumeHandshake(io)
	case stateOpen, stateClosingSent:
		s.flushQueue(io.TX())
		return s.consumeOneFrame(io)
	default:
		return api.ProtocolOK
	}
}

func (s *Session) consumeHandshake(io api.IO) api.ProtocolStatus {
	rx := io.RX()
	buf := rx.Rbuf()
	idx := bytes.Index(buf, []byte("\r\n\r\n"))
	if idx < 0 {
		return api.ProtocolOK // need more bytes
	}
	headerLen := idx + 4
	deflate, err := parseResponse(buf[:headerLen], s.key)
	if err != nil {
		return api.ProtocolError
	}
	s.deflateNegotiated = deflate
	rx.Read(headerLen)
	s.state = stateOpen
	s.flushQueue(io.TX())
	return api.ProtocolOK
}

// consumeOneFrame parses and handles a single frame from the head of
// RX, consuming it on success. Leaving any further buffered frames for
// the next OnData call lets the FSM's bounded-progress loop drive the
// drain.
func (s *Session) consumeOneFrame(io api.IO) api.ProtocolStatus {
	rx := io.RX()
	frame, consumed, status := ParseFrame(rx.Rbuf())
	switch status {
	case api.FrameNeedMore:
		return api.ProtocolOK
	case api.FrameMaskedServer, api.FrameBadReserved:
		return api.ProtocolError
	}
	rx.Read(consumed)
	return s.handleFrame(io, frame)
}

func (s *Session) handleFrame(io api.IO, frame Frame) api.ProtocolStatus {
	switch frame.Opcode {
	case OpcodePing:
		if len(frame.Payload) >= 126 {
			return api.ProtocolClose
		}
		s.writeControl(io.TX(), OpcodePong, frame.Payload)
		return api.ProtocolOK
	case OpcodePong:
		return api.ProtocolOK
	case OpcodeClose:
		s.peerClosed = true
		if !s.closeSent {
			s.writeControl(io.TX(), OpcodeClose, frame.Payload)
			s.closeSent = true
		}
		return api.ProtocolClose
	case OpcodeContinuation:
		if !s.fragmenting {
			return api.ProtocolError
		}
		if len(s.fragBuf)+len(frame.Payload) > MaxFramePayload {
			return api.ProtocolError
		}
		s.fragBuf = append(s.fragBuf, frame.Payload...)
		if frame.Fin {
			s.deliver(s.fragOpcode, s.fragBuf)
			s.fragBuf = nil
			s.fragmenting = false
		}
		return api.ProtocolOK
	case OpcodeText, OpcodeBinary:
		if !frame.Fin {
			if len(frame.Payload) > MaxFramePayload {
				return api.ProtocolError
			}
			s.fragmenting = true
			s.fragOpcode = frame.Opcode
			s.fragBuf = append(s.fragBuf[:0], frame.Payload...)
			return api.ProtocolOK
		}
		s.deliver(frame.Opcode, frame.Payload)
		return api.ProtocolOK
	default:
		return api.ProtocolError
	}
}

func (s *Session) deliver(opcode byte, payload []byte) {
	if s.onMessage != nil {
		s.onMessage(opcode, payload)
		return
	}
	logging.Default().Printf("ws: received %d bytes (opcode %d)", len(payload), opcode)
}

// writeControl best-effort encodes a control frame directly into tx; a
// control frame is always small, but if the window happens to be full
// the reply is silently dropped rather than blocking the FSM.
func (s *Session) writeControl(tx api.Output, opcode byte, payload []byte) {
	n, err := EncodeFrame(tx.Wbuf(), opcode, true, payload)
	if err != nil {
		return
	}
	tx.Wrote(n)
}

// flushQueue drains as many queued application messages into tx as fit,
// stopping the moment one no longer fits. See queue.go for OutboundQueue.
func (s *Session) flushQueue(tx api.Output) {
	for {
		msg, ok := s.outq.Peek()
		if !ok {
			return
		}
		n, err := EncodeFrame(tx.Wbuf(), msg.opcode, true, msg.payload)
		if err != nil {
			return
		}
		tx.Wrote(n)
		s.outq.Pop()
	}
}

// OnShutdown runs the in-band close handshake for the CloseProtocol
// state: it keeps reading until the peer's close frame is seen,
// having already echoed our own close (or sent it here, if the shutdown
// was locally initiated via Stop() rather than a received close frame).
func (s *Session) OnShutdown(io api.IO) api.ProtocolStatus {
	if !s.closeSent {
		s.writeControl(io.TX(), OpcodeClose, nil)
		s.closeSent = true
	}
	if s.peerClosed {
		return api.ProtocolClose
	}
	rx := io.RX()
	frame, consumed, status := ParseFrame(rx.Rbuf())
	switch status {
	case api.FrameNeedMore:
		return api.ProtocolOK
	case api.FrameMaskedServer, api.FrameBadReserved:
		return api.ProtocolError
	}
	rx.Read(consumed)
	if frame.Opcode == OpcodeClose {
		s.peerClosed = true
		return api.ProtocolClose
	}
	// Non-close frames arriving during shutdown are discarded.
	return api.ProtocolOK
}

// Heartbeat sends an idle ping every pingEvery reactor ticks and
// opportunistically drains the outbound queue.
func (s *Session) Heartbeat(tx api.Output) {
	s.flushQueue(tx)
	if s.pingEvery <= 0 || s.state != stateOpen {
		return
	}
	s.heartbeatTick++
	if s.heartbeatTick%s.pingEvery != 0 {
		return
	}
	s.writeControl(tx, OpcodePing, nil)
}

// Teardown releases session-owned buffers before the fd closes.
func (s *Session) Teardown() {
	s.fragBuf = nil
	s.outq.Reset()
}

var (
	_ api.Session      = (*Session)(nil)
	_ api.OnConnecter  = (*Session)(nil)
	_ api.OnShutdowner = (*Session)(nil)
	_ api.Heartbeater  = (*Session)(nil)
	_ api.Teardowner   = (*Session)(nil)
)
