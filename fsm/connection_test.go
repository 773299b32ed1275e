package fsm

import (
	"syscall"
	"testing"

	"github.com/momentics/manet-ws/api"
	"github.com/momentics/manet-ws/dial"
	"github.com/momentics/manet-ws/pool"
)

// --- fake api.Backend --------------------------------------------------

type subscribeCall struct {
	fd        int
	wantRead  bool
	wantWrite bool
}

type fakeBackend struct {
	nextFD      int
	connectErr  error
	inProgress  bool
	socketErrno int
	subscribes  []subscribeCall
	closed      map[int]bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{nextFD: 1, closed: make(map[int]bool)}
}

func (b *fakeBackend) Socket() (int, error) {
	fd := b.nextFD
	b.nextFD++
	return fd, nil
}

func (b *fakeBackend) Connect(fd int, host string, port uint16) (bool, error) {
	if b.connectErr != nil {
		return false, b.connectErr
	}
	if b.inProgress {
		return true, syscall.EINPROGRESS
	}
	return false, nil
}

func (b *fakeBackend) ResolveCandidates(host string) ([]string, error) { return []string{host}, nil }

func (b *fakeBackend) SocketError(fd int) (int, error) { return b.socketErrno, nil }
func (b *fakeBackend) Read(fd int, p []byte) (int, error)  { return 0, nil }
func (b *fakeBackend) Write(fd int, p []byte) (int, error) { return 0, nil }
func (b *fakeBackend) Close(fd int) error                  { b.closed[fd] = true; return nil }
func (b *fakeBackend) Subscribe(fd int, userData uintptr, wantRead, wantWrite bool) error {
	b.subscribes = append(b.subscribes, subscribeCall{fd, wantRead, wantWrite})
	return nil
}
func (b *fakeBackend) Clear(fd int) error { return nil }
func (b *fakeBackend) Signal() error      { return nil }
func (b *fakeBackend) Poll(dst []api.Event) (int, error) { return 0, nil }
func (b *fakeBackend) Shutdown() error                   { return nil }

func (b *fakeBackend) lastSubscribe() subscribeCall {
	if len(b.subscribes) == 0 {
		return subscribeCall{}
	}
	return b.subscribes[len(b.subscribes)-1]
}

// --- fake api.Endpoint ---------------------------------------------------

type readResult struct {
	data   []byte
	status api.TransportStatus
}

type epCore struct {
	readQueue    []readResult
	readIdx      int
	writeStatus  []api.TransportStatus
	writeConsume []int
	writeIdx     int
	destroyed    bool
}

func (e *epCore) Read(rx api.Output) api.TransportStatus {
	if e.readIdx >= len(e.readQueue) {
		return api.TransportWantRead
	}
	r := e.readQueue[e.readIdx]
	e.readIdx++
	if len(r.data) > 0 {
		n := copy(rx.Wbuf(), r.data)
		rx.Wrote(n)
	}
	return r.status
}

func (e *epCore) Write(tx api.Input) api.TransportStatus {
	if e.writeIdx >= len(e.writeStatus) {
		return api.TransportWantWrite
	}
	status := e.writeStatus[e.writeIdx]
	consume := 0
	if e.writeIdx < len(e.writeConsume) {
		consume = e.writeConsume[e.writeIdx]
	}
	e.writeIdx++
	if consume > 0 {
		n := consume
		if avail := len(tx.Rbuf()); n > avail {
			n = avail
		}
		tx.Read(n)
	}
	return status
}

func (e *epCore) Destroy() { e.destroyed = true }

// epPlain has no optional capabilities.
type epPlain struct{ epCore }

// epHandshake additionally implements api.Handshaker.
type epHandshake struct {
	epCore
	hsStatuses []api.TransportStatus
	hsIdx      int
}

func (e *epHandshake) HandshakeStep() api.TransportStatus {
	if e.hsIdx >= len(e.hsStatuses) {
		return api.TransportOK
	}
	s := e.hsStatuses[e.hsIdx]
	e.hsIdx++
	return s
}

var (
	_ api.Endpoint   = (*epPlain)(nil)
	_ api.Endpoint   = (*epHandshake)(nil)
	_ api.Handshaker = (*epHandshake)(nil)
)

// --- fake api.Session ----------------------------------------------------

// sBasic implements only the mandatory api.Session surface.
type sBasic struct {
	onData func(io api.IO) api.ProtocolStatus
}

func (s *sBasic) OnData(io api.IO) api.ProtocolStatus {
	if s.onData != nil {
		return s.onData(io)
	}
	return api.ProtocolOK
}

// sFull implements every optional Protocol capability.
type sFull struct {
	sBasic
	onConnect    func(io api.IO) api.ProtocolStatus
	onShutdown   func(io api.IO) api.ProtocolStatus
	heartbeats   int
	teardownHits int
}

func (s *sFull) OnConnect(io api.IO) api.ProtocolStatus {
	if s.onConnect != nil {
		return s.onConnect(io)
	}
	return api.ProtocolOK
}

func (s *sFull) OnShutdown(io api.IO) api.ProtocolStatus {
	if s.onShutdown != nil {
		return s.onShutdown(io)
	}
	return api.ProtocolClose
}

func (s *sFull) Heartbeat(tx api.Output) { s.heartbeats++ }
func (s *sFull) Teardown()               { s.teardownHits++ }

var (
	_ api.Session      = (*sBasic)(nil)
	_ api.Session      = (*sFull)(nil)
	_ api.OnConnecter  = (*sFull)(nil)
	_ api.OnShutdowner = (*sFull)(nil)
	_ api.Heartbeater  = (*sFull)(nil)
	_ api.Teardowner   = (*sFull)(nil)
)

// --- test helpers ---------------------------------------------------------

func newTestConnection(backend *fakeBackend, tf api.EndpointFactory, sf api.SessionFactory) *Connection {
	wp := pool.NewWindowPool(64)
	c := New("example.com", 9002, backend, wp, tf, sf)
	c.fd = 7
	c.cookie = 42
	return c
}

// --- scenarios --------------------------------------------------------

func TestSyncConnectNoHandshakeEntersProtocolAndRunsOnConnect(t *testing.T) {
	be := newFakeBackend()
	var connected bool
	sess := &sFull{onConnect: func(io api.IO) api.ProtocolStatus {
		connected = true
		return api.ProtocolOK
	}}
	ep := &epPlain{}
	c := newTestConnection(be, func(fd int) (api.Endpoint, bool) { return ep, true }, func(host string, port uint16) api.Session { return sess })

	c.enterConnected()

	if c.State() != Protocol {
		t.Fatalf("expected Protocol, got %v", c.State())
	}
	if !connected {
		t.Fatal("expected OnConnect to run on entering Protocol")
	}
}

func TestHandshakeWantReadThenCompletes(t *testing.T) {
	be := newFakeBackend()
	ep := &epHandshake{hsStatuses: []api.TransportStatus{api.TransportWantRead, api.TransportOK}}
	sess := &sFull{}
	c := newTestConnection(be, func(fd int) (api.Endpoint, bool) { return ep, true }, func(host string, port uint16) api.Session { return sess })

	c.enterConnected()
	if c.State() != Transport {
		t.Fatalf("expected Transport after want_read, got %v", c.State())
	}
	if be.lastSubscribe().wantRead != true {
		t.Fatal("expected a read subscription while handshake wants more data")
	}

	c.stepHandshake()
	if c.State() != Protocol {
		t.Fatalf("expected Protocol once handshake completes, got %v", c.State())
	}
}

func TestDialInProgressSubscribesWantWriteOnly(t *testing.T) {
	be := newFakeBackend()
	be.inProgress = true
	d := dial.New(be)
	ep := &epPlain{}
	sess := &sBasic{}
	c := New("example.com", 9002, be, pool.NewWindowPool(64),
		func(fd int) (api.Endpoint, bool) { return ep, true },
		func(host string, port uint16) api.Session { return sess })

	c.Attach(1, d)

	if c.State() != InProgress {
		t.Fatalf("expected InProgress, got %v", c.State())
	}
	last := be.lastSubscribe()
	if last.wantRead || !last.wantWrite {
		t.Fatalf("expected want_write-only subscription, got %+v", last)
	}
}

func TestInProgressBecomesConnectedOnWritableWithNoSocketError(t *testing.T) {
	be := newFakeBackend()
	be.inProgress = true
	d := dial.New(be)
	ep := &epPlain{}
	sess := &sBasic{}
	c := New("example.com", 9002, be, pool.NewWindowPool(64),
		func(fd int) (api.Endpoint, bool) { return ep, true },
		func(host string, port uint16) api.Session { return sess })
	c.Attach(1, d)

	c.HandleEvent(api.Event{Writable: true})

	if c.State() != Protocol {
		t.Fatalf("expected Protocol, got %v", c.State())
	}
}

func TestInProgressSocketErrorGoesToError(t *testing.T) {
	be := newFakeBackend()
	be.inProgress = true
	be.socketErrno = int(syscall.ECONNREFUSED)
	d := dial.New(be)
	ep := &epPlain{}
	sess := &sBasic{}
	c := New("example.com", 9002, be, pool.NewWindowPool(64),
		func(fd int) (api.Endpoint, bool) { return ep, true },
		func(host string, port uint16) api.Session { return sess })
	c.Attach(1, d)

	c.HandleEvent(api.Event{Writable: true})

	if c.State() != Error {
		t.Fatalf("expected Error, got %v", c.State())
	}
}

func TestProtocolReadLoopDrainsUntilSessionWantsMore(t *testing.T) {
	be := newFakeBackend()
	ep := &epPlain{epCore: epCore{
		readQueue: []readResult{{data: []byte("hello"), status: api.TransportOK}},
	}}
	calls := 0
	sess := &sBasic{onData: func(io api.IO) api.ProtocolStatus {
		calls++
		n := len(io.RX().Rbuf())
		if n == 0 {
			return api.ProtocolOK
		}
		io.RX().Read(n) // consume everything available in one shot
		return api.ProtocolOK
	}}
	c := newTestConnection(be, func(fd int) (api.Endpoint, bool) { return ep, true }, func(host string, port uint16) api.Session { return sess })
	c.session = sess
	c.transport = ep
	c.state = Protocol

	c.protocolReadLoop()

	if c.pair.RXWindow().Rbuf() != nil && len(c.pair.RXWindow().Rbuf()) != 0 {
		t.Fatalf("expected RX fully drained, got %d bytes left", len(c.pair.RXWindow().Rbuf()))
	}
	if calls == 0 {
		t.Fatal("expected OnData to be invoked at least once")
	}
}

func TestRXOverflowGuardGoesToError(t *testing.T) {
	be := newFakeBackend()
	ep := &epPlain{}
	sess := &sBasic{}
	c := newTestConnection(be, func(fd int) (api.Endpoint, bool) { return ep, true }, func(host string, port uint16) api.Session { return sess })
	c.session = sess
	c.transport = ep
	c.state = Protocol

	rxw := c.pair.RXWindow()
	rxw.Wrote(len(rxw.Wbuf())) // fill to capacity without ever reading

	c.protocolReadLoop()

	if c.State() != Error {
		t.Fatalf("expected Error on RX overflow, got %v", c.State())
	}
}

func TestTransportWriteNoProgressArmsWantWrite(t *testing.T) {
	be := newFakeBackend()
	ep := &epPlain{epCore: epCore{
		writeStatus:  []api.TransportStatus{api.TransportOK},
		writeConsume: []int{0},
	}}
	sess := &sBasic{}
	c := newTestConnection(be, func(fd int) (api.Endpoint, bool) { return ep, true }, func(host string, port uint16) api.Session { return sess })
	c.session = sess
	c.transport = ep
	c.state = Protocol

	txw := c.pair.TXWindow()
	n := copy(txw.Wbuf(), []byte("stalled"))
	txw.Wrote(n)

	c.transportWrite(true)

	last := be.lastSubscribe()
	if !last.wantWrite {
		t.Fatalf("expected a want_write subscription after a no-progress write, got %+v", last)
	}
}

func TestBindProtocolCloseWithShutdownerEntersCloseProtocol(t *testing.T) {
	be := newFakeBackend()
	ep := &epPlain{}
	sess := &sFull{}
	c := newTestConnection(be, func(fd int) (api.Endpoint, bool) { return ep, true }, func(host string, port uint16) api.Session { return sess })
	c.session = sess
	c.transport = ep
	c.state = Protocol

	c.bindProtocol(api.ProtocolClose)

	if c.State() != CloseProtocol {
		t.Fatalf("expected CloseProtocol, got %v", c.State())
	}
}

func TestBindProtocolCloseWithoutShutdownerAndEmptyTXGoesStraightToClosed(t *testing.T) {
	be := newFakeBackend()
	ep := &epPlain{}
	sess := &sBasic{}
	c := newTestConnection(be, func(fd int) (api.Endpoint, bool) { return ep, true }, func(host string, port uint16) api.Session { return sess })
	c.session = sess
	c.transport = ep
	c.state = Protocol

	c.bindProtocol(api.ProtocolClose)

	if c.State() != Closed {
		t.Fatalf("expected Closed, got %v", c.State())
	}
	if !ep.destroyed {
		t.Fatal("expected teardown to destroy the transport")
	}
	if !be.closed[7] {
		t.Fatal("expected fd to be closed during teardown")
	}
}

func TestStopFromUninitAndInProgressClosesImmediately(t *testing.T) {
	be := newFakeBackend()
	ep := &epPlain{}
	sess := &sBasic{}
	c := newTestConnection(be, func(fd int) (api.Endpoint, bool) { return ep, true }, func(host string, port uint16) api.Session { return sess })
	c.state = Uninit

	c.Stop()

	if c.State() != Closed {
		t.Fatalf("expected Closed, got %v", c.State())
	}

	c2 := newTestConnection(be, func(fd int) (api.Endpoint, bool) { return ep, true }, func(host string, port uint16) api.Session { return sess })
	c2.state = InProgress

	c2.Stop()

	if c2.State() != Closed {
		t.Fatalf("expected Closed from InProgress, got %v", c2.State())
	}
}

func TestRestartOnlyValidFromClosed(t *testing.T) {
	be := newFakeBackend()
	d := dial.New(be)
	ep := &epPlain{}
	sess := &sBasic{}
	c := newTestConnection(be, func(fd int) (api.Endpoint, bool) { return ep, true }, func(host string, port uint16) api.Session { return sess })
	c.state = Protocol

	if err := c.Restart(d); err != api.ErrNotRestartable {
		t.Fatalf("expected ErrNotRestartable, got %v", err)
	}
}

func TestRestartAfterClosedRedials(t *testing.T) {
	be := newFakeBackend()
	d := dial.New(be)
	ep := &epPlain{}
	sess := &sBasic{}
	c := newTestConnection(be, func(fd int) (api.Endpoint, bool) { return ep, true }, func(host string, port uint16) api.Session { return sess })
	c.state = Closed
	c.fd = -1

	if err := c.Restart(d); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if c.State() != Protocol {
		t.Fatalf("expected Protocol after a fresh sync connect, got %v", c.State())
	}
}

func TestHeartbeatOnlyFiresInProtocolAndDrainsTX(t *testing.T) {
	be := newFakeBackend()
	ep := &epPlain{}
	sess := &sFull{}
	c := newTestConnection(be, func(fd int) (api.Endpoint, bool) { return ep, true }, func(host string, port uint16) api.Session { return sess })
	c.session = sess
	c.transport = ep
	c.state = Transport

	c.Heartbeat()
	if sess.heartbeats != 0 {
		t.Fatal("heartbeat must be a no-op outside Protocol")
	}

	txw := c.pair.TXWindow()
	txw.Wrote(copy(txw.Wbuf(), []byte("hb")))
	ep.writeStatus = []api.TransportStatus{api.TransportOK}
	ep.writeConsume = []int{2}

	c.state = Protocol
	c.Heartbeat()
	if sess.heartbeats != 1 {
		t.Fatalf("expected exactly one heartbeat call, got %d", sess.heartbeats)
	}
	if !txw.Empty() {
		t.Fatalf("expected heartbeat to drain TX, %d bytes left", len(txw.Rbuf()))
	}
}
