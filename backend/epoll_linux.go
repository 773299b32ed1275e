//go:build linux
// +build linux

// File: backend/epoll_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll implementation of the event backend contract.
// Grounded on the buffer-pool library's reactor/epoll_reactor.go and
// internal/transport/transport_linux.go, rewritten against
// golang.org/x/sys/unix instead of raw syscall (the source
// epoll_reactor.go carries an inconsistent Register signature against
// its own EventReactor interface; this implementation does not inherit
// it — see DESIGN.md's "fstack subscribe bug" Open Question).
package backend

import (
	"golang.org/x/sys/unix"

	"github.com/momentics/manet-ws/api"
)

// pollTimeoutMs bounds how long a single Poll call blocks waiting for
// readiness events (~100 ms), giving the reactor a coarse heartbeat
// clock even when the backend is otherwise idle.
const pollTimeoutMs = 100

// EpollBackend implements api.Backend using epoll_ctl/epoll_wait in
// edge-triggered mode (EPOLLET), plus an eventfd for Signal().
type EpollBackend struct {
	epfd     int
	wakeFD   int
	wantR    map[int]bool // fd -> subscribed for read, tracked to avoid
	wantW    map[int]bool // partial EPOLLET re-arm bugs
}

// NewEpollBackend creates a backend with its own epoll instance and
// wake eventfd.
func NewEpollBackend() (*EpollBackend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC|unix.EFD_SEMAPHORE)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	b := &EpollBackend{
		epfd:   epfd,
		wakeFD: wakeFD,
		wantR:  make(map[int]bool),
		wantW:  make(map[int]bool),
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFD)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFD, &ev); err != nil {
		unix.Close(wakeFD)
		unix.Close(epfd)
		return nil, err
	}
	return b, nil
}

func (b *EpollBackend) Socket() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	return fd, nil
}

func (b *EpollBackend) Connect(fd int, addr string, port uint16) (bool, error) {
	sa, err := resolveSockaddr(addr, port)
	if err != nil {
		return false, unix.EINVAL
	}
	err = unix.Connect(fd, sa)
	if err == nil {
		return false, nil
	}
	if err == unix.EINPROGRESS {
		return true, err
	}
	return false, err
}

func (b *EpollBackend) ResolveCandidates(host string) ([]string, error) {
	return resolveCandidates(host)
}

func (b *EpollBackend) SocketError(fd int) (int, error) {
	return unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
}

func (b *EpollBackend) Read(fd int, p []byte) (int, error) {
	return unix.Read(fd, p)
}

func (b *EpollBackend) Write(fd int, p []byte) (int, error) {
	return unix.Write(fd, p)
}

func (b *EpollBackend) Close(fd int) error {
	delete(b.wantR, fd)
	delete(b.wantW, fd)
	return unix.Close(fd)
}

// Subscribe atomically recomputes EPOLLIN|EPOLLOUT|EPOLLET from the
// requested (wantRead, wantWrite) pair and re-arms fd, never reusing a
// stale flags value from a prior call: calling Subscribe always re-arms
// interest regardless of what was subscribed before.
func (b *EpollBackend) Subscribe(fd int, userData uintptr, wantRead, wantWrite bool) error {
	var events uint32 = unix.EPOLLET
	if wantRead {
		events |= unix.EPOLLIN
	}
	if wantWrite {
		events |= unix.EPOLLOUT
	}
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	packUserData(&ev, userData)

	_, seen := b.wantR[fd]
	op := unix.EPOLL_CTL_MOD
	if !seen {
		op = unix.EPOLL_CTL_ADD
	}
	if err := unix.EpollCtl(b.epfd, op, fd, &ev); err != nil {
		return err
	}
	b.wantR[fd] = wantRead
	b.wantW[fd] = wantWrite
	return nil
}

func (b *EpollBackend) Clear(fd int) error {
	delete(b.wantR, fd)
	delete(b.wantW, fd)
	_ = unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	return nil
}

// Signal posts exactly one wake event by writing to the eventfd.
func (b *EpollBackend) Signal() error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(b.wakeFD, buf[:])
	if err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

func (b *EpollBackend) Poll(dst []api.Event) (int, error) {
	raw := make([]unix.EpollEvent, len(dst))
	n, err := unix.EpollWait(b.epfd, raw, pollTimeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	count := 0
	for i := 0; i < n; i++ {
		re := raw[i]
		if int(re.Fd) == b.wakeFD {
			var buf [8]byte
			_, _ = unix.Read(b.wakeFD, buf[:])
			dst[count] = api.Event{IsSignal: true}
			count++
			continue
		}
		dst[count] = api.Event{
			UserData: unpackUserData(&re),
			Readable: re.Events&unix.EPOLLIN != 0,
			Writable: re.Events&unix.EPOLLOUT != 0,
			Err:      re.Events&unix.EPOLLERR != 0,
			Closed:   re.Events&unix.EPOLLHUP != 0,
		}
		count++
	}
	return count, nil
}

func (b *EpollBackend) Shutdown() error {
	_ = unix.Close(b.wakeFD)
	return unix.Close(b.epfd)
}
