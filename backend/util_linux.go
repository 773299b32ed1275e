//go:build linux
// +build linux

// File: backend/util_linux.go
// Author: momentics <momentics@gmail.com>
//
// Address resolution and epoll_event.data packing helpers shared by the
// Linux backend.
package backend

import (
	"net"

	"golang.org/x/sys/unix"
)

// resolveSockaddr builds a connect(2) sockaddr for a single, already
// resolved IPv4 literal (as returned by resolveCandidates) and port.
func resolveSockaddr(addr string, port uint16) (unix.Sockaddr, error) {
	ip := net.ParseIP(addr)
	v4 := ip.To4()
	if v4 == nil {
		return nil, unix.EINVAL
	}
	sa := &unix.SockaddrInet4{Port: int(port)}
	copy(sa.Addr[:], v4)
	return sa, nil
}

// resolveCandidates resolves host to every IPv4 address it has, in the
// order net.LookupIP returned them.
func resolveCandidates(host string) ([]string, error) {
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, err
	}
	candidates := make([]string, 0, len(ips))
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			candidates = append(candidates, v4.String())
		}
	}
	if len(candidates) == 0 {
		return nil, unix.EINVAL
	}
	return candidates, nil
}

// packUserData stores a small opaque handle (a connection index, never
// a raw pointer) in the unused Pad field of the epoll_event data union.
func packUserData(ev *unix.EpollEvent, userData uintptr) {
	ev.Pad = int32(userData)
}

func unpackUserData(ev *unix.EpollEvent) uintptr {
	return uintptr(ev.Pad)
}
