//go:build !linux
// +build !linux

// File: backend/backend_other.go
// Author: momentics <momentics@gmail.com>
//
// Stub backend for platforms without an edge-triggered epoll
// implementation wired up. Grounded on reactor/reactor_stub.go's
// unsupported-platform pattern; kqueue (BSD/darwin) is not implemented
// here since the retrieved pack carries no BSD-specific dependency to
// ground it on (the contract in api.Backend is the same either way).
package backend

import (
	"errors"

	"github.com/momentics/manet-ws/api"
)

// ErrUnsupportedPlatform is returned by NewEpollBackend on non-Linux
// builds.
var ErrUnsupportedPlatform = errors.New("backend: this platform has no wired event backend")

// EpollBackend is a stand-in type so callers can reference
// backend.EpollBackend uniformly across build targets; every method
// returns ErrUnsupportedPlatform.
type EpollBackend struct{}

func NewEpollBackend() (*EpollBackend, error) { return nil, ErrUnsupportedPlatform }

func (b *EpollBackend) Socket() (int, error)                      { return -1, ErrUnsupportedPlatform }
func (b *EpollBackend) Connect(int, string, uint16) (bool, error) { return false, ErrUnsupportedPlatform }
func (b *EpollBackend) ResolveCandidates(string) ([]string, error) {
	return nil, ErrUnsupportedPlatform
}
func (b *EpollBackend) SocketError(int) (int, error)             { return 0, ErrUnsupportedPlatform }
func (b *EpollBackend) Read(int, []byte) (int, error)            { return 0, ErrUnsupportedPlatform }
func (b *EpollBackend) Write(int, []byte) (int, error)           { return 0, ErrUnsupportedPlatform }
func (b *EpollBackend) Close(int) error                          { return ErrUnsupportedPlatform }
func (b *EpollBackend) Subscribe(int, uintptr, bool, bool) error { return ErrUnsupportedPlatform }
func (b *EpollBackend) Clear(int) error                          { return ErrUnsupportedPlatform }
func (b *EpollBackend) Signal() error                            { return ErrUnsupportedPlatform }
func (b *EpollBackend) Poll([]api.Event) (int, error)            { return 0, ErrUnsupportedPlatform }
func (b *EpollBackend) Shutdown() error                          { return ErrUnsupportedPlatform }
