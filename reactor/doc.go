// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor drives a fixed-capacity table of fsm.Connection values
// through one api.Backend's poll loop: routing readiness events by
// cookie, ticking heartbeats, and coordinating signal-triggered
// shutdown. It owns no socket or protocol logic itself -
// the OS-specific multiplexing lives in package backend, the
// per-connection state machine in package fsm.
package reactor
