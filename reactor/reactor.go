// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Reactor: a fixed-capacity table of connections, one
// api.Backend poll loop, event routing by cookie, a periodic heartbeat
// tick, and signal-triggered graceful shutdown. Grounded on the
// buffer-pool library's core/concurrency/eventloop.go batched run loop
// shape (RegisterHandler/Run/Stop), generalized from a channel of
// queued tasks onto Backend.Poll's edge-triggered readiness batch, and
// on original_source's reactor.hpp ("stop_all, all_done -> Net::stop").
package reactor

import (
	"github.com/momentics/manet-ws/api"
	"github.com/momentics/manet-ws/control"
	"github.com/momentics/manet-ws/dial"
	"github.com/momentics/manet-ws/fsm"
	"github.com/momentics/manet-ws/logging"
	"github.com/momentics/manet-ws/pool"
)

// defaultHeartbeatEvery is the number of poll cycles between heartbeat
// ticks used until a config reload supplies heartbeat_ticks.
const defaultHeartbeatEvery = 64

// eventBatchSize bounds a single Backend.Poll call.
const eventBatchSize = 256

// Reactor owns a fixed-capacity connection table and drives it from one
// backend's readiness events. It is not safe for concurrent use: like
// the connections it drives, it is meant to run on a single goroutine.
type Reactor struct {
	backend api.Backend
	dialer  *dial.Dialer
	wp      *pool.WindowPool

	config  *control.ConfigStore
	metrics *control.MetricsRegistry
	debug   *control.DebugProbes

	conns []*fsm.Connection
	free  []int

	tick           uint64
	stopping       bool
	restarts       uint64
	errorsTotal    uint64
	heartbeatEvery uint64
}

// New constructs a Reactor with room for capacity concurrent
// connections, backed by backend. If cfg is non-nil, New registers a
// control hot-reload hook that re-reads the heartbeat_ticks config key
// from cfg on every future control.TriggerHotReload/TriggerHotReloadSync
// call (cfg.SetConfig and LoadFile alone do not fire it), and also
// applies whatever value cfg already holds.
func New(backend api.Backend, capacity int, wp *pool.WindowPool, cfg *control.ConfigStore, metrics *control.MetricsRegistry) *Reactor {
	free := make([]int, capacity)
	for i := range free {
		free[capacity-1-i] = i
	}
	r := &Reactor{
		backend:        backend,
		dialer:         dial.New(backend),
		wp:             wp,
		config:         cfg,
		metrics:        metrics,
		debug:          control.NewDebugProbes(),
		conns:          make([]*fsm.Connection, capacity),
		free:           free,
		heartbeatEvery: defaultHeartbeatEvery,
	}
	r.debug.RegisterProbe("reactor.connection_states", func() any {
		return r.stateHistogram()
	})
	if cfg != nil {
		control.RegisterReloadHook(r.applyConfig)
		r.applyConfig()
	}
	return r
}

// applyConfig re-reads the heartbeat_ticks key from the config store's
// current snapshot, called once at construction and again on every
// hot reload triggered by control.TriggerHotReload(Sync).
func (r *Reactor) applyConfig() {
	if r.config == nil {
		return
	}
	snap := r.config.GetSnapshot()
	v, ok := snap["heartbeat_ticks"]
	if !ok {
		return
	}
	ticks, ok := v.(int)
	if !ok || ticks <= 0 {
		return
	}
	r.heartbeatEvery = uint64(ticks)
}

// stateHistogram counts live connections by FSM state, for the
// "reactor.connection_states" debug probe.
func (r *Reactor) stateHistogram() map[string]int {
	out := make(map[string]int)
	for _, c := range r.conns {
		if c != nil {
			out[c.State().String()]++
		}
	}
	return out
}

// Debug exposes the reactor's probe registry, pre-registered with
// "reactor.connection_states" by New; callers typically add host
// probes on top via control.RegisterPlatformProbes.
func (r *Reactor) Debug() *control.DebugProbes { return r.debug }

// Spawn allocates a slot in the connection table, builds a new
// fsm.Connection for host:port and dials it immediately. It returns
// api.ErrBufferFull if the table is at capacity.
func (r *Reactor) Spawn(host string, port uint16, tf api.EndpointFactory, sf api.SessionFactory) (*fsm.Connection, error) {
	if len(r.free) == 0 {
		return nil, api.ErrBufferFull
	}
	idx := r.free[len(r.free)-1]
	r.free = r.free[:len(r.free)-1]

	conn := fsm.New(host, port, r.backend, r.wp, tf, sf)
	r.conns[idx] = conn
	conn.Attach(uintptr(idx), r.dialer)
	return conn, nil
}

// Signal wakes the poll loop, e.g. from a goroutine installed by
// os/signal. It is the only Reactor method safe to call from another
// goroutine.
func (r *Reactor) Signal() error { return r.backend.Signal() }

// Run drives the poll loop until a signal initiates shutdown and every
// connection reaches a terminal state. Run itself never reads the
// config store; a heartbeat_ticks change arrives through applyConfig.
func (r *Reactor) Run() error {
	events := make([]api.Event, eventBatchSize)
	for {
		n, err := r.backend.Poll(events)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			r.dispatch(events[i])
		}
		r.tick++
		if r.tick%r.heartbeatEvery == 0 {
			r.heartbeatAll()
		}
		r.reapDone()
		if r.stopping && r.allDone() {
			return nil
		}
	}
}

func (r *Reactor) dispatch(ev api.Event) {
	if ev.IsSignal {
		r.stopping = true
		r.stopAll()
		return
	}
	idx := int(ev.UserData)
	if idx < 0 || idx >= len(r.conns) || r.conns[idx] == nil {
		return
	}
	c := r.conns[idx]
	if !c.Done() {
		c.HandleEvent(ev)
	}
	if !r.stopping && c.Closed() {
		if err := c.Restart(r.dialer); err == nil {
			r.restarts++
		}
		if r.metrics != nil {
			r.metrics.Set(control.MetricRestartsTotal, r.restarts)
		}
	}
}

func (r *Reactor) heartbeatAll() {
	for _, c := range r.conns {
		if c != nil {
			c.Heartbeat()
		}
	}
	if r.metrics != nil {
		r.metrics.Set(control.MetricLiveConnections, uint64(r.liveCount()))
		r.metrics.Set(control.MetricTick, r.tick)
	}
}

func (r *Reactor) stopAll() {
	for _, c := range r.conns {
		if c != nil {
			c.Stop()
		}
	}
}

func (r *Reactor) allDone() bool {
	for _, c := range r.conns {
		if c != nil && !c.Done() {
			return false
		}
	}
	return true
}

// reapDone frees slots for connections that reached Error. Closed
// connections are never seen here: dispatch already restarted them (or,
// if the Reactor is stopping, they sit Closed until allDone observes
// them) so only a hard Error ever needs its slot freed.
func (r *Reactor) reapDone() {
	for idx, c := range r.conns {
		if c == nil || !c.Done() {
			continue
		}
		if c.Closed() {
			continue
		}
		r.conns[idx] = nil
		r.free = append(r.free, idx)
		r.errorsTotal++
		if r.metrics != nil {
			r.metrics.Set(control.MetricErrorsTotal, r.errorsTotal)
		}
		logging.Default().Printf("reactor: connection %d reached error state, slot freed", idx)
	}
}

func (r *Reactor) liveCount() int {
	n := 0
	for _, c := range r.conns {
		if c != nil && !c.Done() {
			n++
		}
	}
	return n
}

func (r *Reactor) errorsSoFar() int {
	n := 0
	for _, c := range r.conns {
		if c != nil && c.State() == fsm.Error {
			n++
		}
	}
	return n
}
