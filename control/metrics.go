// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime counters this reactor actually emits: live connection count,
// poll tick, cumulative errors/restarts, and config reload count. The
// registry is keyed by name rather than a struct field per counter so
// Reactor and the CLI's reload hook can both Set without a shared
// import cycle, but the value type is narrowed to uint64 (every one of
// these is a monotonic count or a small gauge) instead of the
// teacher's any-typed map.

package control

import "sync"

// Fixed metric keys this build emits. Any other key is still accepted
// by Set/GetSnapshot; these constants exist so callers don't
// hand-type the string at each call site.
const (
	MetricLiveConnections = "reactor.live_connections"
	MetricTick            = "reactor.tick"
	MetricErrorsTotal     = "reactor.errors_total"
	MetricRestartsTotal   = "reactor.restarts_total"
	MetricConfigReloads   = "config.reload_count"
)

// MetricsRegistry holds a thread-safe set of named uint64 counters/gauges.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]uint64
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]uint64),
	}
}

// Set records the current value of a counter or gauge.
func (mr *MetricsRegistry) Set(key string, value uint64) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.mu.Unlock()
}

// GetSnapshot returns a copy of every recorded metric.
func (mr *MetricsRegistry) GetSnapshot() map[string]uint64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]uint64, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}
