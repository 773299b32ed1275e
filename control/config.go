// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe configuration store with dynamic update and hot-reload
// propagation. File format is YAML (gopkg.in/yaml.v2), matching the
// buffer-pool library's config surface.

package control

import (
	"os"
	"sync"

	"gopkg.in/yaml.v2"
)

// FileConfig is the on-disk shape LoadFile decodes into before it is
// merged into the store as a map.
type FileConfig struct {
	Host           string            `yaml:"host"`
	Port           uint16            `yaml:"port"`
	TLS            bool              `yaml:"tls"`
	ServerName     string            `yaml:"server_name"`
	ConnPoolSize   int               `yaml:"conn_pool_size"`
	WindowBytes    int               `yaml:"window_bytes"`
	PingInterval   int               `yaml:"ping_interval_ticks"`
	HeartbeatTicks int               `yaml:"heartbeat_ticks"`
	LogFile        string            `yaml:"log_file"`
	Extra          map[string]string `yaml:"extra"`
}

// ConfigStore is a dynamic key/value map with atomic snapshot and listener support.
type ConfigStore struct {
	mu        sync.RWMutex
	config    map[string]any
	listeners []func()
}

// NewConfigStore initializes a new config store with empty data.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		config:    make(map[string]any),
		listeners: make([]func(), 0),
	}
}

// GetSnapshot returns a copy of all config values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	copy := make(map[string]any, len(cs.config))
	for k, v := range cs.config {
		copy[k] = v
	}
	return copy
}

// SetConfig merges new values and dispatches reload if needed.
func (cs *ConfigStore) SetConfig(newCfg map[string]any) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for k, v := range newCfg {
		cs.config[k] = v
	}
	cs.dispatchReload()
}

// OnReload registers a listener hook called on config changes.
func (cs *ConfigStore) OnReload(fn func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

// dispatchReload invokes all listeners.
func (cs *ConfigStore) dispatchReload() {
	for _, fn := range cs.listeners {
		go fn()
	}
}

// LoadFile decodes a YAML file at path into a FileConfig and merges its
// fields into the store under fixed keys, then dispatches reload. It is
// used both for the initial load and for a SIGHUP-triggered re-read.
func (cs *ConfigStore) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}
	cs.SetConfig(map[string]any{
		"host":                fc.Host,
		"port":                fc.Port,
		"tls":                 fc.TLS,
		"server_name":         fc.ServerName,
		"conn_pool_size":      fc.ConnPoolSize,
		"window_bytes":        fc.WindowBytes,
		"ping_interval_ticks": fc.PingInterval,
		"heartbeat_ticks":     fc.HeartbeatTicks,
		"log_file":            fc.LogFile,
		"extra":               fc.Extra,
	})
	return nil
}
