// control/hotreload.go
// Global hot-reload hooks fired by TriggerHotReload/TriggerHotReloadSync
// (cmd/manet-client calls the latter after every successful LoadFile;
// ConfigStore.SetConfig itself only notifies its own OnReload
// listeners). Reactor.applyConfig (heartbeat_ticks) and cmd/manet-client's
// applyLogFile/metrics reload-count hooks are all registered here, so
// a SIGHUP config reload reaches every one of them without the
// reactor and the CLI needing a direct reference to each other.

package control

var reloadHooks []func()

// RegisterReloadHook adds a new component reload listener.
func RegisterReloadHook(fn func()) {
	reloadHooks = append(reloadHooks, fn)
}

// TriggerHotReload dispatches all reload hooks asynchronously.
func TriggerHotReload() {
	for _, fn := range reloadHooks {
		go fn()
	}
}

// TriggerHotReloadSync invokes all reload hooks synchronously (for test determinism).
func TriggerHotReloadSync() {
	for _, fn := range reloadHooks {
		fn()
	}
}
