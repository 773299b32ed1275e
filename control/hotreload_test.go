package control

import "testing"

func TestTriggerHotReloadSyncRunsHooksBeforeReturning(t *testing.T) {
	prev := reloadHooks
	reloadHooks = nil
	defer func() { reloadHooks = prev }()

	n := 0
	RegisterReloadHook(func() { n++ })
	RegisterReloadHook(func() { n++ })

	TriggerHotReloadSync()

	if n != 2 {
		t.Fatalf("expected both hooks to have run synchronously, got n=%d", n)
	}
}
