//go:build windows
// +build windows

// control/platform_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows host probes, matching platform_linux.go's contract: the
// reactor's single-goroutine poll loop makes GOMAXPROCS' headroom for
// the other goroutines (readStdin, the signal handler) more relevant
// than raw core count.

package control

import (
	"runtime"
)

// RegisterPlatformProbes registers Windows host probes into dp.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.gomaxprocs", func() any {
		return runtime.GOMAXPROCS(0)
	})
}
