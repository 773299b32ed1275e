//go:build linux
// +build linux

// control/platform_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux host probes. The reactor deliberately runs its poll loop on a
// single goroutine (see reactor/reactor.go), so the interesting Linux
// fact isn't NumCPU alone but whether GOMAXPROCS leaves room for other
// goroutines (readStdin, the signal handler) to actually run
// concurrently with it.

package control

import (
	"runtime"
)

// RegisterPlatformProbes registers Linux host probes into dp.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.gomaxprocs", func() any {
		return runtime.GOMAXPROCS(0)
	})
}
