// File: logging/logging.go
// Author: momentics <momentics@gmail.com>
//
// Thin wrapper around log.Logger. No third-party logging dependency
// is used here; see DESIGN.md's logging entry for why the standard
// library covers this concern.
package logging

import (
	"log"
	"os"
	"sync"
)

var (
	mu      sync.Mutex
	current = log.New(os.Stderr, "manet-ws: ", log.LstdFlags)
)

// Default returns the process-wide logger.
func Default() *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	return current
}

// SetOutput redirects the default logger. cmd/manet-client calls this
// from a control.ConfigStore reload hook to honor the config file's
// log_file key without restarting the reactor.
func SetOutput(l *log.Logger) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}
