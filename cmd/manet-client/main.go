// File: cmd/manet-client/main.go
// Author: momentics <momentics@gmail.com>
//
// Command-line WebSocket client driving the single-threaded reactor.
// Grounded on examples/reactor_echo/main.go's plain-fmt
// status reporting and accept/register loop shape, generalized from a
// listening echo server onto a single outbound connection with a
// stdin-fed outbound queue.
package main

import (
	"bufio"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/momentics/manet-ws/api"
	"github.com/momentics/manet-ws/backend"
	"github.com/momentics/manet-ws/control"
	"github.com/momentics/manet-ws/iobuf"
	"github.com/momentics/manet-ws/logging"
	"github.com/momentics/manet-ws/pool"
	"github.com/momentics/manet-ws/reactor"
	"github.com/momentics/manet-ws/transport"
	"github.com/momentics/manet-ws/ws"
)

// headerList collects repeated -header Name:Value flags into
// ws.Header values for the upgrade request.
type headerList []ws.Header

func (h *headerList) String() string {
	parts := make([]string, len(*h))
	for i, hdr := range *h {
		parts[i] = hdr.Name + ":" + hdr.Value
	}
	return strings.Join(parts, ",")
}

func (h *headerList) Set(s string) error {
	name, value, ok := strings.Cut(s, ":")
	if !ok {
		return fmt.Errorf("manet-client: -header must be Name:Value, got %q", s)
	}
	*h = append(*h, ws.Header{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	return nil
}

func main() {
	host := flag.String("host", "127.0.0.1", "server host")
	port := flag.Int("port", 9002, "server port")
	path := flag.String("path", "/", "HTTP upgrade request path")
	useTLS := flag.Bool("tls", false, "connect over TLS")
	serverName := flag.String("server-name", "", "TLS SNI / verification name, defaults to host")
	configPath := flag.String("config", "", "optional YAML config file (reloaded on SIGHUP)")
	pingTicks := flag.Int("ping-ticks", 4, "idle ping interval in reactor heartbeat ticks, 0 disables")
	capacity := flag.Int("capacity", 16, "connection table capacity")
	deflate := flag.Bool("permessage-deflate", false, "offer the permessage-deflate extension (negotiation only, no compression)")
	var headers headerList
	flag.Var(&headers, "header", "extra upgrade request header Name:Value (repeatable)")
	flag.Parse()

	metrics := control.NewMetricsRegistry()
	var reloadCount uint64
	control.RegisterReloadHook(func() {
		metrics.Set(control.MetricConfigReloads, atomic.AddUint64(&reloadCount, 1))
	})

	cfg := control.NewConfigStore()
	var curLogFile string
	control.RegisterReloadHook(func() { applyLogFile(cfg, &curLogFile) })
	if *configPath != "" {
		if err := cfg.LoadFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "manet-client: config load: %v\n", err)
			os.Exit(1)
		}
		control.TriggerHotReloadSync()
	}

	be, err := backend.NewEpollBackend()
	if err != nil {
		fmt.Fprintf(os.Stderr, "manet-client: backend: %v\n", err)
		os.Exit(1)
	}
	defer be.Shutdown()

	wp := pool.NewWindowPool(iobuf.DefaultWindowCap)
	r := reactor.New(be, *capacity, wp, cfg, metrics)
	control.RegisterPlatformProbes(r.Debug())

	var sessionRef atomic.Pointer[ws.Session]
	sf := ws.NewSessionFactory(*path, headers, *pingTicks, *deflate, func(opcode byte, payload []byte) {
		fmt.Printf("[manet-client] received %d bytes (opcode %d): %q\n", len(payload), opcode, payload)
	}, func(s *ws.Session) {
		sessionRef.Store(s)
	})

	sn := *serverName
	if sn == "" {
		sn = *host
	}
	var endpointFactory api.EndpointFactory
	if *useTLS {
		endpointFactory = transport.NewTLSEndpoint(sn, &tls.Config{})
	} else {
		endpointFactory = transport.NewPlainEndpoint(be)
	}

	fmt.Printf("[manet-client] connecting to %s:%d%s (tls=%v)\n", *host, *port, *path, *useTLS)
	if _, err := r.Spawn(*host, uint16(*port), endpointFactory, sf); err != nil {
		fmt.Fprintf(os.Stderr, "manet-client: spawn: %v\n", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGHUP:
				if *configPath != "" {
					if err := cfg.LoadFile(*configPath); err != nil {
						fmt.Fprintf(os.Stderr, "manet-client: config reload: %v\n", err)
					} else {
						control.TriggerHotReloadSync()
						fmt.Println("[manet-client] config reloaded")
					}
				}
			case syscall.SIGUSR1:
				dumpDebugState(r.Debug())
			default:
				fmt.Println("[manet-client] shutting down")
				_ = r.Signal()
				return
			}
		}
	}()

	go readStdin(&sessionRef)

	// The reactor owns the only goroutine whose exit actually ends the
	// program; errgroup gives main a single place to collect its error
	// alongside whatever future supervised goroutine joins it.
	var g errgroup.Group
	g.Go(r.Run)
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "manet-client: reactor: %v\n", err)
		os.Exit(1)
	}
}

// applyLogFile is a control.ConfigStore reload hook: it re-reads the
// log_file config key and, when it names a path different from the
// one currently active, reopens it and redirects the default logger
// via logging.SetOutput. An empty log_file (the default) leaves the
// logger on stderr.
func applyLogFile(cfg *control.ConfigStore, cur *string) {
	snap := cfg.GetSnapshot()
	path, _ := snap["log_file"].(string)
	if path == "" || path == *cur {
		return
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "manet-client: log_file %q: %v\n", path, err)
		return
	}
	logging.SetOutput(log.New(f, "manet-ws: ", log.LstdFlags))
	*cur = path
}

// dumpDebugState prints every registered debug probe's current value,
// triggered by SIGUSR1 for live introspection without a debug endpoint.
func dumpDebugState(dp *control.DebugProbes) {
	for name, val := range dp.DumpState() {
		fmt.Printf("[manet-client] debug %s = %v\n", name, val)
	}
}

// readStdin feeds each line typed on stdin to the active session as a
// text message, queued via its OutboundQueue until the reactor next has
// a chance to write.
func readStdin(sessionRef *atomic.Pointer[ws.Session]) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if s := sessionRef.Load(); s != nil {
			s.Enqueue(ws.OpcodeText, []byte(line))
		}
	}
}
