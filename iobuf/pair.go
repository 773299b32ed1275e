// File: iobuf/pair.go
// Author: momentics <momentics@gmail.com>
//
// Fixed-capacity, ring-free RX/TX byte windows. Grounded on
// the buffer-pool library's BufferBatch/Buffer view split
// (core/buffer/buffer_batch.go), narrowed to the two views transport and
// protocol code are allowed to touch, and drawn from a pool.WindowPool
// instead of per-frame allocations.
package iobuf

import (
	"github.com/momentics/manet-ws/api"
	"github.com/momentics/manet-ws/pool"
)

// DefaultWindowCap is the minimum RX/TX window capacity (1 MiB).
const DefaultWindowCap = 1 << 20

// Window is one fixed-capacity byte window with rpos/wpos cursors.
// Invariant: 0 <= rpos <= wpos <= cap(buf). When rpos == wpos both
// reset to 0 to maximize contiguous write space.
type Window struct {
	buf  []byte
	pool *pool.WindowPool
	rpos int
	wpos int
}

// NewWindow allocates a window from wp.
func NewWindow(wp *pool.WindowPool) *Window {
	return &Window{buf: wp.Get(), pool: wp}
}

// Rbuf returns the current readable span [rpos, wpos).
func (w *Window) Rbuf() []byte { return w.buf[w.rpos:w.wpos] }

// Wbuf returns the current writable span [wpos, cap).
func (w *Window) Wbuf() []byte { return w.buf[w.wpos:] }

// Read advances rpos by n; if the window empties, both cursors reset to
// 0.
func (w *Window) Read(n int) {
	w.rpos += n
	if w.rpos > w.wpos {
		panic("iobuf: Read advanced past wpos")
	}
	if w.rpos == w.wpos {
		w.rpos, w.wpos = 0, 0
	}
}

// Wrote advances wpos by n.
func (w *Window) Wrote(n int) {
	w.wpos += n
	if w.wpos > cap(w.buf) {
		panic("iobuf: Wrote advanced past capacity")
	}
}

// Full reports whether the window has no writable space left.
func (w *Window) Full() bool { return w.wpos == cap(w.buf) }

// Empty reports whether the window has no readable bytes.
func (w *Window) Empty() bool { return w.rpos == w.wpos }

// Reset drops all buffered bytes without releasing the window,
// used by DrainProtocol to discard RX.
func (w *Window) Reset() { w.rpos, w.wpos = 0, 0 }

// Release returns the underlying buffer to its pool. The Window must
// not be used afterwards.
func (w *Window) Release() {
	if w.pool != nil {
		w.pool.Put(w.buf)
		w.buf = nil
	}
}

// Pair combines an RX Window (exposed as api.Input) and a TX Window
// (exposed as api.Output), the only surface transport/protocol code may
// use.
type Pair struct {
	rx *Window
	tx *Window
}

// NewPair allocates an RX/TX pair from wp.
func NewPair(wp *pool.WindowPool) *Pair {
	return &Pair{rx: NewWindow(wp), tx: NewWindow(wp)}
}

func (p *Pair) RX() api.Input   { return p.rx }
func (p *Pair) TX() api.Output  { return p.tx }
func (p *Pair) RXWindow() *Window { return p.rx }
func (p *Pair) TXWindow() *Window { return p.tx }

// Release returns both windows to their pool.
func (p *Pair) Release() {
	p.rx.Release()
	p.tx.Release()
}

var (
	_ api.Input  = (*Window)(nil)
	_ api.Output = (*Window)(nil)
	_ api.IO     = (*Pair)(nil)
)
