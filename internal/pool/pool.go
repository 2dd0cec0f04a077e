// Package pool implements PlanarFrameBufferPool: a bounded, non-blocking
// recycler of planar YUV 4:2:0 buffers shared by reference count. Each
// buffer tracks its own atomic refcount so it can be handed to several
// observers (an input channel, several output buckets) and reclaimed
// only once every observer has released it.
package pool

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/visiona/mcu/internal/yuvframe"
)

// Buffer is a shared handle over a planar YUV 4:2:0 frame. The pool
// itself holds a permanent reference (refs == 1 means "free"); every
// Acquire call and every explicit Retain adds one more.
type Buffer struct {
	frame *yuvframe.Frame
	refs  int32 // atomic; 1 == held only by the pool (free)
	pool  *Pool
}

// Frame returns the underlying planar YUV 4:2:0 image. Callers must not
// retain the returned pointer past Release.
func (b *Buffer) Frame() *yuvframe.Frame { return b.frame }

// Retain adds one reference and returns the same buffer, for callers
// that need to hand the same buffer to multiple observers (e.g. the
// generator delivering one composite frame to several output buckets).
func (b *Buffer) Retain() *Buffer {
	atomic.AddInt32(&b.refs, 1)
	return b
}

// Release drops one reference. When the count returns to 1 (the pool's
// own), the buffer becomes eligible for reuse by a future Acquire.
func (b *Buffer) Release() {
	atomic.AddInt32(&b.refs, -1)
}

func (b *Buffer) free() bool {
	return atomic.LoadInt32(&b.refs) == 1
}

// Pool is a bounded, non-blocking recycler of Buffers of a given size.
// It never blocks a caller: Acquire returns (nil, false) when saturated,
// and the caller is expected to drop the frame rather than wait.
type Pool struct {
	mu       sync.Mutex
	name     string
	capacity int
	all      []*Buffer
	log      *slog.Logger
}

// New creates a pool with the given capacity (a small fixed constant:
// 5 for input channels, 30 for a frame generator). name is used only
// for log fields.
func New(name string, capacity int, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	return &Pool{name: name, capacity: capacity, log: log}
}

// Acquire returns a writable buffer of the requested size: either a
// recycled free buffer (resized in place) or a freshly allocated one if
// capacity allows. Returns (nil, false) when the pool is saturated,
// which callers must treat as "drop this frame", never block or retry
// inline.
func (p *Pool) Acquire(w, h int) (*Buffer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, b := range p.all {
		if b.free() {
			if err := b.frame.Reset(w, h); err != nil {
				p.log.Warn("pool: failed to resize recycled buffer", "pool", p.name, "error", err)
				continue
			}
			atomic.StoreInt32(&b.refs, 2)
			return b, true
		}
	}

	if len(p.all) >= p.capacity {
		p.log.Warn("pool exhausted", "pool", p.name, "capacity", p.capacity)
		return nil, false
	}

	f, err := yuvframe.New(w, h)
	if err != nil {
		p.log.Warn("pool: allocation failed", "pool", p.name, "error", err)
		return nil, false
	}
	b := &Buffer{frame: f, refs: 2, pool: p}
	p.all = append(p.all, b)
	return b, true
}

// Len reports the number of buffers the pool has allocated so far
// (used, free, or otherwise) — for tests and diagnostics only.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.all)
}
