// Package inputchannel implements InputChannel: a per-publisher FIFO of
// recent frames with an explicit inter-stream synchronization discipline.
//
// Each channel holds its own reader-writer lock and never makes a pusher
// wait for a consumer: once its bounded queue saturates, every queued
// entry is discarded before the new frame is appended.
package inputchannel

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/visiona/mcu/internal/pool"
	"github.com/visiona/mcu/internal/yuvframe"
)

const defaultPoolCapacity = 5

// QueuedFrame is one entry in a channel's queue: a pool-owned buffer plus
// the metadata carried alongside it from the publisher.
type QueuedFrame struct {
	Buffer      *pool.Buffer
	DisplayTs   uint32
	SyncEnabled bool
	SyncTs      int64
}

// Channel is a single publisher's InputChannel.
type Channel struct {
	id  uuid.UUID
	log *slog.Logger

	mu sync.RWMutex

	active bool

	// syncDisabledSticky and frameSyncEnabled together implement a
	// two-flag latch: overflow sets the sticky flag permanently, while
	// frameSyncEnabled tracks only the most recently pushed frame's own
	// flag. IsSyncEnabled reports the AND of the two, exposed to callers
	// as a single observable
	// "syncEnabled" state.
	syncDisabledSticky bool
	frameSyncEnabled   bool

	queue []*QueuedFrame
	qMax  int

	pool *pool.Pool
}

// New creates an InputChannel with the given queue depth bound (qMax)
// and its own bounded buffer pool.
func New(qMax int, log *slog.Logger) *Channel {
	if log == nil {
		log = slog.Default()
	}
	id := uuid.New()
	return &Channel{
		id:               id,
		log:              log.With("input_channel", id.String()),
		qMax:             qMax,
		frameSyncEnabled: false,
		pool:             pool.New("input-channel-"+id.String(), defaultPoolCapacity, log),
	}
}

// SetActive toggles activity. Transitioning to inactive clears the queue.
func (c *Channel) SetActive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active = active
	if !active {
		c.clearQueueLocked()
	}
}

// clearQueueLocked discards every queued entry, releasing each buffer's
// queue-held reference back toward the pool. Must be called with mu held.
func (c *Channel) clearQueueLocked() {
	for _, f := range c.queue {
		f.Buffer.Release()
	}
	c.queue = nil
}

// IsActive reports the current activity flag.
func (c *Channel) IsActive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Push copies src into a buffer from the channel's own pool and applies
// the qMax overflow and sync-latch queue policy. It returns false
// (InputRejected or PoolExhausted) if the frame was dropped.
func (c *Channel) Push(src *yuvframe.Frame, displayTs uint32, syncEnabled bool, syncTs int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		c.log.Warn("push rejected: channel inactive")
		return false
	}

	buf, ok := c.pool.Acquire(src.W, src.H)
	if !ok {
		c.log.Warn("push dropped: buffer pool exhausted")
		return false
	}
	copyFrame(buf.Frame(), src)

	if len(c.queue) == c.qMax {
		c.log.Warn("input queue full, disabling sync", "qmax", c.qMax)
		c.clearQueueLocked()
		c.syncDisabledSticky = true
	}

	c.frameSyncEnabled = syncEnabled
	if c.syncDisabledSticky || !c.frameSyncEnabled {
		c.clearQueueLocked()
	}

	c.queue = append(c.queue, &QueuedFrame{
		Buffer:      buf,
		DisplayTs:   displayTs,
		SyncEnabled: syncEnabled,
		SyncTs:      syncTs,
	})
	return true
}

func copyFrame(dst, src *yuvframe.Frame) {
	copyPlane(dst.PlaneY, dst.StrideY, src.PlaneY, src.StrideY, src.W, src.H)
	copyPlane(dst.PlaneU, dst.StrideU, src.PlaneU, src.StrideU, src.W/2, src.H/2)
	copyPlane(dst.PlaneV, dst.StrideV, src.PlaneV, src.StrideV, src.W/2, src.H/2)
}

func copyPlane(dst []byte, dstStride int, src []byte, srcStride, w, h int) {
	for row := 0; row < h; row++ {
		copy(dst[row*dstStride:row*dstStride+w], src[row*srcStride:row*srcStride+w])
	}
}

// Front peeks at the oldest queued frame without removing it.
func (c *Channel) Front() *QueuedFrame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.queue) == 0 {
		return nil
	}
	return c.queue[0]
}

// Back peeks at the newest queued frame without removing it.
func (c *Channel) Back() *QueuedFrame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.queue) == 0 {
		return nil
	}
	return c.queue[len(c.queue)-1]
}

// PopFreshest drains one step of backlog and returns the front of the
// queue: if the queue holds two or more entries, the oldest is removed
// and released first, and the new front is returned. The returned entry
// stays queued, so when only one entry remains it is kept as a spare
// and returned again on the next call. Returns nil if the queue is
// empty.
//
// The returned QueuedFrame's Buffer carries a lent reference the caller
// must Release after reading its pixels.
//
// Despite the name, this returns the oldest entry remaining after the
// drain, not the newest — see DESIGN.md's Open Question (a).
func (c *Channel) PopFreshest() *QueuedFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil
	}
	if len(c.queue) > 1 {
		c.queue[0].Buffer.Release()
		c.queue = c.queue[1:]
	}
	// Still referenced by the queue; lend a second reference so the
	// caller's eventual Release doesn't free the buffer out from under
	// the queue.
	f := c.queue[0]
	f.Buffer.Retain()
	return f
}

// GetSync advances the front of the queue while front.SyncTs < targetTs
// and more than one entry remains, then returns the (possibly advanced)
// front. targetTs == -1 returns the front without advancing. Entries
// skipped past are released immediately; the frame ultimately returned
// remains referenced by the queue, so it is lent to the caller via an
// extra reference the caller must Release after use.
func (c *Channel) GetSync(targetTs int64) *QueuedFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil
	}
	if targetTs != -1 {
		for len(c.queue) > 1 && c.queue[0].SyncTs < targetTs {
			c.queue[0].Buffer.Release()
			c.queue = c.queue[1:]
		}
	}
	f := c.queue[0]
	f.Buffer.Retain()
	return f
}

// IsSyncEnabled reports whether the channel is currently eligible for
// sync-aligned delivery: no overflow has ever occurred on this channel
// (deactivation does not reset the overflow latch), and the most
// recently pushed frame itself requested sync.
func (c *Channel) IsSyncEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.syncDisabledSticky && c.frameSyncEnabled
}

// ID returns the channel's stable identifier, used only for log fields.
func (c *Channel) ID() uuid.UUID { return c.id }
