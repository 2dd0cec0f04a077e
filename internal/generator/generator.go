// Package generator implements FrameGenerator: a periodic ticker that
// paints one composite frame per tick and fans it out to subscribers at
// sub-harmonic frame rates of its own tick rate.
//
// Registered outputs are scheduled into dyadic fps buckets so a single
// tick rate can serve every supported fan-out rate without per-output
// timers, and layout updates are applied through a dirty-flag swap so a
// pending change never blocks an in-flight render.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/visiona/mcu/internal/layout"
	"github.com/visiona/mcu/internal/pool"
	"github.com/visiona/mcu/internal/textoverlay"
	"github.com/visiona/mcu/internal/yuvframe"
)

// generatorPoolCapacity is the per-generator buffer pool size, larger
// than an input channel's because a composite buffer must stay alive
// across every due output bucket's delivery, not just one queue slot.
const generatorPoolCapacity = 30

// Clock abstracts wall time so tests can drive deterministic timestamps
// instead of depending on the real system clock.
type Clock interface {
	NowMillis() int64
}

// systemClock is the default Clock, backed by time.Now.
type systemClock struct{}

func (systemClock) NowMillis() int64 { return time.Now().UnixMilli() }

// Frame is a delivered composite frame: a shared handle over a pooled
// buffer plus the timestamps stamped at generation time.
type Frame struct {
	buf *pool.Buffer

	W, H int

	// Timestamp90kHz is the 90 kHz media clock timestamp (currentMs*90).
	Timestamp90kHz uint32
	// TimestampNTPMillis is the wall-clock timestamp of generation,
	// carried alongside Timestamp90kHz so a downstream sender can stamp
	// both a media and an NTP time on the same outgoing frame.
	TimestampNTPMillis int64
}

// Image returns the underlying planar buffer. Consumers must not retain
// the pointer past Release.
func (f *Frame) Image() *yuvframe.Frame { return f.buf.Frame() }

// Release returns the frame's reference to its generator's pool.
func (f *Frame) Release() { f.buf.Release() }

// Dst is a registered output subscriber. Deliver is called synchronously
// from the generator's timer goroutine and must not block.
type Dst interface {
	Deliver(f *Frame)
}

type output struct {
	id  uuid.UUID
	dst Dst
}

// Generator is a FrameGenerator tuned to one fps band.
type Generator struct {
	size    VideoSize
	bgColor YUVColor
	crop    bool
	maxFps  int
	minFps  int
	ratio   int // maxFps/minFps, forced to 1 on misconfiguration

	clock Clock
	log   *slog.Logger

	applier     *layout.Applier
	pool        *pool.Pool
	overlay     textoverlay.Overlay
	frameSource layout.FrameSource

	// config lock: pending-layout swap, independent from the output lock
	// so updateLayoutSolution never blocks addOutput/removeOutput.
	configMu      sync.Mutex
	pendingLayout layout.Solution
	dirty         bool
	liveLayout    layout.Solution

	// output lock: bucket list mutation, deliberately independent from
	// configMu so a layout swap never blocks output registration.
	outputMu sync.Mutex
	buckets  [][]output

	tick int

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	startMu sync.Mutex
}

// VideoSize is a canvas size in pixels.
type VideoSize struct{ W, H int }

// YUVColor is a background fill color.
type YUVColor struct{ Y, Cb, Cr byte }

// New constructs a Generator. If maxFps is not a dyadic multiple of
// minFps, both collapse to minFps and a warning is logged rather than
// returning an error.
func New(size VideoSize, bg YUVColor, crop bool, maxFps, minFps int, src layout.FrameSource, overlay textoverlay.Overlay, clock Clock, log *slog.Logger) (*Generator, error) {
	if size.W <= 0 || size.H <= 0 || size.W&1 != 0 || size.H&1 != 0 {
		return nil, fmt.Errorf("generator: invalid canvas size %dx%d", size.W, size.H)
	}
	if minFps <= 0 || maxFps <= 0 {
		return nil, fmt.Errorf("generator: fps must be positive (maxFps=%d minFps=%d)", maxFps, minFps)
	}
	if log == nil {
		log = slog.Default()
	}
	if clock == nil {
		clock = systemClock{}
	}
	if overlay == nil {
		overlay = textoverlay.Noop()
	}

	ratio := maxFps / minFps
	if minFps*ratio != maxFps || !isPowerOfTwo(ratio) {
		log.Warn("generator: maxFps/minFps not a dyadic ratio, collapsing to minFps=maxFps", "maxFps", maxFps, "minFps", minFps)
		maxFps = minFps
		ratio = 1
	}

	g := &Generator{
		size:        size,
		bgColor:     bg,
		crop:        crop,
		maxFps:      maxFps,
		minFps:      minFps,
		ratio:       ratio,
		clock:       clock,
		log:         log,
		applier:     layout.New(crop, log),
		pool:        pool.New("generator", generatorPoolCapacity, log),
		overlay:     overlay,
		buckets:     make([][]output, ratio),
		frameSource: src,
	}
	return g, nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// IsSupported reports whether (w,h,fps) matches this generator's
// configured canvas size and dyadic fps chain.
func (g *Generator) IsSupported(w, h, fps int) bool {
	if w != g.size.W || h != g.size.H {
		return false
	}
	return g.bucketIndex(fps) >= 0
}

// bucketIndex returns maxFps/fps-1 if fps belongs to the dyadic chain
// {minFps, 2*minFps, 4*minFps, ..., maxFps}, or -1 otherwise. The bucket
// array itself has one slot per k = 1..maxFps/minFps (slot k-1 for fps
// maxFps/k), but only the dyadic subset is ever a legal registration.
func (g *Generator) bucketIndex(fps int) int {
	if fps <= 0 || g.maxFps%fps != 0 {
		return -1
	}
	k := g.maxFps / fps
	if !isPowerOfTwo(k) || k > g.ratio {
		return -1
	}
	return k - 1
}

// AddOutput registers dst at the given fps, returning its id and true if
// (w,h,fps) is supported, or a zero id and false (OutputUnsupported)
// otherwise.
func (g *Generator) AddOutput(w, h, fps int, dst Dst) (uuid.UUID, bool) {
	idx := g.bucketIndex(fps)
	if w != g.size.W || h != g.size.H || idx < 0 {
		return uuid.UUID{}, false
	}
	id := uuid.New()
	g.outputMu.Lock()
	g.buckets[idx] = append(g.buckets[idx], output{id: id, dst: dst})
	g.outputMu.Unlock()
	g.log.Info("generator: output registered", "id", id, "fps", fps)
	return id, true
}

// RemoveOutput removes the first registration matching id, returning
// true if found. Once this returns, dst is guaranteed not to receive
// further frames.
func (g *Generator) RemoveOutput(id uuid.UUID) bool {
	g.outputMu.Lock()
	defer g.outputMu.Unlock()
	for i, bucket := range g.buckets {
		for j, o := range bucket {
			if o.id == id {
				g.buckets[i] = append(bucket[:j], bucket[j+1:]...)
				return true
			}
		}
	}
	return false
}

// UpdateLayoutSolution stashes sol under the config lock for adoption on
// the next tick; it never touches the live layout directly, so an
// in-flight tick always finishes painting a coherent solution.
func (g *Generator) UpdateLayoutSolution(sol layout.Solution) {
	g.configMu.Lock()
	g.pendingLayout = sol
	g.dirty = true
	g.configMu.Unlock()
}

// SetOverlay swaps the active text overlay hook. Passing textoverlay.Noop()
// disables it.
func (g *Generator) SetOverlay(o textoverlay.Overlay) {
	if o == nil {
		o = textoverlay.Noop()
	}
	g.outputMu.Lock()
	g.overlay = o
	g.outputMu.Unlock()
}

// Start begins the timer goroutine, ticking at maxFps until ctx is
// cancelled or Stop is called.
func (g *Generator) Start(ctx context.Context) error {
	g.startMu.Lock()
	defer g.startMu.Unlock()
	if g.started {
		return fmt.Errorf("generator: already started")
	}
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.started = true

	g.wg.Add(1)
	go g.runLoop()
	return nil
}

// Stop cancels the timer goroutine and waits for it to exit.
func (g *Generator) Stop() error {
	g.startMu.Lock()
	if !g.started {
		g.startMu.Unlock()
		return nil
	}
	g.startMu.Unlock()

	g.cancel()
	g.wg.Wait()
	return nil
}

func (g *Generator) runLoop() {
	defer g.wg.Done()

	period := time.Second / time.Duration(g.maxFps)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-g.ctx.Done():
			return
		case <-ticker.C:
			g.onTick()
		}
	}
}

// onTick runs one scheduler tick: pick due buckets, apply any pending
// layout swap, render one composite frame, and deliver it to every due
// output.
func (g *Generator) onTick() {
	due := g.dueBuckets()
	if len(due) == 0 {
		g.advanceTick()
		return
	}

	g.applyPendingLayout()

	buf, ok := g.pool.Acquire(g.size.W, g.size.H)
	if !ok {
		g.log.Warn("generator: pool exhausted, skipping tick")
		g.advanceTick()
		return
	}
	frame := buf.Frame()
	frame.Fill(g.bgColor.Y, g.bgColor.Cb, g.bgColor.Cr)

	g.configMu.Lock()
	sol := g.liveLayout
	g.configMu.Unlock()
	if g.frameSource != nil {
		g.applier.Apply(frame, sol, g.frameSource)
	}

	nowMs := g.clock.NowMillis()
	out := &Frame{
		buf:                buf,
		W:                  g.size.W,
		H:                  g.size.H,
		Timestamp90kHz:     uint32(nowMs * 90),
		TimestampNTPMillis: nowMs,
	}

	g.outputMu.Lock()
	overlay := g.overlay
	g.outputMu.Unlock()
	if err := overlay.Draw(frame); err != nil {
		g.log.Error("generator: text overlay failed", "error", err)
	}

	g.deliverToDueBuckets(due, out)
	out.Release()

	g.advanceTick()
}

func (g *Generator) dueBuckets() []int {
	g.outputMu.Lock()
	defer g.outputMu.Unlock()

	var due []int
	for i, bucket := range g.buckets {
		if len(bucket) == 0 {
			continue
		}
		if g.tick%(i+1) == 0 {
			due = append(due, i)
		}
	}
	return due
}

func (g *Generator) applyPendingLayout() {
	g.configMu.Lock()
	defer g.configMu.Unlock()
	if g.dirty {
		g.liveLayout = g.pendingLayout
		g.dirty = false
	}
}

func (g *Generator) deliverToDueBuckets(due []int, out *Frame) {
	g.outputMu.Lock()
	defer g.outputMu.Unlock()
	for _, i := range due {
		for _, o := range g.buckets[i] {
			out.buf.Retain()
			o.dst.Deliver(out)
		}
	}
}

func (g *Generator) advanceTick() {
	g.tick = (g.tick + 1) % g.ratio
}
