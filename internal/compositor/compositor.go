// Package compositor implements the Compositor façade: a fixed-size
// vector of InputChannels, one AvatarCache, and two FrameGenerators
// tuned for disjoint fps bands.
//
// GetInputFrame and GetSyncInputFrame fall back to the avatar cache
// whenever an input is inactive, and GetSyncInputFrame further falls
// back to the plain freshest-frame fetch whenever an active input isn't
// currently sync-enabled.
package compositor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/visiona/mcu/internal/avatar"
	"github.com/visiona/mcu/internal/generator"
	"github.com/visiona/mcu/internal/inputchannel"
	"github.com/visiona/mcu/internal/layout"
	"github.com/visiona/mcu/internal/textoverlay"
	"github.com/visiona/mcu/internal/yuvframe"
)

const inputQueueDepth = 5

// Default band configuration for the two fixed FrameGenerators: a high
// band tuned for full-motion video, a low band for slower still-heavy
// outputs.
const (
	highBandMaxFps = 60
	highBandMinFps = 15
	lowBandMaxFps  = 48
	lowBandMinFps  = 6
)

// VideoSize is a canvas size in pixels.
type VideoSize = generator.VideoSize

// YUVColor is a background fill color.
type YUVColor = generator.YUVColor

// Dst is a registered output subscriber.
type Dst = generator.Dst

// Frame is a delivered composite frame.
type Frame = generator.Frame

// Config carries the construction-time parameters accepted by New. Root
// size and background color are fixed for the compositor's lifetime:
// there is no supported resolution or background-color change after
// construction.
type Config struct {
	RootSize   VideoSize
	BgColor    YUVColor
	Crop       bool
	MaxInput   int
	HighFpsMax int // defaults to 60 if zero
	HighFpsMin int // defaults to 15 if zero
	LowFpsMax  int // defaults to 48 if zero
	LowFpsMin  int // defaults to 6 if zero
}

// Compositor owns every InputChannel, the AvatarCache, and the two
// FrameGenerators. There is no global compositor lock: per-component
// locks (each InputChannel's, the AvatarCache's, each Generator's config
// and output locks) are fine-grained enough that pushInput is never
// blocked behind layout work.
type Compositor struct {
	cfg    Config
	log    *slog.Logger
	inputs []*inputchannel.Channel
	avatar *avatar.Cache
	gens   []*generator.Generator

	outputMu   sync.Mutex
	outputGens map[uuid.UUID]*generator.Generator
}

// New constructs a Compositor with maxInput InputChannels and the two
// fixed-band FrameGenerators. Returns an error if cfg is invalid.
func New(cfg Config, log *slog.Logger) (*Compositor, error) {
	if cfg.MaxInput <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxInput, cfg.MaxInput)
	}
	if cfg.RootSize.W <= 0 || cfg.RootSize.H <= 0 || cfg.RootSize.W&1 != 0 || cfg.RootSize.H&1 != 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidRootSize, cfg.RootSize.W, cfg.RootSize.H)
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.HighFpsMax == 0 {
		cfg.HighFpsMax = highBandMaxFps
	}
	if cfg.HighFpsMin == 0 {
		cfg.HighFpsMin = highBandMinFps
	}
	if cfg.LowFpsMax == 0 {
		cfg.LowFpsMax = lowBandMaxFps
	}
	if cfg.LowFpsMin == 0 {
		cfg.LowFpsMin = lowBandMinFps
	}

	c := &Compositor{
		cfg:        cfg,
		log:        log,
		avatar:     avatar.New(log),
		outputGens: make(map[uuid.UUID]*generator.Generator),
	}

	c.inputs = make([]*inputchannel.Channel, cfg.MaxInput)
	for i := range c.inputs {
		c.inputs[i] = inputchannel.New(inputQueueDepth, log)
	}

	high, err := generator.New(cfg.RootSize, cfg.BgColor, cfg.Crop, cfg.HighFpsMax, cfg.HighFpsMin, c, textoverlay.Noop(), nil, log)
	if err != nil {
		return nil, fmt.Errorf("compositor: high-band generator: %w", err)
	}
	low, err := generator.New(cfg.RootSize, cfg.BgColor, cfg.Crop, cfg.LowFpsMax, cfg.LowFpsMin, c, textoverlay.Noop(), nil, log)
	if err != nil {
		return nil, fmt.Errorf("compositor: low-band generator: %w", err)
	}
	c.gens = []*generator.Generator{high, low}

	return c, nil
}

// Start begins both FrameGenerators' timer goroutines.
func (c *Compositor) Start(ctx context.Context) error {
	for _, g := range c.gens {
		if err := g.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops both FrameGenerators, waiting for their timer goroutines to
// exit before returning.
func (c *Compositor) Stop() error {
	var firstErr error
	for _, g := range c.gens {
		if err := g.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Compositor) validIndex(i int) bool {
	return i >= 0 && i < len(c.inputs)
}

// ActivateInput marks input i active, allowing it to accept pushed
// frames and be included in layout.
func (c *Compositor) ActivateInput(i int) error {
	if !c.validIndex(i) {
		return fmt.Errorf("%w: %d", ErrInputOutOfRange, i)
	}
	c.inputs[i].SetActive(true)
	return nil
}

// DeActivateInput marks input i inactive, clearing its queue.
func (c *Compositor) DeActivateInput(i int) error {
	if !c.validIndex(i) {
		return fmt.Errorf("%w: %d", ErrInputOutOfRange, i)
	}
	c.inputs[i].SetActive(false)
	return nil
}

// PushFrame is the upstream publisher interface: pushInput(i, frame).
// Only planar YUV 4:2:0 frames are accepted; the caller supplies an
// already-decoded frame (decode is out of scope for this package).
func (c *Compositor) PushFrame(i int, src *yuvframe.Frame, displayTs uint32, syncEnabled bool, syncTs int64) bool {
	if !c.validIndex(i) {
		c.log.Warn("compositor: pushFrame index out of range", "index", i)
		return false
	}
	return c.inputs[i].Push(src, displayTs, syncEnabled, syncTs)
}

// SetAvatar registers the still-image fallback for input i.
func (c *Compositor) SetAvatar(i int, url string) error {
	if !c.validIndex(i) {
		return fmt.Errorf("%w: %d", ErrInputOutOfRange, i)
	}
	c.avatar.SetAvatar(i, url)
	return nil
}

// UnsetAvatar clears the still-image fallback for input i.
func (c *Compositor) UnsetAvatar(i int) error {
	if !c.validIndex(i) {
		return fmt.Errorf("%w: %d", ErrInputOutOfRange, i)
	}
	c.avatar.UnsetAvatar(i)
	return nil
}

// UpdateLayoutSolution validates sol against maxInput and, dropping any
// out-of-range entries with a warning rather than asserting, fans the
// (possibly trimmed) solution out to every generator so each produces
// frames from the same composition.
func (c *Compositor) UpdateLayoutSolution(sol layout.Solution) {
	valid := make(layout.Solution, 0, len(sol))
	for _, entry := range sol {
		if !c.validIndex(entry.Input) {
			c.log.Warn("compositor: dropping out-of-range layout entry", "input", entry.Input)
			continue
		}
		valid = append(valid, entry)
	}
	for _, g := range c.gens {
		g.UpdateLayoutSolution(valid)
	}
}

// AddOutput routes registration to whichever generator's IsSupported
// answers true first.
func (c *Compositor) AddOutput(w, h, fps int, dst Dst) (uuid.UUID, bool) {
	for _, g := range c.gens {
		if !g.IsSupported(w, h, fps) {
			continue
		}
		id, ok := g.AddOutput(w, h, fps, dst)
		if !ok {
			continue
		}
		c.outputMu.Lock()
		c.outputGens[id] = g
		c.outputMu.Unlock()
		return id, true
	}
	return uuid.UUID{}, false
}

// RemoveOutput removes a previously registered output by id.
func (c *Compositor) RemoveOutput(id uuid.UUID) bool {
	c.outputMu.Lock()
	g, ok := c.outputGens[id]
	if ok {
		delete(c.outputGens, id)
	}
	c.outputMu.Unlock()
	if !ok {
		return false
	}
	return g.RemoveOutput(id)
}

// DrawText enables the text overlay hook on every generator.
func (c *Compositor) DrawText(o textoverlay.Overlay) {
	for _, g := range c.gens {
		g.SetOverlay(o)
	}
}

// ClearText disables the text overlay hook on every generator.
func (c *Compositor) ClearText() {
	for _, g := range c.gens {
		g.SetOverlay(textoverlay.Noop())
	}
}

// UpdateRootSize is an acknowledged limitation: resolution cannot change
// after construction. It logs and returns an error rather than silently
// no-op-ing — see DESIGN.md's Open Question (b).
func (c *Compositor) UpdateRootSize(VideoSize) error {
	c.log.Warn("compositor: updateRootSize is unsupported after construction")
	return ErrRootSizeFixed
}

// UpdateBackgroundColor is an acknowledged limitation, symmetric with
// UpdateRootSize.
func (c *Compositor) UpdateBackgroundColor(YUVColor) error {
	c.log.Warn("compositor: updateBackgroundColor is unsupported after construction")
	return ErrBgColorFixed
}

// Status reports a snapshot of the compositor's runtime state for the
// control plane's get_status command: canvas geometry, how many of the
// fixed input slots are currently active, and how many outputs are
// registered across both fps bands.
func (c *Compositor) Status() map[string]interface{} {
	activeInputs := 0
	for _, ch := range c.inputs {
		if ch.IsActive() {
			activeInputs++
		}
	}

	c.outputMu.Lock()
	outputs := len(c.outputGens)
	c.outputMu.Unlock()

	return map[string]interface{}{
		"root_width":    c.cfg.RootSize.W,
		"root_height":   c.cfg.RootSize.H,
		"crop":          c.cfg.Crop,
		"max_input":     len(c.inputs),
		"active_inputs": activeInputs,
		"outputs":       outputs,
	}
}

// GetInputFrame implements layout.FrameSource: the non-sync path. An
// active input's result comes solely from PopFreshest, including nil
// when nothing has been pushed yet; the avatar cache only substitutes
// for an inactive input.
func (c *Compositor) GetInputFrame(i int) (*layout.SourcedFrame, bool) {
	if !c.validIndex(i) {
		return nil, false
	}
	if c.inputs[i].IsActive() {
		if qf := c.inputs[i].PopFreshest(); qf != nil {
			return layout.NewPooledFrame(qf.Buffer), true
		}
		return nil, false
	}
	f, ok := c.avatar.GetFrame(i)
	if !ok {
		return nil, false
	}
	return layout.NewBorrowedFrame(f), true
}

// GetSyncInputFrame implements layout.FrameSource: the sync-aligned
// path, falling back to avatar when inactive and to popFreshest when
// active but not currently sync-enabled.
func (c *Compositor) GetSyncInputFrame(i int, targetTs int64) (*layout.SourcedFrame, bool) {
	if !c.validIndex(i) {
		return nil, false
	}
	ch := c.inputs[i]
	if !ch.IsActive() {
		f, ok := c.avatar.GetFrame(i)
		if !ok {
			return nil, false
		}
		return layout.NewBorrowedFrame(f), true
	}
	if !ch.IsSyncEnabled() {
		if qf := ch.PopFreshest(); qf != nil {
			return layout.NewPooledFrame(qf.Buffer), true
		}
		return nil, false
	}
	if qf := ch.GetSync(targetTs); qf != nil {
		return layout.NewPooledFrame(qf.Buffer), true
	}
	return nil, false
}

// SyncWindow implements layout.FrameSource: reports front/back sync
// timestamps for input i only when it is active and sync-enabled — an
// inactive or non-syncing input never contributes to the sync window.
func (c *Compositor) SyncWindow(i int) (front, back int64, ok bool) {
	if !c.validIndex(i) {
		return 0, 0, false
	}
	ch := c.inputs[i]
	if !ch.IsActive() || !ch.IsSyncEnabled() {
		return 0, 0, false
	}
	f, b := ch.Front(), ch.Back()
	if f == nil || b == nil {
		return 0, 0, false
	}
	return f.SyncTs, b.SyncTs, true
}
