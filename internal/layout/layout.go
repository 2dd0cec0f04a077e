// Package layout implements the geometry types shared by a LayoutSolution
// and the LayoutApplier procedure that paints one into a composite buffer.
//
// Placement is expressed as fractions of the canvas (Rational/Rect) so a
// solution is resolution-independent. FrameSource is a narrow capability
// interface so the applier can pull frames without importing the package
// that owns input channels and the avatar cache, avoiding a cyclic
// package dependency.
package layout

import (
	"log/slog"

	"github.com/visiona/mcu/internal/pool"
	"github.com/visiona/mcu/internal/yuvframe"
)

// Rational is a non-negative fraction with a strictly positive
// denominator, used for placement fields expressed relative to canvas
// size.
type Rational struct {
	Num int `json:"num"`
	Den int `json:"den"`
}

// Scale multiplies whole by the fraction, truncating toward zero.
func (r Rational) Scale(whole int) int {
	if r.Den <= 0 {
		return 0
	}
	return whole * r.Num / r.Den
}

// Rect places a region as fractions of the composite canvas.
type Rect struct {
	Left   Rational `json:"left"`
	Top    Rational `json:"top"`
	Width  Rational `json:"width"`
	Height Rational `json:"height"`
}

// Region wraps the placement rectangle for one layout entry. It is a
// struct rather than a bare Rect to leave room for future per-region
// attributes (z-hints, opacity) without breaking LayoutEntry's shape.
type Region struct {
	Rect Rect `json:"rect"`
}

// LayoutEntry maps one input index to its on-canvas region. Entries are
// painted in order, so later entries in a Solution occlude earlier ones
// where regions overlap.
type LayoutEntry struct {
	Input  int    `json:"input"`
	Region Region `json:"region"`
}

// Solution is an ordered layout: index order is paint (Z) order.
type Solution []LayoutEntry

// SourcedFrame is a read-only handle to a frame fetched for compositing.
// It normalizes release semantics between pool-buffer-backed input
// frames (which must be released back to their channel's pool) and
// avatar-cache frames (borrowed from the cache's map, never released).
type SourcedFrame struct {
	frame *yuvframe.Frame
	buf   *pool.Buffer // nil for avatar-backed frames
}

// NewPooledFrame wraps a buffer retrieved from an InputChannel. Release
// must be called exactly once when the caller is done reading it.
func NewPooledFrame(buf *pool.Buffer) *SourcedFrame {
	return &SourcedFrame{frame: buf.Frame(), buf: buf}
}

// NewBorrowedFrame wraps a frame the caller does not own, such as one
// held live inside the AvatarCache. Release is a no-op.
func NewBorrowedFrame(f *yuvframe.Frame) *SourcedFrame {
	return &SourcedFrame{frame: f}
}

// Frame returns the underlying planar image.
func (s *SourcedFrame) Frame() *yuvframe.Frame { return s.frame }

// Release returns any pool reference this handle holds. Safe to call on
// a nil *SourcedFrame.
func (s *SourcedFrame) Release() {
	if s == nil || s.buf == nil {
		return
	}
	s.buf.Release()
}

// FrameSource is the narrow capability LayoutApplier needs from its
// owning Compositor: fetch the freshest or sync-aligned frame for one
// input index, falling back to the avatar cache internally. Passing
// this interface instead of a *Compositor pointer avoids a cyclic
// package dependency between layout and compositor.
type FrameSource interface {
	// GetInputFrame returns the non-sync (freshest-or-avatar) frame for
	// input i, or (nil, false) if nothing is available.
	GetInputFrame(i int) (*SourcedFrame, bool)
	// GetSyncInputFrame returns the sync-aligned (or avatar) frame for
	// input i given a target sync timestamp, or (nil, false).
	GetSyncInputFrame(i int, targetTs int64) (*SourcedFrame, bool)
	// SyncWindow reports front/back sync timestamps for input i if the
	// channel is active and sync-enabled, or ok=false otherwise.
	SyncWindow(i int) (front, back int64, ok bool)
}

// Applier paints a LayoutSolution into a pre-allocated composite buffer.
// It is stateless aside from its crop/letterbox mode and logger; all
// frame lookups go through the injected FrameSource.
type Applier struct {
	crop bool
	log  *slog.Logger
}

// New creates a LayoutApplier. crop selects centered-crop placement;
// false selects letterbox placement.
func New(crop bool, log *slog.Logger) *Applier {
	if log == nil {
		log = slog.Default()
	}
	return &Applier{crop: crop, log: log}
}

// Apply paints sol into dst using src to resolve each region's input
// frame. Errors from individual regions are logged and skipped; the
// overall composition always completes.
func (a *Applier) Apply(dst *yuvframe.Frame, sol Solution, src FrameSource) {
	targetTs, useSync, holdFront := a.computeSyncTarget(sol, src)

	for _, entry := range sol {
		sf, ok := a.fetchEntryFrame(entry.Input, src, useSync, holdFront, targetTs)
		if !ok {
			continue
		}
		a.paintRegion(dst, entry.Region, sf.Frame())
		sf.Release()
	}
}

// computeSyncTarget derives the cross-channel sync window and decides
// whether the tick should use sync-aligned fetch, the non-sync
// freshest-frame fallback, or the front-hold fallback for an empty
// window.
func (a *Applier) computeSyncTarget(sol Solution, src FrameSource) (targetTs int64, useSync, holdFront bool) {
	const sentinel = -1
	minSyncTs := int64(sentinel)
	maxSyncTs := int64(sentinel)
	contributed := false

	for _, entry := range sol {
		front, back, ok := src.SyncWindow(entry.Input)
		if !ok {
			continue
		}
		if !contributed {
			minSyncTs, maxSyncTs = front, back
			contributed = true
			continue
		}
		if front > minSyncTs {
			minSyncTs = front
		}
		if back < maxSyncTs {
			maxSyncTs = back
		}
	}

	if !contributed {
		return sentinel, false, false
	}
	if minSyncTs > maxSyncTs {
		return sentinel, true, true
	}
	return maxSyncTs, true, false
}

func (a *Applier) fetchEntryFrame(input int, src FrameSource, useSync, holdFront bool, targetTs int64) (*SourcedFrame, bool) {
	if !useSync {
		return src.GetInputFrame(input)
	}
	if holdFront {
		// Empty sync window: hold on each channel's front (or avatar)
		// without advancing any queue.
		return src.GetSyncInputFrame(input, -1)
	}
	// Non-sync-enabled channels fall back to freshest regardless of the
	// window; GetSyncInputFrame handles that distinction internally by
	// delegating to popFreshest for active sync-disabled inputs and to the
	// avatar for inactive ones.
	return src.GetSyncInputFrame(input, targetTs)
}

// paintRegion computes a region's on-canvas placement, clamps it to
// even 4:2:0-safe coordinates, and invokes the scaler.
func (a *Applier) paintRegion(dst *yuvframe.Frame, region Region, in *yuvframe.Frame) {
	compW, compH := dst.W, dst.H
	rect := region.Rect

	dstX := rect.Left.Scale(compW)
	dstY := rect.Top.Scale(compH)
	dstW := rect.Width.Scale(compW)
	dstH := rect.Height.Scale(compH)

	if dstX+dstW > compW {
		dstW = compW - dstX
	}
	if dstY+dstH > compH {
		dstH = compH - dstY
	}
	if dstW <= 0 || dstH <= 0 {
		return
	}

	inW, inH := in.W, in.H
	if inW <= 0 || inH <= 0 {
		return
	}

	var srcX, srcY, srcW, srcH int
	if a.crop {
		srcW = minInt(inW, dstW*inH/dstH)
		srcH = minInt(inH, dstH*inW/dstW)
		srcX = (inW - srcW) / 2
		srcY = (inH - srcH) / 2
	} else {
		srcX, srcY = 0, 0
		srcW, srcH = inW, inH
		croppedW := minInt(dstW, inW*dstH/inH)
		croppedH := minInt(dstH, inH*dstW/inW)
		dstX += (dstW - croppedW) / 2
		dstY += (dstH - croppedH) / 2
		dstW, dstH = croppedW, croppedH
	}

	dstX, dstY = evenDown(dstX), evenDown(dstY)
	dstW, dstH = evenDown(dstW), evenDown(dstH)
	srcX, srcY = evenDown(srcX), evenDown(srcY)
	srcW, srcH = evenDown(srcW), evenDown(srcH)

	if dstW <= 0 || dstH <= 0 || srcW <= 0 || srcH <= 0 {
		return
	}

	if err := yuvframe.ScaleRect(dst, dstX, dstY, dstW, dstH, in, srcX, srcY, srcW, srcH); err != nil {
		a.log.Error("layout: scale region failed", "error", err)
	}
}

func evenDown(n int) int { return n &^ 1 }

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
