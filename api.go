package mcu

import (
	"github.com/visiona/mcu/internal/compositor"
	"github.com/visiona/mcu/internal/layout"
	"github.com/visiona/mcu/internal/textoverlay"
	"github.com/visiona/mcu/internal/yuvframe"
)

// Public API — re-export internal types as the stable contract.

// Compositor is the façade owning every InputChannel, the AvatarCache,
// and the two fps-band FrameGenerators.
type Compositor = compositor.Compositor

// Config carries the construction-time parameters accepted by New.
type Config = compositor.Config

// VideoSize is a canvas size in pixels.
type VideoSize = compositor.VideoSize

// YUVColor is an 8-bit-per-component background fill color.
type YUVColor = compositor.YUVColor

// Dst is a registered output subscriber; Deliver is called synchronously
// from a generator's timer goroutine and must not block.
type Dst = compositor.Dst

// Frame is a delivered composite frame carrying both a 90 kHz media
// timestamp and a wall-clock NTP timestamp.
type Frame = compositor.Frame

// Rational, Rect, Region, LayoutEntry and Solution describe a
// declarative layout: an ordered list of (input, placement) mappings.
type (
	Rational    = layout.Rational
	Rect        = layout.Rect
	Region      = layout.Region
	LayoutEntry = layout.LayoutEntry
	Solution    = layout.Solution
)

// Overlay is the external text-overlay collaborator's narrow interface.
type Overlay = textoverlay.Overlay

// NoopOverlay returns the disabled overlay used until DrawText is called.
func NoopOverlay() Overlay { return textoverlay.Noop() }

// RawFrame is a decoded planar YUV 4:2:0 image as pushed by an upstream
// publisher via Compositor.PushFrame. Decoding itself is out of scope
// for this package.
type RawFrame = yuvframe.Frame

// NewRawFrame allocates a zero-filled RawFrame of the given size. w and
// h must be positive and even.
func NewRawFrame(w, h int) (*RawFrame, error) { return yuvframe.New(w, h) }

// Public API errors — re-export internal sentinel errors as a stable
// contract callers can match with errors.Is.
var (
	ErrInputOutOfRange = compositor.ErrInputOutOfRange
	ErrInvalidMaxInput = compositor.ErrInvalidMaxInput
	ErrInvalidRootSize = compositor.ErrInvalidRootSize
	ErrRootSizeFixed   = compositor.ErrRootSizeFixed
	ErrBgColorFixed    = compositor.ErrBgColorFixed
)
