// Package textoverlay models the text-overlay library as an external
// collaborator: the compositor only needs a narrow hook it can call
// unconditionally every tick, not the drawing implementation itself.
package textoverlay

import "github.com/visiona/mcu/internal/yuvframe"

// Overlay draws arbitrary content onto a composite frame after regions
// are painted but before delivery. Implementations must not retain the
// frame past Draw returning.
type Overlay interface {
	Draw(f *yuvframe.Frame) error
}

// noop is the default overlay: does nothing.
type noop struct{}

func (noop) Draw(*yuvframe.Frame) error { return nil }

// Noop returns the disabled overlay used until DrawText is called.
func Noop() Overlay { return noop{} }

// Text is the built-in overlay set by Compositor.DrawText: a single
// fixed-position solid rectangle standing in for real glyph rendering,
// since the actual text-rendering library is an external collaborator
// outside this repository's scope.
type Text struct {
	Message string
	X, Y    int
	W, H    int
	Y0      byte
}

// Draw paints Text's rectangle onto f. Coordinates are clamped to the
// frame bounds by FillRect; degenerate (empty) rectangles are a no-op.
func (t Text) Draw(f *yuvframe.Frame) error {
	if t.W <= 0 || t.H <= 0 {
		return nil
	}
	f.FillRect(t.X, t.Y, t.W, t.H, t.Y0, 128, 128)
	return nil
}
