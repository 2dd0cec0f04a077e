// Package yuvframe implements the planar YUV 4:2:0 pixel primitives that
// the compositor treats as its wire format: allocation, a box-filter
// sub-rectangle scaler, and solid-color rect fill. Crop/letterbox
// placement is computed by the caller (package layout).
//
// None of these are backed by a third-party planar-image library (see
// DESIGN.md), so the arithmetic here is a direct, from-scratch
// reimplementation of the box-filter scaling a native compositor would
// otherwise delegate to libyuv.
package yuvframe

import "fmt"

// Frame is a mutable planar YUV 4:2:0 image. Width and height are always
// even; the U and V planes are half-width and half-height of Y.
type Frame struct {
	W, H                      int
	StrideY, StrideU, StrideV int
	PlaneY, PlaneU, PlaneV    []byte
}

// New allocates a zero-filled planar YUV 4:2:0 frame of the given size.
// w and h must be positive and even.
func New(w, h int) (*Frame, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("yuvframe: invalid size %dx%d", w, h)
	}
	if w&1 != 0 || h&1 != 0 {
		return nil, fmt.Errorf("yuvframe: odd size %dx%d not supported by 4:2:0", w, h)
	}

	cw, ch := w/2, h/2
	return &Frame{
		W: w, H: h,
		StrideY: w, StrideU: cw, StrideV: cw,
		PlaneY: make([]byte, w*h),
		PlaneU: make([]byte, cw*ch),
		PlaneV: make([]byte, cw*ch),
	}, nil
}

// Reset clears a frame's dimensions to w,h without reallocating when the
// existing planes are already large enough; otherwise it reallocates.
// Used by the pool to recycle a buffer for a different composite size.
func (f *Frame) Reset(w, h int) error {
	if w <= 0 || h <= 0 || w&1 != 0 || h&1 != 0 {
		return fmt.Errorf("yuvframe: invalid size %dx%d", w, h)
	}
	cw, ch := w/2, h/2
	if len(f.PlaneY) < w*h || len(f.PlaneU) < cw*ch || len(f.PlaneV) < cw*ch {
		n, err := New(w, h)
		if err != nil {
			return err
		}
		*f = *n
		return nil
	}
	f.W, f.H = w, h
	f.StrideY, f.StrideU, f.StrideV = w, cw, cw
	return nil
}

// evenDown rounds n down to the nearest even value, required by 4:2:0
// chroma subsampling (bitwise &^1).
func evenDown(n int) int {
	return n &^ 1
}

// FillRect fills the sub-rectangle [x,y,w,h) of f with the given YUV
// color. Coordinates are clamped to the frame bounds.
func (f *Frame) FillRect(x, y, w, h int, yv, cb, cr byte) {
	x0, y0 := clampInt(x, 0, f.W), clampInt(y, 0, f.H)
	x1, y1 := clampInt(x+w, 0, f.W), clampInt(y+h, 0, f.H)
	if x1 <= x0 || y1 <= y0 {
		return
	}

	for row := y0; row < y1; row++ {
		off := row*f.StrideY + x0
		line := f.PlaneY[off : off+(x1-x0)]
		for i := range line {
			line[i] = yv
		}
	}

	cx0, cy0 := x0/2, y0/2
	cx1, cy1 := (x1+1)/2, (y1+1)/2
	for row := cy0; row < cy1; row++ {
		uOff := row*f.StrideU + cx0
		vOff := row*f.StrideV + cx0
		uLine := f.PlaneU[uOff : uOff+(cx1-cx0)]
		vLine := f.PlaneV[vOff : vOff+(cx1-cx0)]
		for i := range uLine {
			uLine[i] = cb
			vLine[i] = cr
		}
	}
}

// Fill fills the entire frame with a solid YUV color.
func (f *Frame) Fill(yv, cb, cr byte) {
	f.FillRect(0, 0, f.W, f.H, yv, cb, cr)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
