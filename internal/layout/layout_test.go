package layout

import (
	"testing"

	"github.com/visiona/mcu/internal/yuvframe"
)

// fakeSource is a minimal FrameSource for exercising Applier without a
// real Compositor.
type fakeSource struct {
	frames      map[int]*yuvframe.Frame
	syncWindows map[int][2]int64 // input -> {front, back}
	syncCalls   []int64          // records targetTs passed to GetSyncInputFrame
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		frames:      make(map[int]*yuvframe.Frame),
		syncWindows: make(map[int][2]int64),
	}
}

func (f *fakeSource) GetInputFrame(i int) (*SourcedFrame, bool) {
	fr, ok := f.frames[i]
	if !ok {
		return nil, false
	}
	return NewBorrowedFrame(fr), true
}

func (f *fakeSource) GetSyncInputFrame(i int, targetTs int64) (*SourcedFrame, bool) {
	f.syncCalls = append(f.syncCalls, targetTs)
	fr, ok := f.frames[i]
	if !ok {
		return nil, false
	}
	return NewBorrowedFrame(fr), true
}

func (f *fakeSource) SyncWindow(i int) (front, back int64, ok bool) {
	w, present := f.syncWindows[i]
	if !present {
		return 0, 0, false
	}
	return w[0], w[1], true
}

func solidFrame(t *testing.T, w, h int, y byte) *yuvframe.Frame {
	t.Helper()
	f, err := yuvframe.New(w, h)
	if err != nil {
		t.Fatal(err)
	}
	f.Fill(y, 128, 128)
	return f
}

func fullRect() Rect {
	return Rect{
		Left:   Rational{0, 1},
		Top:    Rational{0, 1},
		Width:  Rational{1, 1},
		Height: Rational{1, 1},
	}
}

func TestApplyLetterboxCentersNarrowerSource(t *testing.T) {
	dst := solidFrame(t, 640, 360, 16) // bg color
	src := newFakeSource()
	src.frames[0] = solidFrame(t, 320, 240, 200)

	a := New(false, nil)
	sol := Solution{{Input: 0, Region: Region{Rect: fullRect()}}}
	a.Apply(dst, sol, src)

	// letterboxed width = min(640, 320*360/240) = 480, centered with 80px
	// bars on each side (bars stay background color 16).
	if dst.PlaneY[0] != 16 {
		t.Fatalf("expected left bar to remain background, got %d", dst.PlaneY[0])
	}
	mid := dst.StrideY*180 + 320
	if dst.PlaneY[mid] != 200 {
		t.Fatalf("expected center pixel to be painted from source, got %d", dst.PlaneY[mid])
	}
}

func TestApplyCropFillsEntireRegion(t *testing.T) {
	dst := solidFrame(t, 1280, 480, 16)
	src := newFakeSource()
	src.frames[0] = solidFrame(t, 640, 480, 100)
	src.frames[1] = solidFrame(t, 640, 480, 200)

	a := New(true, nil)
	sol := Solution{
		{Input: 0, Region: Region{Rect: Rect{Left: Rational{0, 1}, Top: Rational{0, 1}, Width: Rational{1, 2}, Height: Rational{1, 1}}}},
		{Input: 1, Region: Region{Rect: Rect{Left: Rational{1, 2}, Top: Rational{0, 1}, Width: Rational{1, 2}, Height: Rational{1, 1}}}},
	}
	a.Apply(dst, sol, src)

	if dst.PlaneY[0] != 100 {
		t.Fatalf("expected left half painted from input 0, got %d", dst.PlaneY[0])
	}
	if dst.PlaneY[700] != 200 {
		t.Fatalf("expected right half painted from input 1, got %d", dst.PlaneY[700])
	}
}

func TestComputeSyncTargetNoContributors(t *testing.T) {
	a := New(false, nil)
	src := newFakeSource()
	sol := Solution{{Input: 0, Region: Region{Rect: fullRect()}}}

	targetTs, useSync, holdFront := a.computeSyncTarget(sol, src)
	if useSync || holdFront || targetTs != -1 {
		t.Fatalf("expected non-sync fallback, got targetTs=%d useSync=%v holdFront=%v", targetTs, useSync, holdFront)
	}
}

func TestComputeSyncTargetEmptyWindowHoldsFront(t *testing.T) {
	a := New(false, nil)
	src := newFakeSource()
	src.syncWindows[0] = [2]int64{100, 103}
	src.syncWindows[1] = [2]int64{104, 107}
	sol := Solution{
		{Input: 0, Region: Region{Rect: fullRect()}},
		{Input: 1, Region: Region{Rect: fullRect()}},
	}

	_, useSync, holdFront := a.computeSyncTarget(sol, src)
	if !useSync || !holdFront {
		t.Fatalf("expected empty-window hold-front, got useSync=%v holdFront=%v", useSync, holdFront)
	}
}

func TestComputeSyncTargetValidWindowPicksMaxSyncTs(t *testing.T) {
	a := New(false, nil)
	src := newFakeSource()
	src.syncWindows[0] = [2]int64{100, 110}
	src.syncWindows[1] = [2]int64{102, 108}
	sol := Solution{
		{Input: 0, Region: Region{Rect: fullRect()}},
		{Input: 1, Region: Region{Rect: fullRect()}},
	}

	targetTs, useSync, holdFront := a.computeSyncTarget(sol, src)
	if !useSync || holdFront {
		t.Fatalf("expected sync-aligned fetch, got useSync=%v holdFront=%v", useSync, holdFront)
	}
	if targetTs != 108 {
		t.Fatalf("expected targetTs = min(back) = 108, got %d", targetTs)
	}
}

// TestApplyLetterboxThirdsRegionRoundsOnce uses a one-third-width region on
// an even canvas (640*1/3=213, an odd intermediate) to catch rounding the
// scaled placement to even before computing the letterbox ratios: doing so
// changes the cropped-height math enough to shift the painted band by more
// than the single final rounding pass would.
func TestApplyLetterboxThirdsRegionRoundsOnce(t *testing.T) {
	dst := solidFrame(t, 640, 1000, 16)
	src := newFakeSource()
	src.frames[0] = solidFrame(t, 100, 200, 200)

	a := New(false, nil)
	sol := Solution{{Input: 0, Region: Region{Rect: Rect{
		Left:   Rational{0, 1},
		Top:    Rational{0, 1},
		Width:  Rational{1, 3},
		Height: Rational{1, 1},
	}}}}
	a.Apply(dst, sol, src)

	// Computing dstW unrounded (213) before the letterbox ratio math places
	// the band's top edge at row 286; rounding dstW down to 212 first
	// (the bug) shifts it to row 288.
	top := dst.StrideY*286 + 100
	if dst.PlaneY[top] != 200 {
		t.Fatalf("expected row 286 to already be painted from source, got %d", dst.PlaneY[top])
	}
	aboveTop := dst.StrideY*284 + 100
	if dst.PlaneY[aboveTop] != 16 {
		t.Fatalf("expected row 284 to remain background, got %d", dst.PlaneY[aboveTop])
	}
}

func TestApplySkipsMissingInputWithoutPanic(t *testing.T) {
	dst := solidFrame(t, 64, 64, 16)
	src := newFakeSource() // no frames registered

	a := New(false, nil)
	sol := Solution{{Input: 0, Region: Region{Rect: fullRect()}}}
	a.Apply(dst, sol, src) // must not panic

	if dst.PlaneY[0] != 16 {
		t.Fatal("expected background to remain untouched when input is missing")
	}
}
