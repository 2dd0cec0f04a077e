package inputchannel

import (
	"testing"

	"github.com/visiona/mcu/internal/yuvframe"
)

func mustFrame(t *testing.T, w, h int, fill byte) *yuvframe.Frame {
	t.Helper()
	f, err := yuvframe.New(w, h)
	if err != nil {
		t.Fatal(err)
	}
	for i := range f.PlaneY {
		f.PlaneY[i] = fill
	}
	return f
}

func TestNewChannelStartsWithSyncDisabled(t *testing.T) {
	c := New(5, nil)
	if c.IsSyncEnabled() {
		t.Fatal("expected a freshly constructed channel to start with sync disabled")
	}
}

func TestPushRejectedWhenInactive(t *testing.T) {
	c := New(5, nil)
	if c.Push(mustFrame(t, 4, 4, 1), 0, true, 0) {
		t.Fatal("expected push into inactive channel to be rejected")
	}
}

func TestFrontBackAndPopFreshest(t *testing.T) {
	c := New(5, nil)
	c.SetActive(true)

	c.Push(mustFrame(t, 4, 4, 1), 0, true, 100)
	c.Push(mustFrame(t, 4, 4, 2), 0, true, 101)
	c.Push(mustFrame(t, 4, 4, 3), 0, true, 102)

	if got := c.Front().SyncTs; got != 100 {
		t.Fatalf("expected front syncTs 100, got %d", got)
	}
	if got := c.Back().SyncTs; got != 102 {
		t.Fatalf("expected back syncTs 102, got %d", got)
	}

	// 3 entries queued: popFreshest drains the oldest (100) and yields
	// the oldest remaining entry.
	f := c.PopFreshest()
	if f.SyncTs != 101 {
		t.Fatalf("expected popFreshest to yield oldest remaining (101), got %d", f.SyncTs)
	}
	if c.Front().SyncTs != 101 {
		t.Fatalf("expected queue to have drained oldest, front now %d", c.Front().SyncTs)
	}

	// Only one entry left after draining down to it: it is kept as a
	// spare and returned again, not removed.
	c.PopFreshest() // drains 101, front now 102
	spare := c.PopFreshest()
	if spare.SyncTs != 102 {
		t.Fatalf("expected spare syncTs 102, got %d", spare.SyncTs)
	}
	again := c.PopFreshest()
	if again.SyncTs != 102 {
		t.Fatalf("expected repeated spare syncTs 102, got %d", again.SyncTs)
	}
}

func TestPopFreshestEmpty(t *testing.T) {
	c := New(5, nil)
	c.SetActive(true)
	if c.PopFreshest() != nil {
		t.Fatal("expected nil on empty queue")
	}
}

func TestQueueOverflowClearsAndDisablesSync(t *testing.T) {
	c := New(3, nil)
	c.SetActive(true)

	for i := 0; i < 3; i++ {
		c.Push(mustFrame(t, 4, 4, byte(i)), 0, true, int64(i))
	}
	if !c.IsSyncEnabled() {
		t.Fatal("expected sync still enabled before overflow")
	}

	// this push hits qMax==3 already queued -> overflow branch fires.
	c.Push(mustFrame(t, 4, 4, 9), 0, true, 99)

	if c.IsSyncEnabled() {
		t.Fatal("expected sync permanently disabled after overflow")
	}
	if c.Front().SyncTs != 99 || c.Back().SyncTs != 99 {
		t.Fatalf("expected queue to hold exactly the new frame, front=%v back=%v", c.Front(), c.Back())
	}
}

func TestNonSyncFrameKeepsQueueAtOne(t *testing.T) {
	c := New(5, nil)
	c.SetActive(true)

	c.Push(mustFrame(t, 4, 4, 1), 0, true, 1)
	c.Push(mustFrame(t, 4, 4, 2), 0, false, 2)

	if c.Front() != c.Back() {
		t.Fatal("expected queue to hold at most one entry once sync disabled on a frame")
	}
	if c.IsSyncEnabled() {
		t.Fatal("expected IsSyncEnabled false after a non-sync frame")
	}
}

func TestGetSyncMinusOneReturnsFrontWithoutAdvancing(t *testing.T) {
	c := New(5, nil)
	c.SetActive(true)
	c.Push(mustFrame(t, 4, 4, 1), 0, true, 10)
	c.Push(mustFrame(t, 4, 4, 2), 0, true, 20)

	got := c.GetSync(-1)
	if got.SyncTs != 10 {
		t.Fatalf("expected GetSync(-1) == front (10), got %d", got.SyncTs)
	}
	if c.Front().SyncTs != 10 {
		t.Fatal("expected GetSync(-1) not to advance the queue")
	}
}

func TestGetSyncAdvancesWhileBehindTarget(t *testing.T) {
	c := New(5, nil)
	c.SetActive(true)
	for _, ts := range []int64{10, 20, 30, 40} {
		c.Push(mustFrame(t, 4, 4, 1), 0, true, ts)
	}

	got := c.GetSync(25)
	if got.SyncTs != 30 {
		t.Fatalf("expected GetSync(25) to land on 30, got %d", got.SyncTs)
	}

	// advancing stops at the last entry even if target is beyond it.
	got2 := c.GetSync(1000)
	if got2.SyncTs != 40 {
		t.Fatalf("expected GetSync to stop at last entry 40, got %d", got2.SyncTs)
	}
}

func TestSetActiveFalseClearsQueue(t *testing.T) {
	c := New(5, nil)
	c.SetActive(true)
	c.Push(mustFrame(t, 4, 4, 1), 0, true, 1)
	c.SetActive(false)
	if c.Front() != nil {
		t.Fatal("expected queue cleared on deactivation")
	}
	c.SetActive(true)
	if c.Front() != nil {
		t.Fatal("expected queue to remain empty after reactivation")
	}
}
