package avatar

import (
	"os"
	"path/filepath"
	"testing"
)

func writeAvatarFile(t *testing.T, dir string, w, h int) string {
	t.Helper()
	name := filepath.Join(dir, "face."+itoa(w)+"x"+itoa(h)+".yuv")
	size := (w*h*3 + 1) / 2
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return name
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestParseSizeValid(t *testing.T) {
	w, h, err := parseSize("/tmp/avatar.640x480.yuv")
	if err != nil {
		t.Fatal(err)
	}
	if w != 640 || h != 480 {
		t.Fatalf("got %dx%d, want 640x480", w, h)
	}
}

func TestParseSizeMalformed(t *testing.T) {
	cases := []string{
		"noextension",
		"avatar.640.yuv",
		"avatar.640xabc.yuv",
		"avatar.x480.yuv",
		"avatar.641x480.yuv", // odd width
	}
	for _, c := range cases {
		if _, _, err := parseSize(c); err == nil {
			t.Errorf("expected error for %q", c)
		}
	}
}

func TestSetAvatarAndGetFrame(t *testing.T) {
	dir := t.TempDir()
	path := writeAvatarFile(t, dir, 16, 16)

	c := New(nil)
	c.SetAvatar(3, path)

	f, ok := c.GetFrame(3)
	if !ok {
		t.Fatal("expected successful decode")
	}
	if f.W != 16 || f.H != 16 {
		t.Fatalf("got %dx%d, want 16x16", f.W, f.H)
	}
	if f.PlaneY[0] != 0 || f.PlaneY[1] != 1 {
		t.Fatal("expected Y plane to match file contents")
	}
}

func TestGetFrameMissingFile(t *testing.T) {
	c := New(nil)
	c.SetAvatar(0, "/nonexistent/avatar.16x16.yuv")
	if _, ok := c.GetFrame(0); ok {
		t.Fatal("expected failure for missing file")
	}
}

func TestGetFrameSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.16x16.yuv")
	os.WriteFile(path, []byte{1, 2, 3}, 0o644)

	c := New(nil)
	c.SetAvatar(0, path)
	if _, ok := c.GetFrame(0); ok {
		t.Fatal("expected failure for size mismatch")
	}
}

func TestSetAvatarIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeAvatarFile(t, dir, 16, 16)

	c := New(nil)
	c.SetAvatar(1, path)
	c.GetFrame(1) // populate cache
	c.SetAvatar(1, path)

	if len(c.urlToFrame) != 1 {
		t.Fatalf("expected cache to still hold exactly one entry, got %d", len(c.urlToFrame))
	}
}

func TestUnsetAvatarEvictsOnlyWhenUnreferenced(t *testing.T) {
	dir := t.TempDir()
	path := writeAvatarFile(t, dir, 16, 16)

	c := New(nil)
	c.SetAvatar(0, path)
	c.SetAvatar(1, path)
	c.GetFrame(0)

	c.UnsetAvatar(0)
	if _, ok := c.urlToFrame[path]; !ok {
		t.Fatal("expected frame to remain cached while index 1 still references it")
	}

	c.UnsetAvatar(1)
	if _, ok := c.urlToFrame[path]; ok {
		t.Fatal("expected frame to be evicted once no index references it")
	}
}

func TestSetAvatarReplaceEvictsOldURL(t *testing.T) {
	dir := t.TempDir()
	p1 := writeAvatarFile(t, dir, 16, 16)
	p2 := writeAvatarFile(t, dir, 32, 32)

	c := New(nil)
	c.SetAvatar(0, p1)
	c.GetFrame(0)
	c.SetAvatar(0, p2)

	if _, ok := c.urlToFrame[p1]; ok {
		t.Fatal("expected old url's frame to be evicted after replacement")
	}
}
