// Package avatar implements AvatarCache: still images substituted for
// inputs that have no active live source, keyed by a per-input URL and
// decoded lazily from a raw planar YUV 4:2:0 file. Decode and validation
// failures are logged as warnings rather than raised to the caller.
package avatar

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/visiona/mcu/internal/yuvframe"
)

// Cache maps input index -> URL -> decoded still frame.
type Cache struct {
	mu         sync.Mutex
	indexToURL map[int]string
	urlToFrame map[string]*yuvframe.Frame
	log        *slog.Logger
}

// New creates an empty avatar cache.
func New(log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		indexToURL: make(map[int]string),
		urlToFrame: make(map[string]*yuvframe.Frame),
		log:        log,
	}
}

// SetAvatar atomically updates the URL associated with an input index.
// If this replaces a previously set URL, the old URL's decoded frame is
// evicted only if no other index still references it.
func (c *Cache) SetAvatar(index int, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old, had := c.indexToURL[index]
	c.indexToURL[index] = url
	if !had || old == url {
		return
	}
	c.evictIfUnreferencedLocked(old)
}

// UnsetAvatar removes the mapping for index, evicting its decoded frame
// if no remaining index still references the URL.
func (c *Cache) UnsetAvatar(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	url, had := c.indexToURL[index]
	if !had {
		return
	}
	delete(c.indexToURL, index)
	c.evictIfUnreferencedLocked(url)
}

func (c *Cache) evictIfUnreferencedLocked(url string) {
	for _, u := range c.indexToURL {
		if u == url {
			return
		}
	}
	delete(c.urlToFrame, url)
}

// GetFrame looks up the URL registered for index and returns its decoded
// frame, decoding and caching it on first use. Returns (nil, false) on
// any failure (no mapping, malformed URL, missing file, size mismatch),
// logged as a warning, never raised to the caller.
func (c *Cache) GetFrame(index int) (*yuvframe.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	url, ok := c.indexToURL[index]
	if !ok {
		c.log.Warn("avatar: no url registered for index", "index", index)
		return nil, false
	}

	if f, ok := c.urlToFrame[url]; ok {
		return f, true
	}

	f, err := loadImage(url)
	if err != nil {
		c.log.Warn("avatar: load failed", "index", index, "url", url, "error", err)
		return nil, false
	}
	c.urlToFrame[url] = f
	return f, true
}

// loadImage parses the ".<W>x<H>." size annotation out of a URL/path and
// decodes the raw planar YUV 4:2:0 file it names.
func loadImage(url string) (*yuvframe.Frame, error) {
	w, h, err := parseSize(url)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(url)
	if err != nil {
		return nil, fmt.Errorf("avatar: read %s: %w", url, err)
	}

	want := (w*h*3 + 1) / 2
	if len(data) != want {
		return nil, fmt.Errorf("avatar: %s has size %d, want %d for %dx%d", url, len(data), want, w, h)
	}

	f, err := yuvframe.New(w, h)
	if err != nil {
		return nil, err
	}

	ySize := w * h
	cSize := (w / 2) * (h / 2)
	copy(f.PlaneY, data[:ySize])
	copy(f.PlaneU, data[ySize:ySize+cSize])
	copy(f.PlaneV, data[ySize+cSize:ySize+2*cSize])

	return f, nil
}

// parseSize extracts W and H from a filename containing ".<W>x<H>.",
// e.g. "avatar.640x480.yuv". It scans for the first '.', then the next
// 'x' after it, then the next '.' after that, requiring the run between
// each delimiter pair to parse with strconv.Atoi as a positive even
// integer.
func parseSize(url string) (w, h int, err error) {
	dot1 := indexByte(url, '.', 0)
	if dot1 < 0 {
		return 0, 0, fmt.Errorf("avatar: no size annotation in %q", url)
	}
	xPos := indexByte(url, 'x', dot1+1)
	if xPos < 0 {
		return 0, 0, fmt.Errorf("avatar: no size annotation in %q", url)
	}
	dot2 := indexByte(url, '.', xPos+1)
	if dot2 < 0 {
		return 0, 0, fmt.Errorf("avatar: no size annotation in %q", url)
	}

	wStr := url[dot1+1 : xPos]
	hStr := url[xPos+1 : dot2]

	w, err = strconv.Atoi(wStr)
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("avatar: invalid width in %q", url)
	}
	h, err = strconv.Atoi(hStr)
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("avatar: invalid height in %q", url)
	}
	if w&1 != 0 || h&1 != 0 {
		return 0, 0, fmt.Errorf("avatar: odd size %dx%d in %q", w, h, url)
	}
	return w, h, nil
}

func indexByte(s string, b byte, from int) int {
	if from >= len(s) {
		return -1
	}
	for i := from; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
