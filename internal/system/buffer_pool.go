package system

import (
	"image"
	"sync"
)

// FramePool recycles *image.RGBA frames of the same size. Exports and the
// preview server render one frame per tick; without reuse each of them is
// a fresh canvas-sized allocation.
type FramePool struct {
	mu    sync.RWMutex
	pools map[image.Point]*sync.Pool
}

var globalFrames = NewFramePool()

// NewFramePool returns an empty pool.
func NewFramePool() *FramePool {
	return &FramePool{pools: make(map[image.Point]*sync.Pool)}
}

// GetFrame returns a w x h frame from the shared pool. Its contents are
// undefined; callers paint every pixel.
func GetFrame(w, h int) *image.RGBA {
	return globalFrames.Get(w, h)
}

// PutFrame returns a frame to the shared pool.
func PutFrame(img *image.RGBA) {
	globalFrames.Put(img)
}

func (p *FramePool) pool(size image.Point) *sync.Pool {
	p.mu.RLock()
	pool, ok := p.pools[size]
	p.mu.RUnlock()
	if ok {
		return pool
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if pool, ok = p.pools[size]; ok {
		return pool
	}
	pool = &sync.Pool{
		New: func() any {
			return image.NewRGBA(image.Rectangle{Max: size})
		},
	}
	p.pools[size] = pool
	return pool
}

func (p *FramePool) Get(w, h int) *image.RGBA {
	return p.pool(image.Pt(w, h)).Get().(*image.RGBA)
}

// Put accepts only zero-origin frames; anything else is dropped.
func (p *FramePool) Put(img *image.RGBA) {
	if img == nil || img.Rect.Min != (image.Point{}) {
		return
	}
	p.pool(img.Rect.Max).Put(img)
}
