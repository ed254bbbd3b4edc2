package raster

import (
	"image"
	"sync"
)

// Pool hands out canvas-sized frame buffers so that consecutive runs of the
// same size do not allocate a new buffer each time. Buffers returned by Get
// are always cleared to full transparency.
type Pool struct {
	pools map[image.Point]*sync.Pool
	mu    sync.RWMutex
}

func NewPool() *Pool {
	return &Pool{pools: make(map[image.Point]*sync.Pool)}
}

// Get returns a transparent buffer of the requested size, reusing a pooled
// one when available.
func (p *Pool) Get(size image.Point) (*image.RGBA, error) {
	p.mu.RLock()
	pool, exists := p.pools[size]
	p.mu.RUnlock()

	if !exists {
		// validate once per size, the pool's New cannot report errors
		if _, err := NewFrameBuffer(size.X, size.Y); err != nil {
			return nil, err
		}
		p.mu.Lock()
		pool, exists = p.pools[size]
		if !exists {
			pool = &sync.Pool{
				New: func() interface{} {
					return image.NewRGBA(image.Rectangle{Max: size})
				},
			}
			p.pools[size] = pool
		}
		p.mu.Unlock()
	}

	img := pool.Get().(*image.RGBA)
	clear(img.Pix)
	return img, nil
}

// Put returns img to the pool. Buffers of unknown size are dropped.
func (p *Pool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	p.mu.RLock()
	pool, exists := p.pools[img.Rect.Size()]
	p.mu.RUnlock()

	if exists {
		pool.Put(img)
	}
}
