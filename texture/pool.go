// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texture

import (
	"image"
	"sync"

	"github.com/gogpu/compositor/driver"
)

// DefaultPoolLimit is the number of idle textures a pool keeps by default.
const DefaultPoolLimit = 16

type poolKey struct {
	size   image.Point
	format driver.Format
	target bool
}

type pooled struct {
	tex   driver.Texture
	atime int64
}

// PoolStats reports pool activity.
type PoolStats struct {
	Idle      int
	Limit     int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Pool keeps released textures for reuse by allocations of the same size,
// format and usage. When more than the limit are idle, the least recently
// returned ones are released down to three quarters of the limit.
type Pool struct {
	mu        sync.Mutex
	idle      map[poolKey][]pooled
	count     int
	limit     int
	tick      int64
	hits      uint64
	misses    uint64
	evictions uint64
}

// NewPool returns a pool holding at most limit idle textures.
func NewPool(limit int) *Pool {
	if limit <= 0 {
		limit = DefaultPoolLimit
	}
	return &Pool{idle: make(map[poolKey][]pooled), limit: limit}
}

func (p *Pool) take(desc driver.TextureDesc) driver.Texture {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := poolKey{size: desc.Size, format: desc.Format, target: desc.RenderTarget}
	list := p.idle[k]
	if len(list) == 0 {
		p.misses++
		return nil
	}
	last := list[len(list)-1]
	if len(list) == 1 {
		delete(p.idle, k)
	} else {
		p.idle[k] = list[:len(list)-1]
	}
	p.count--
	p.hits++
	return last.tex
}

func (p *Pool) put(tex driver.Texture, desc driver.TextureDesc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tick++
	k := poolKey{size: desc.Size, format: desc.Format, target: desc.RenderTarget}
	p.idle[k] = append(p.idle[k], pooled{tex: tex, atime: p.tick})
	p.count++
	if p.count > p.limit {
		p.evictOldest()
	}
}

func (p *Pool) evictOldest() {
	target := max(p.limit*3/4, 1)
	for p.count > target {
		var oldestKey poolKey
		oldestIdx := -1
		var oldest int64
		for k, list := range p.idle {
			for i, e := range list {
				if oldestIdx < 0 || e.atime < oldest {
					oldestKey, oldestIdx, oldest = k, i, e.atime
				}
			}
		}
		if oldestIdx < 0 {
			return
		}
		list := p.idle[oldestKey]
		list[oldestIdx].tex.Release()
		list = append(list[:oldestIdx], list[oldestIdx+1:]...)
		if len(list) == 0 {
			delete(p.idle, oldestKey)
		} else {
			p.idle[oldestKey] = list
		}
		p.count--
		p.evictions++
	}
}

// Len returns the number of idle textures.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// Stats returns a snapshot.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{Idle: p.count, Limit: p.limit, Hits: p.hits, Misses: p.misses, Evictions: p.evictions}
}

// Purge releases every idle texture.
func (p *Pool) Purge() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, list := range p.idle {
		for _, e := range list {
			e.tex.Release()
		}
	}
	p.idle = make(map[poolKey][]pooled)
	p.count = 0
}
