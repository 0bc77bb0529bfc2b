package storage

import (
	"reldb/internal/errs"
)

// ReplacementPolicy names the buffer pool's frame-eviction strategy
// (spec.md §4.2's "configurable replacement policy").
type ReplacementPolicy int

const (
	LRU ReplacementPolicy = iota
	FIFO
	CLOCK
)

func ParsePolicy(s string) ReplacementPolicy {
	switch s {
	case "FIFO", "fifo":
		return FIFO
	case "CLOCK", "clock":
		return CLOCK
	default:
		return LRU
	}
}

// frame is one slot in the buffer pool: a cached page plus its pin
// count, dirty flag, and bookkeeping the active replacement policy
// needs (a monotonic "tick": last access for LRU, load time for FIFO;
// a reference bit for CLOCK).
type frame struct {
	page      *Page
	pinCount  int
	dirty     bool
	tick      int64
	reference bool
}

// PageLoader fetches a page's bytes from its backing store on a buffer
// miss (the table manager's per-table page file, in this engine).
type PageLoader func(pageID int) (*Page, error)

// BufferPoolStats exposes hit/miss/eviction counters the spec's
// "select_with_performance" operation surfaces to callers.
type BufferPoolStats struct {
	Hits      int
	Misses    int
	Evictions int
}

// BufferPool is C2's fixed-capacity page cache: a frame table keyed by
// page ID, pin/unpin bookkeeping, and one of three eviction policies,
// grounded on original_source/src/storage/buffer_pool.py's frame-table
// shape and translated into a small pure-Go LRU/FIFO/CLOCK
// implementation (no third-party cache library in the example pack
// targets page-level pinning semantics, so this stays hand-rolled;
// documented in DESIGN.md).
type BufferPool struct {
	capacity int
	policy   ReplacementPolicy
	frames   map[int]*frame
	clock    int
	loader   PageLoader
	stats    BufferPoolStats
	onEvict  func(*Page) error
}

func NewBufferPool(capacity int, policy ReplacementPolicy, loader PageLoader) *BufferPool {
	if capacity <= 0 {
		capacity = 1
	}
	return &BufferPool{capacity: capacity, policy: policy, frames: map[int]*frame{}, loader: loader}
}

func (bp *BufferPool) Stats() BufferPoolStats { return bp.stats }

// Pin loads a page into the pool (from cache, or via the loader on a
// miss), increments its pin count, and returns it. The caller must call
// Unpin when done with the page.
func (bp *BufferPool) Pin(pageID int) (*Page, error) {
	bp.clock++
	if f, ok := bp.frames[pageID]; ok {
		bp.stats.Hits++
		f.pinCount++
		if bp.policy != FIFO {
			f.tick = int64(bp.clock)
		}
		f.reference = true
		return f.page, nil
	}
	bp.stats.Misses++
	if len(bp.frames) >= bp.capacity {
		if err := bp.evictOne(); err != nil {
			return nil, err
		}
	}
	page, err := bp.loader(pageID)
	if err != nil {
		return nil, err
	}
	bp.frames[pageID] = &frame{page: page, pinCount: 1, tick: int64(bp.clock), reference: true}
	return page, nil
}

// PutNew installs a freshly allocated page directly into the pool
// (bypassing the loader, which has nothing to load yet) and pins it.
func (bp *BufferPool) PutNew(page *Page) error {
	bp.clock++
	if len(bp.frames) >= bp.capacity {
		if err := bp.evictOne(); err != nil {
			return err
		}
	}
	bp.frames[page.ID] = &frame{page: page, pinCount: 1, dirty: true, tick: int64(bp.clock), reference: true}
	return nil
}

// Unpin releases a pin and optionally marks the page dirty.
func (bp *BufferPool) Unpin(pageID int, dirty bool) {
	f, ok := bp.frames[pageID]
	if !ok {
		return
	}
	if f.pinCount > 0 {
		f.pinCount--
	}
	if dirty {
		f.dirty = true
	}
}

// MarkDirty flags a resident page as needing a flush without touching
// its pin count, for in-place mutations made while already pinned.
func (bp *BufferPool) MarkDirty(pageID int) {
	if f, ok := bp.frames[pageID]; ok {
		f.dirty = true
	}
}

func (bp *BufferPool) evictOne() error {
	victim, ok := bp.selectVictim()
	if !ok {
		return errs.NewStorage(errs.NoFramesAvailable, "buffer pool exhausted: all %d frames pinned", bp.capacity)
	}
	f := bp.frames[victim]
	if f.dirty && bp.onEvict != nil {
		if err := bp.onEvict(f.page); err != nil {
			return err
		}
	}
	delete(bp.frames, victim)
	bp.stats.Evictions++
	return nil
}

func (bp *BufferPool) selectVictim() (int, bool) {
	switch bp.policy {
	case FIFO:
		return bp.selectOldest(func(f *frame) int64 { return f.tick })
	case CLOCK:
		return bp.selectClock()
	default: // LRU
		return bp.selectOldest(func(f *frame) int64 { return f.tick })
	}
}

func (bp *BufferPool) selectOldest(key func(*frame) int64) (int, bool) {
	var best int
	var bestTick int64 = int64(bp.clock) + 1
	found := false
	for id, f := range bp.frames {
		if f.pinCount > 0 {
			continue
		}
		if k := key(f); k < bestTick {
			bestTick = k
			best = id
			found = true
		}
	}
	return best, found
}

// selectClock implements the CLOCK second-chance algorithm: sweep
// candidates, clearing reference bits, and evict the first unpinned
// frame whose reference bit was already clear.
func (bp *BufferPool) selectClock() (int, bool) {
	for pass := 0; pass < 2; pass++ {
		for id, f := range bp.frames {
			if f.pinCount > 0 {
				continue
			}
			if !f.reference {
				return id, true
			}
			f.reference = false
		}
	}
	for id, f := range bp.frames {
		if f.pinCount == 0 {
			return id, true
		}
	}
	return 0, false
}

// SetOnEvict installs the callback used to persist a dirty page before
// the pool drops or flushes it (wired by the table manager to write the
// page's bytes back to the table's in-memory page store; catalog_io.go
// writes that store to pages/<table>.pages).
func (bp *BufferPool) SetOnEvict(fn func(*Page) error) { bp.onEvict = fn }

// FlushAll writes back every dirty resident page via onEvict, leaving
// pages resident (unlike eviction, which removes them).
func (bp *BufferPool) FlushAll() error {
	if bp.onEvict == nil {
		return nil
	}
	for _, f := range bp.frames {
		if f.dirty {
			if err := bp.onEvict(f.page); err != nil {
				return err
			}
			f.dirty = false
		}
	}
	return nil
}
