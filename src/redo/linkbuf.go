package redo

import (
	"sync/atomic"

	"github.com/Blackdeer1524/redopipe/src/pkg/assert"
	"github.com/Blackdeer1524/redopipe/src/pkg/common"
)

// linkBuf tracks ranges of the log that completed out of order. The slot at
// `from mod capacity` holds the end of the range starting at `from`; zero
// means free. Any number of producers may add links, a single consumer
// advances the tail over contiguous links.
type linkBuf struct {
	slots []atomic.Uint64
	mask  uint64
	tail  atomic.Uint64
}

func newLinkBuf(capacity uint64, start common.LSN) *linkBuf {
	assert.Assert(capacity > 0 && capacity&(capacity-1) == 0, "link buf capacity must be a power of two: %d", capacity)

	b := &linkBuf{
		slots: make([]atomic.Uint64, capacity),
		mask:  capacity - 1,
	}
	b.tail.Store(uint64(start))
	return b
}

func (b *linkBuf) capacity() uint64 {
	return b.mask + 1
}

func (b *linkBuf) Tail() common.LSN {
	return common.LSN(b.tail.Load())
}

// hasSpace reports whether the slot of a range starting at `from` is no
// longer used by a link the consumer has not passed yet.
func (b *linkBuf) hasSpace(from common.LSN) bool {
	return uint64(from)-b.tail.Load() < b.capacity()
}

func (b *linkBuf) add(from, to common.LSN) {
	assert.Assert(to > from, "empty link [%d, %d)", from, to)
	assert.Assert(from >= b.Tail(), "link [%d, %d) starts below tail %d", from, to, b.Tail())
	assert.Assert(b.hasSpace(from), "no space for link [%d, %d), tail %d", from, to, b.Tail())

	slot := &b.slots[uint64(from)&b.mask]
	assert.Assert(slot.Load() == 0, "slot of link [%d, %d) is still occupied", from, to)
	slot.Store(uint64(to))
}

// hasNext reports whether the range starting at the tail has completed.
func (b *linkBuf) hasNext() bool {
	t := b.tail.Load()
	return b.slots[t&b.mask].Load() != 0
}

// advanceTail follows links from the tail, freeing the slots it passes. It
// stops at the first gap or before a link that would end past limit; the
// first link is always consumed, however long. Must only be called by the
// consumer.
func (b *linkBuf) advanceTail(limit common.LSN) (common.LSN, bool) {
	start := b.tail.Load()
	t := start

	for t < uint64(limit) {
		slot := &b.slots[t&b.mask]
		next := slot.Load()
		if next == 0 {
			break
		}
		assert.Assert(next > t, "link at %d points backwards to %d", t, next)
		if t != start && next > uint64(limit) {
			break
		}

		slot.Store(0)
		t = next
	}

	if t == start {
		return common.LSN(t), false
	}
	b.tail.Store(t)
	return common.LSN(t), true
}
