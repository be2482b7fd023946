// Package mempool implements the bounded fixed-block free-list allocator
// the rest of the node runtime uses instead of unbounded per-message
// allocation: a fixed block size, a fixed block count, and occupancy
// tracked with a bitset rather than an intrusive linked list.
package mempool

import (
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/openrobots-dev/rosnode/xerr"
)

// Pool is a fixed block-size, fixed block-count allocator. Allocation
// never splits a block; Free returns a block to the pool for reuse.
type Pool struct {
	mu    sync.Mutex
	size  int
	count int
	used  *bitset.BitSet
	slabs [][]byte
}

// New creates a Pool of count blocks, each size bytes.
func New(size, count int) *Pool {
	p := &Pool{
		size:  size,
		count: count,
		used:  bitset.New(uint(count)),
		slabs: make([][]byte, count),
	}
	for i := range p.slabs {
		p.slabs[i] = make([]byte, size)
	}
	return p
}

// Alloc returns an unused block, or NoMemory when the pool is
// exhausted.
func (p *Pool) Alloc() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < p.count; i++ {
		if !p.used.Test(uint(i)) {
			p.used.Set(uint(i))
			return p.slabs[i], nil
		}
	}
	return nil, xerr.NoMemory.Error()
}

// Free returns block to the pool. Freeing a block not obtained from
// this pool, or already free, is a no-op.
func (p *Pool) Free(block []byte) {
	if len(block) == 0 || p.size == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for i, s := range p.slabs {
		if &s[0] == &block[0] {
			p.used.Clear(uint(i))
			return
		}
	}
}

// Count returns the number of blocks currently allocated.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.used.Count())
}

// Size returns the fixed block size.
func (p *Pool) Size() int {
	return p.size
}

// Capacity returns the fixed block count.
func (p *Pool) Capacity() int {
	return p.count
}
