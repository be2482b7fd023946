package mempool_test

import (
	"testing"

	"github.com/openrobots-dev/rosnode/mempool"
	"github.com/openrobots-dev/rosnode/xerr"
)

func TestAllocFreeRoundTrip(t *testing.T) {
	p := mempool.New(64, 2)

	a, err := p.Alloc()
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if p.Count() != 1 {
		t.Fatalf("expected 1 block in use, got %d", p.Count())
	}

	b, err := p.Alloc()
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if p.Count() != 2 {
		t.Fatalf("expected 2 blocks in use, got %d", p.Count())
	}

	if _, err := p.Alloc(); !xerr.Is(err, xerr.NoMemory) {
		t.Fatalf("expected NoMemory, got %v", err)
	}

	p.Free(a)
	if p.Count() != 1 {
		t.Fatalf("expected 1 block in use after free, got %d", p.Count())
	}

	c, err := p.Alloc()
	if err != nil {
		t.Fatalf("alloc after free: %v", err)
	}
	_ = b
	_ = c
}

func TestEveryBlockSameSize(t *testing.T) {
	p := mempool.New(32, 4)
	if p.Size() != 32 || p.Capacity() != 4 {
		t.Fatalf("unexpected size/capacity")
	}
	blk, err := p.Alloc()
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if len(blk) != 32 {
		t.Fatalf("expected block length 32, got %d", len(blk))
	}
}
