package book

import (
	"testing"

	"github.com/slabdex/slabdex/pkg/arena"
)

func h(i uint32) arena.Handle { return arena.Handle{Index: i, Generation: 1} }

func TestBestBidAskAfterInsert(t *testing.T) {
	b := New()
	b.Insert(Buy, 100, h(1))
	b.Insert(Buy, 102, h(2))
	b.Insert(Sell, 105, h(3))
	b.Insert(Sell, 104, h(4))

	if p, ok := b.Best(Buy); !ok || p != 102 {
		t.Fatalf("best bid = %d, %v; want 102, true", p, ok)
	}
	if p, ok := b.Best(Sell); !ok || p != 104 {
		t.Fatalf("best ask = %d, %v; want 104, true", p, ok)
	}
}

func TestFIFOWithinLevel(t *testing.T) {
	b := New()
	b.Insert(Buy, 100, h(1))
	b.Insert(Buy, 100, h(2))
	front, ok := b.Front(Buy, 100)
	if !ok || front != h(1) {
		t.Fatalf("front = %v, %v; want h(1), true (arrival order)", front, ok)
	}
}

func TestRemoveClearsEmptyLevel(t *testing.T) {
	b := New()
	b.Insert(Buy, 100, h(1))
	if !b.Remove(h(1)) {
		t.Fatalf("remove should succeed for a resting handle")
	}
	if _, ok := b.Best(Buy); ok {
		t.Fatalf("level should be gone after removing its only order")
	}
	if b.Remove(h(1)) {
		t.Fatalf("second remove of the same handle should be a no-op")
	}
}

// I3: book monotonicity — bids strictly descending, asks strictly ascending.
func TestMonotonicity(t *testing.T) {
	b := New()
	for _, p := range []int64{100, 105, 95, 110, 90} {
		b.Insert(Buy, p, h(uint32(p)))
		b.Insert(Sell, p+1000, h(uint32(p+1000)))
	}
	if !b.Monotone(Buy) {
		t.Fatalf("bid side not monotone: %v", b.Levels(Buy))
	}
	if !b.Monotone(Sell) {
		t.Fatalf("ask side not monotone: %v", b.Levels(Sell))
	}
}

func TestWalkStopsAtLimitPrice(t *testing.T) {
	b := New()
	b.Insert(Sell, 100, h(1))
	b.Insert(Sell, 101, h(2))
	b.Insert(Sell, 102, h(3))

	var visited []int64
	b.Walk(Sell, 101, func(price int64, hh arena.Handle) bool {
		visited = append(visited, price)
		return false
	})
	if len(visited) != 2 || visited[0] != 100 || visited[1] != 101 {
		t.Fatalf("walk visited %v, want [100 101]", visited)
	}
}

func TestWalkEarlyStop(t *testing.T) {
	b := New()
	b.Insert(Buy, 100, h(1))
	b.Insert(Buy, 99, h(2))
	b.Insert(Buy, 98, h(3))

	count := 0
	b.Walk(Buy, 0, func(price int64, hh arena.Handle) bool {
		count++
		return count == 1 // stop after the first level
	})
	if count != 1 {
		t.Fatalf("walk should have stopped after 1 level, visited %d", count)
	}
}
