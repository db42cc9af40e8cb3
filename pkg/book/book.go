// Package book implements one instrument's two price-sorted order
// queues — bids descending, asks ascending, strict price-time priority
// within a level — addressed entirely through arena handles rather
// than pointers, per the spec's cyclic-reference resolution (every
// cross-reference is an index, a generation tag catches use-after-free).
//
// Level lookup rides a heap of price levels for O(1) best-bid/best-ask,
// the same shape as the teacher's orderbook package, plus a sorted
// price index for Walk's multi-level traversal — the open question
// over price-level representation is resolved here as a sorted price
// slice plus a per-level FIFO slice of order handles.
package book

import (
	"container/heap"
	"sort"

	"github.com/slabdex/slabdex/pkg/arena"
)

type Side uint8

const (
	Buy  Side = 1
	Sell Side = 2
)

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// level is one price's FIFO arrival-order queue of resting order
// handles. Index 0 is the oldest (next to match).
type level struct {
	price   int64
	handles []arena.Handle
}

type sideBook struct {
	levels map[int64]*level
	prices []int64 // kept sorted: bids descending, asks ascending
	heap   heap.Interface
	peek   func() int64
}

// Book holds both sides of one instrument's resting liquidity.
type Book struct {
	bids      sideBook
	asks      sideBook
	bidHeap   maxPriceHeap
	askHeap   minPriceHeap
	byHandle  map[arena.Handle]bookLoc
}

type bookLoc struct {
	side  Side
	price int64
}

func New() *Book {
	b := &Book{
		bidHeap:  maxPriceHeap{},
		askHeap:  minPriceHeap{},
		byHandle: make(map[arena.Handle]bookLoc),
	}
	b.bids = sideBook{levels: make(map[int64]*level), heap: &b.bidHeap, peek: func() int64 { return b.bidHeap.Peek() }}
	b.asks = sideBook{levels: make(map[int64]*level), heap: &b.askHeap, peek: func() int64 { return b.askHeap.Peek() }}
	heap.Init(&b.bidHeap)
	heap.Init(&b.askHeap)
	return b
}

func (b *Book) sideOf(s Side) *sideBook {
	if s == Buy {
		return &b.bids
	}
	return &b.asks
}

func (sb *sideBook) insertSorted(price int64, ascending bool) {
	i := sort.Search(len(sb.prices), func(i int) bool {
		if ascending {
			return sb.prices[i] >= price
		}
		return sb.prices[i] <= price
	})
	sb.prices = append(sb.prices, 0)
	copy(sb.prices[i+1:], sb.prices[i:])
	sb.prices[i] = price
}

func (sb *sideBook) removeSorted(price int64) {
	for i, p := range sb.prices {
		if p == price {
			sb.prices = append(sb.prices[:i], sb.prices[i+1:]...)
			return
		}
	}
}

// Insert places a resting order handle at the tail of its price level,
// creating the level if this is the first order at that price.
func (b *Book) Insert(side Side, price int64, h arena.Handle) {
	sb := b.sideOf(side)
	lv, ok := sb.levels[price]
	if !ok {
		lv = &level{price: price}
		sb.levels[price] = lv
		if side == Buy {
			heap.Push(&b.bidHeap, price)
			sb.insertSorted(price, false)
		} else {
			heap.Push(&b.askHeap, price)
			sb.insertSorted(price, true)
		}
	}
	lv.handles = append(lv.handles, h)
	b.byHandle[h] = bookLoc{side: side, price: price}
}

// Remove takes a specific order out of the book regardless of its
// position in the level (used by CancelOrder, and by Commit when a
// maker order's qty_remaining reaches zero mid-level).
func (b *Book) Remove(h arena.Handle) bool {
	loc, ok := b.byHandle[h]
	if !ok {
		return false
	}
	sb := b.sideOf(loc.side)
	lv := sb.levels[loc.price]
	for i, hh := range lv.handles {
		if hh == h {
			lv.handles = append(lv.handles[:i], lv.handles[i+1:]...)
			break
		}
	}
	delete(b.byHandle, h)
	if len(lv.handles) == 0 {
		delete(sb.levels, loc.price)
		sb.removeSorted(loc.price)
		b.removeFromHeap(loc.side, loc.price)
	}
	return true
}

func (b *Book) removeFromHeap(side Side, price int64) {
	if side == Buy {
		for i := 0; i < b.bidHeap.Len(); i++ {
			if b.bidHeap[i] == price {
				heap.Remove(&b.bidHeap, i)
				return
			}
		}
	} else {
		for i := 0; i < b.askHeap.Len(); i++ {
			if b.askHeap[i] == price {
				heap.Remove(&b.askHeap, i)
				return
			}
		}
	}
}

// Best returns the best (highest bid / lowest ask) price on a side.
func (b *Book) Best(side Side) (int64, bool) {
	sb := b.sideOf(side)
	if sb.heap.Len() == 0 {
		return 0, false
	}
	return sb.peek(), true
}

// Front returns the oldest (next-to-match) order handle resting at
// price on the given side.
func (b *Book) Front(side Side, price int64) (arena.Handle, bool) {
	sb := b.sideOf(side)
	lv, ok := sb.levels[price]
	if !ok || len(lv.handles) == 0 {
		return arena.Handle{}, false
	}
	return lv.handles[0], true
}

// Walk visits price levels on side in favorable-to-the-resting-side
// order (bids descending, asks ascending) up to and including
// limitPrice, calling visit once per resting handle in arrival order
// within each level. visit returns stop=true to end the walk early
// (e.g. once the taker quantity is exhausted).
func (b *Book) Walk(side Side, limitPrice int64, visit func(price int64, h arena.Handle) (stop bool)) {
	sb := b.sideOf(side)
	for _, price := range sb.prices {
		if side == Buy && price < limitPrice {
			break
		}
		if side == Sell && price > limitPrice {
			break
		}
		lv := sb.levels[price]
		if lv == nil {
			continue
		}
		// Copy the handle list: visit may trigger Remove on this very
		// level (a maker order fully reserved/consumed), which would
		// otherwise mutate the slice out from under this range.
		handles := append([]arena.Handle(nil), lv.handles...)
		for _, h := range handles {
			if visit(price, h) {
				return
			}
		}
	}
}

// Monotone reports whether the side's price index obeys strict
// monotonicity (I3): bids strictly descending, asks strictly
// ascending. Used only by invariant-checking tests; the insert/remove
// paths maintain this by construction.
func (b *Book) Monotone(side Side) bool {
	sb := b.sideOf(side)
	for i := 1; i < len(sb.prices); i++ {
		if side == Buy && sb.prices[i] >= sb.prices[i-1] {
			return false
		}
		if side == Sell && sb.prices[i] <= sb.prices[i-1] {
			return false
		}
	}
	return true
}

// Levels returns the side's occupied prices in book order, for
// observability and tests.
func (b *Book) Levels(side Side) []int64 {
	sb := b.sideOf(side)
	out := make([]int64, len(sb.prices))
	copy(out, sb.prices)
	return out
}
