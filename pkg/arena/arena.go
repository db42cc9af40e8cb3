// Package arena implements the fixed-capacity, generation-tagged slot
// allocator every slab sub-region (orders, reservations, slices,
// positions, trade log) is built on. Capacity is chosen once at
// construction time and never grows; allocation and free are O(1) pops
// and pushes off an intrusive freelist threaded through the slot array
// itself, the same shape as the freelist CAS loop in OPA's arena
// storage backend.
package arena

import "fmt"

// ErrArenaFull is returned by Alloc when every slot is occupied.
var ErrArenaFull = fmt.Errorf("arena: full")

// ErrStaleHandle is returned by Get/Free when a handle's generation no
// longer matches the slot's current generation (the slot was freed and
// possibly reused since the handle was issued).
var ErrStaleHandle = fmt.Errorf("arena: stale handle")

// Handle addresses a slot by index plus the generation it was issued
// under. A handle dereferenced against a slot on a different
// generation is rejected, which is what makes free-then-realloc safe
// without a garbage collector watching for dangling references.
type Handle struct {
	Index      uint32
	Generation uint32
}

// Nil is the zero handle; no valid allocation ever has generation 0,
// since generations start counting from 1 on first use.
var Nil = Handle{}

func (h Handle) IsNil() bool { return h.Generation == 0 }

type slot[T any] struct {
	generation uint32
	occupied   bool
	nextFree   int32
	value      T
}

// Arena is a fixed-capacity array of generation-tagged slots holding
// values of type T. The zero value is not usable; construct with New.
type Arena[T any] struct {
	slots    []slot[T]
	freeHead int32 // -1 means the freelist is empty
	occupied int32
}

// New allocates an arena with room for exactly capacity live values.
func New[T any](capacity int) *Arena[T] {
	if capacity <= 0 {
		panic("arena: capacity must be positive")
	}
	a := &Arena[T]{
		slots:    make([]slot[T], capacity),
		freeHead: 0,
	}
	for i := range a.slots {
		a.slots[i].nextFree = int32(i + 1)
	}
	a.slots[capacity-1].nextFree = -1
	return a
}

// Cap returns the arena's fixed capacity.
func (a *Arena[T]) Cap() int { return len(a.slots) }

// Len returns the number of currently occupied slots.
func (a *Arena[T]) Len() int { return int(a.occupied) }

// Alloc pops the freelist head, bumps its generation, and returns a
// handle plus a pointer to the zero-valued payload for the caller to
// populate. Returns ErrArenaFull if every slot is occupied — this is
// the only way an arena-backed operation fails for resource exhaustion,
// and it is always recoverable once something else frees a slot.
func (a *Arena[T]) Alloc() (Handle, *T, error) {
	if a.freeHead == -1 {
		var zero Handle
		return zero, nil, ErrArenaFull
	}
	idx := a.freeHead
	s := &a.slots[idx]
	a.freeHead = s.nextFree
	s.occupied = true
	s.generation++
	var zero T
	s.value = zero
	a.occupied++
	return Handle{Index: uint32(idx), Generation: s.generation}, &s.value, nil
}

// Free returns a slot to the freelist. The handle's generation must
// match the slot's current generation or this is a no-op returning
// ErrStaleHandle — freeing twice with the same handle is caught this
// way rather than corrupting the freelist.
func (a *Arena[T]) Free(h Handle) error {
	if int(h.Index) >= len(a.slots) {
		return ErrStaleHandle
	}
	s := &a.slots[h.Index]
	if !s.occupied || s.generation != h.Generation {
		return ErrStaleHandle
	}
	s.occupied = false
	var zero T
	s.value = zero
	s.nextFree = a.freeHead
	a.freeHead = int32(h.Index)
	a.occupied--
	return nil
}

// Get returns a pointer to the live value addressed by h, or
// ErrStaleHandle if the slot is free or has moved to a later
// generation since h was issued.
func (a *Arena[T]) Get(h Handle) (*T, error) {
	if int(h.Index) >= len(a.slots) {
		return nil, ErrStaleHandle
	}
	s := &a.slots[h.Index]
	if !s.occupied || s.generation != h.Generation {
		return nil, ErrStaleHandle
	}
	return &s.value, nil
}

// MustGet is Get but panics on a stale handle; reserved for call sites
// that already own a handle they allocated in the same operation and
// cannot legitimately see it go stale mid-call (the concurrency model
// is single-threaded per slab instruction, so this only fires on a
// genuine programmer error).
func (a *Arena[T]) MustGet(h Handle) *T {
	v, err := a.Get(h)
	if err != nil {
		panic(err)
	}
	return v
}

// Valid reports whether h currently addresses a live slot.
func (a *Arena[T]) Valid(h Handle) bool {
	_, err := a.Get(h)
	return err == nil
}

// At returns the live value in slot index (with its current handle),
// or ok=false if the slot is free. This is the sweep-cursor accessor:
// callers iterating the arena by raw index (round-robin expiry sweeps)
// use it to find occupied slots without holding handles to them.
func (a *Arena[T]) At(index uint32) (Handle, *T, bool) {
	if int(index) >= len(a.slots) {
		return Handle{}, nil, false
	}
	s := &a.slots[index]
	if !s.occupied {
		return Handle{}, nil, false
	}
	return Handle{Index: index, Generation: s.generation}, &s.value, true
}

// FreelistLen walks the freelist to report its length. Used only by
// invariant checks (I7: occupancy + freelist length == capacity); the
// hot path never calls this.
func (a *Arena[T]) FreelistLen() int {
	n := 0
	for cur := a.freeHead; cur != -1; cur = a.slots[cur].nextFree {
		n++
	}
	return n
}

// Each calls fn for every occupied slot in index order. fn must not
// allocate or free slots on this arena.
func (a *Arena[T]) Each(fn func(h Handle, v *T)) {
	for i := range a.slots {
		s := &a.slots[i]
		if s.occupied {
			fn(Handle{Index: uint32(i), Generation: s.generation}, &s.value)
		}
	}
}
