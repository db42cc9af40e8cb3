package slab

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/slabdex/slabdex/pkg/arena"
	"github.com/slabdex/slabdex/pkg/wire"
)

// CheckInvariants audits the structural invariants the spec requires to
// hold after every instruction: per-order reserved-quantity accounting
// (I1), per-reservation slice accounting and exact 128-bit VWAP
// identity (I2), book price monotonicity (I3), and arena occupancy
// versus freelist length (I7). It is a pure read, intended for test
// harnesses and the authority's reconciliation tooling; a production
// caller that sees an error here should Halt the slab.
func (s *Slab) CheckInvariants() error {
	// I1: for every live order, qty_reserved == Σ slice.qty over slices
	// pointing at it.
	reservedByOrder := make(map[arena.Handle]int64)
	s.Slices.Each(func(_ arena.Handle, sl *Slice) {
		reservedByOrder[sl.MakerOrderIdx] += sl.Qty
	})
	var ierr error
	s.Orders.Each(func(h arena.Handle, o *Order) {
		if ierr != nil {
			return
		}
		if o.QtyReserved != reservedByOrder[h] {
			ierr = fmt.Errorf("I1: order %d qty_reserved=%d, slice sum=%d", o.ID, o.QtyReserved, reservedByOrder[h])
		}
		if o.QtyRemaining < 0 || o.QtyReserved < 0 || o.QtyReserved > o.QtyRemaining {
			ierr = fmt.Errorf("I1: order %d quantity bounds broken (remaining=%d reserved=%d)", o.ID, o.QtyRemaining, o.QtyReserved)
		}
		delete(reservedByOrder, h)
	})
	if ierr != nil {
		return ierr
	}
	for h, qty := range reservedByOrder {
		if qty != 0 {
			return fmt.Errorf("I1: slices claim %d units on dead order handle %v", qty, h)
		}
	}

	// I2: for every live reservation, filled_qty == Σ slice.qty and
	// vwap × filled == Σ qty × price, exactly, in 128-bit arithmetic.
	err := s.eachOpenReservation(func(hold *Reservation) error {
		var sliceSum int64
		notional := new(uint256.Int)
		for cur := hold.FirstSlice; !cur.IsNil(); {
			sl, serr := s.Slices.Get(cur)
			if serr != nil {
				return fmt.Errorf("I2: hold %d has dangling slice", hold.HoldID)
			}
			sliceSum += sl.Qty
			notional.Add(notional, NotionalWide(sl.Qty, sl.Price))
			cur = sl.Next
		}
		if hold.FilledQty != sliceSum {
			return fmt.Errorf("I2: hold %d filled_qty=%d, slice sum=%d", hold.HoldID, hold.FilledQty, sliceSum)
		}
		if hold.FilledQty > 0 {
			// vwap is the floor of notional/filled, so the exact identity
			// is notional - vwap×filled ∈ [0, filled).
			prod := NotionalWide(hold.FilledQty, hold.VWAPPrice)
			if prod.Gt(notional) {
				return fmt.Errorf("I2: hold %d vwap identity broken", hold.HoldID)
			}
			rem := new(uint256.Int).Sub(notional, prod)
			if rem.CmpUint64(uint64(hold.FilledQty)) >= 0 {
				return fmt.Errorf("I2: hold %d vwap identity broken", hold.HoldID)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// I3: bid prices strictly descending, ask prices strictly ascending.
	for idx, inst := range s.Instruments {
		if inst == nil {
			continue
		}
		if !inst.Book.Monotone(Buy) || !inst.Book.Monotone(Sell) {
			return fmt.Errorf("I3: instrument %d book is not monotone", idx)
		}
	}

	// I7: occupancy + freelist length == capacity, per arena.
	for _, a := range []struct {
		name           string
		len, cap, free int
	}{
		{"orders", s.Orders.Len(), s.Orders.Cap(), s.Orders.FreelistLen()},
		{"reservations", s.Reservations.Len(), s.Reservations.Cap(), s.Reservations.FreelistLen()},
		{"slices", s.Slices.Len(), s.Slices.Cap(), s.Slices.FreelistLen()},
		{"positions", s.Positions.Len(), s.Positions.Cap(), s.Positions.FreelistLen()},
	} {
		if a.len+a.free != a.cap {
			return fmt.Errorf("I7: %s arena occupancy %d + freelist %d != capacity %d", a.name, a.len, a.free, a.cap)
		}
	}

	return nil
}

func (s *Slab) eachOpenReservation(fn func(hold *Reservation) error) error {
	var err error
	s.Reservations.Each(func(_ arena.Handle, hold *Reservation) {
		if err != nil || hold.State != Open {
			return
		}
		err = fn(hold)
	})
	return err
}

// MustHoldInvariants halts the slab (global_freeze) if any structural
// invariant is broken, per §4.9's fatal-error semantics, and returns
// the typed status a caller surfaces.
func (s *Slab) MustHoldInvariants() error {
	if err := s.CheckInvariants(); err != nil {
		s.Halt()
		return wire.New(wire.InvariantViolation, err.Error())
	}
	return nil
}
