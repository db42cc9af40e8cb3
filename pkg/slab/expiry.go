package slab

import (
	"github.com/slabdex/slabdex/pkg/arena"
	"github.com/slabdex/slabdex/pkg/wire"
)

// CancelHold is the symmetric unwind of Reserve (§4.3): each maker's
// qty_reserved is decremented by its slice's quantity, the slice chain
// and the reservation slot are freed. Idempotent for holds already in
// a terminal state — a Cancel racing an expiry sweep (or a repeated
// Cancel) returns Ok rather than an error, per the round-trip laws.
func (s *Slab) CancelHold(holdID uint64, acct AccountIdx, nowMs int64) error {
	if s.Halted() {
		return wire.New(wire.Halted, "slab is frozen")
	}
	s.sweepExpired(nowMs, expirySweepBatch)

	h, ok := s.holdIndex[holdID]
	if !ok {
		// Already reclaimed (canceled, committed, or expired and swept).
		return nil
	}
	hold, err := s.Reservations.Get(h)
	if err != nil {
		delete(s.holdIndex, holdID)
		return nil
	}
	if hold.State != Open {
		return nil
	}
	if hold.AccountIdx != acct {
		return wire.New(wire.Unauthorized, "hold is owned by another account")
	}

	hold.State = Canceled
	s.freeSliceChain(hold.FirstSlice)
	delete(s.holdIndex, holdID)
	_ = s.Reservations.Free(h)
	return nil
}

// sweepExpired lazily reclaims at most k expired reservations, scanning
// the reservation arena round-robin from a persistent cursor. Every
// entry point calls this, which bounds the per-call work: a call stops
// after freeing k slots or after scanning every slot once, per §4.3's
// expiry-sweep contract.
func (s *Slab) sweepExpired(nowMs int64, k int) {
	capn := s.Reservations.Cap()
	if capn == 0 || s.Reservations.Len() == 0 {
		return
	}
	freed := 0
	// Scan at most one full pass; stop early once k slots are reclaimed.
	for scanned := 0; scanned < capn && freed < k; scanned++ {
		idx := uint32(int(s.expiryCursor) % capn)
		s.expiryCursor = int32((int(s.expiryCursor) + 1) % capn)
		h, hold, ok := s.Reservations.At(idx)
		if !ok {
			continue
		}
		if hold.State != Open || nowMs < hold.ExpiryMs {
			continue
		}
		hold.State = Expired
		s.freeSliceChain(hold.FirstSlice)
		delete(s.holdIndex, hold.HoldID)
		_ = s.Reservations.Free(h)
		freed++
	}
}

// expireIfDue moves an Open hold to Expired in place if its deadline
// has passed, freeing its claims. Returns true if the hold is now
// terminal. Used by Commit so a hold that outlived its TTL fails with
// Expired even before the round-robin sweep reaches it.
func (s *Slab) expireIfDue(h arena.Handle, hold *Reservation, nowMs int64) bool {
	if hold.State != Open {
		return true
	}
	if nowMs < hold.ExpiryMs {
		return false
	}
	hold.State = Expired
	s.freeSliceChain(hold.FirstSlice)
	delete(s.holdIndex, hold.HoldID)
	_ = s.Reservations.Free(h)
	return true
}
