package slab

import (
	"github.com/slabdex/slabdex/pkg/arena"
	"github.com/slabdex/slabdex/pkg/capability"
	"github.com/slabdex/slabdex/pkg/market"
	"github.com/slabdex/slabdex/pkg/wire"
)

// Fill is one maker/taker match produced by Commit.
type Fill struct {
	MakerOrderID uint64
	Price        int64
	Qty          int64
}

// CommitResult is what Commit returns (§4.3's Commit step 6).
type CommitResult struct {
	Fills      []Fill
	TotalQty   int64
	VWAP       int64
	TotalFee   int64
	TotalDebit int64
}

// Debiter is the escrow side of the debit: §4.6's debit(cap, amount),
// enforcing scope, nonce, and balance on top of the cap's own checks.
// The router passes its escrow here so the capability burn and the
// escrow movement are one event; a nil Debiter (single-slab tests,
// direct invocation) debits the capability alone.
type Debiter interface {
	Debit(cap *capability.Cap, callingSlab [32]byte, amount, nowTS int64) error
}

// Commit implements §4.3's phase-two consumption of a Reservation:
// authorizes and executes the debit against cap (via the escrow when
// one is supplied), walks the slice chain applying fills/PnL/funding,
// updates instrument mark/OI/epoch, applies the ARG tax if applicable,
// and frees the reservation and its slices.
//
// No partial state is ever left visible on failure: the final charge
// is computed from the slice chain read-only, the debit is the first
// mutation, and only after it succeeds are fills applied. The one
// mutating failure mode left (an arena invariant breaking mid-walk)
// halts the slab rather than publish a half-applied commit.
func (s *Slab) Commit(holdID uint64, cap *capability.Cap, esc Debiter, slabID, mint [32]byte, nowMs int64) (*CommitResult, error) {
	if s.Halted() {
		return nil, wire.New(wire.Halted, "slab is frozen")
	}
	s.sweepExpired(nowMs, expirySweepBatch)

	holdHandle, hold, err := s.findOpenReservation(holdID)
	if err != nil {
		return nil, err
	}
	if hold.State != Open {
		return nil, wire.New(wire.AlreadyCommitted, "reservation not open")
	}
	if s.expireIfDue(holdHandle, hold, nowMs) {
		return nil, wire.New(wire.Expired, "reservation expired")
	}

	var userID [32]byte
	accountID(hold.AccountIdx, &userID)
	if err := cap.Authorize(userID, slabID, mint, hold.MaxCharge, nowMs); err != nil {
		return nil, wire.New(wire.BadCapability, err.Error())
	}

	inst, err := s.instrument(hold.InstrumentIdx)
	if err != nil {
		return nil, err
	}

	// First pass, read-only: total quantity and notional off the slice
	// chain, so the final charge is known before anything mutates.
	var totalQty int64
	var totalNotional int64
	sliceCount := 0
	for cur := hold.FirstSlice; !cur.IsNil(); {
		sl, serr := s.Slices.Get(cur)
		if serr != nil {
			s.Halt()
			return nil, wire.New(wire.InvariantViolation, "dangling slice handle")
		}
		totalQty += sl.Qty
		totalNotional += sl.Qty * sl.Price
		sliceCount++
		cur = sl.Next
	}

	epoch := currentEpoch(nowMs, inst)
	// totalNotional stays raw (qty × price) for VWAP and mark; fees and
	// the debit are in cash scale.
	cashNotional := totalNotional / market.Scale
	fee := inst.Market.FeeCeiling(cashNotional)
	var argTax int64
	if s.argRoundtrip(hold.AccountIdx, hold.InstrumentIdx, epoch, hold.Side) {
		argTax = market.Fee(cashNotional, inst.Market.ArgTaxBps)
	}
	totalDebit := cashNotional + fee + argTax
	if totalDebit > cap.Remaining {
		// Reservation's max_charge ceiling already bounded notional+fee
		// in Reserve; landing here means the cap was minted for less
		// than the reservation's ceiling plus tax — hard-fail rather
		// than silently truncate the debit.
		return nil, wire.New(wire.CapExhausted, "final charge exceeds capability remaining")
	}

	// The debit is the first mutation. Everything before this point is
	// a pure read; everything after it cannot fail short of an arena
	// invariant violation, which halts.
	if esc != nil {
		if derr := esc.Debit(cap, slabID, totalDebit, nowMs); derr != nil {
			return nil, derr
		}
	} else if derr := cap.Debit(totalDebit); derr != nil {
		return nil, wire.New(wire.CapExhausted, derr.Error())
	}

	fills := make([]Fill, 0, sliceCount)
	for cur := hold.FirstSlice; !cur.IsNil(); {
		sl := s.Slices.MustGet(cur)
		maker, merr := s.Orders.Get(sl.MakerOrderIdx)
		if merr != nil {
			s.Halt()
			return nil, wire.New(wire.InvariantViolation, "dangling maker order handle")
		}

		maker.QtyRemaining -= sl.Qty
		maker.QtyReserved -= sl.Qty
		if maker.QtyRemaining < 0 || maker.QtyReserved < 0 {
			s.Halt()
			return nil, wire.New(wire.InvariantViolation, "qty_reserved drift")
		}
		// Filled size stops needing order margin — the position-side IM
		// takes over via the maker's position from here.
		if maker.QtyRemaining == 0 {
			s.releaseOrderMargin(maker, maker.IMLocked)
		} else {
			s.releaseOrderMargin(maker, maker.IMLocked*sl.Qty/(maker.QtyRemaining+sl.Qty))
		}
		// Capture before a full fill frees (and zeroes) the slot.
		makerID, makerAcct := maker.ID, maker.AccountIdx
		if maker.QtyRemaining == 0 {
			maker.State = OrderFilled
			inst.Book.Remove(sl.MakerOrderIdx)
			delete(s.orderIndex, makerID)
			_ = s.Orders.Free(sl.MakerOrderIdx)
		}

		s.applyFill(hold.AccountIdx, makerAcct, hold.InstrumentIdx, inst, hold.Side, sl.Price, sl.Qty, nowMs)
		s.recordTrade(TradeRecord{
			TS:            nowMs,
			InstrumentIdx: hold.InstrumentIdx,
			Side:          hold.Side,
			Price:         sl.Price,
			Qty:           sl.Qty,
			MakerOrder:    sl.MakerOrderIdx,
			TakerAccount:  hold.AccountIdx,
		})

		fills = append(fills, Fill{MakerOrderID: makerID, Price: sl.Price, Qty: sl.Qty})

		next := sl.Next
		_ = s.Slices.Free(cur)
		cur = next
	}

	if totalQty > 0 {
		inst.MarkPrice = clampMark(totalNotional/totalQty, inst.IndexPrice, inst.Market.MarkBoundBps)
		inst.OpenInterest += totalQty
	}
	if epoch != inst.BatchEpoch {
		inst.BatchEpoch = epoch
	}
	if argTax > 0 {
		s.InsuranceFund += argTax
	}
	s.recordArgFill(hold.AccountIdx, hold.InstrumentIdx, epoch, hold.Side)

	hold.State = Committed
	delete(s.holdIndex, holdID)
	_ = s.Reservations.Free(holdHandle)

	var vwap int64
	if totalQty > 0 {
		vwap = totalNotional / totalQty
	}
	return &CommitResult{
		Fills:      fills,
		TotalQty:   totalQty,
		VWAP:       vwap,
		TotalFee:   fee,
		TotalDebit: totalDebit,
	}, nil
}

// applyFill updates taker and maker positions for one slice: PnL
// recompute on the side adding to a position, realized-PnL
// accumulation on the side reducing one, and funding accrual on both
// touched positions (§4.3 step 3, §4.5).
func (s *Slab) applyFill(taker, maker AccountIdx, instrument uint16, inst *Instrument, takerSide Side, price, qty, nowMs int64) {
	s.touchPosition(taker, instrument, inst, takerSide, price, qty)
	s.touchPosition(maker, instrument, inst, takerSide.Opposite(), price, qty)
}

// touchPosition applies one side of a fill to account's position:
// accrues funding since the last snapshot, then either grows the
// position (recomputing avg_entry_price) or reduces/flips it
// (accumulating realized PnL), per §4.5.
func (s *Slab) touchPosition(acct AccountIdx, instrument uint16, inst *Instrument, side Side, price, qty int64) {
	h, pos, err := s.getPosition(acct, instrument)
	if err != nil {
		s.Halt()
		return
	}
	s.accrueFunding(pos, inst)

	signedQty := qty
	if side == Sell {
		signedQty = -qty
	}

	switch {
	case pos.NetQty == 0 || sameSign(pos.NetQty, signedQty):
		// Growing (or opening) a position: blend entry price.
		totalQty := abs64(pos.NetQty) + abs64(signedQty)
		if totalQty > 0 {
			pos.AvgEntryPrice = (abs64(pos.NetQty)*pos.AvgEntryPrice + abs64(signedQty)*price) / totalQty
		}
		pos.NetQty += signedQty
	default:
		// Reducing or flipping: realize PnL on the portion closed
		// against the existing entry price.
		closingQty := abs64(signedQty)
		if closingQty > abs64(pos.NetQty) {
			closingQty = abs64(pos.NetQty)
		}
		direction := int64(1)
		if pos.NetQty < 0 {
			direction = -1
		}
		pos.RealizedPnL += direction * closingQty * (price - pos.AvgEntryPrice) / market.Scale
		pos.NetQty += signedQty
		if sameSign(pos.NetQty, signedQty) && abs64(signedQty) > closingQty {
			// Flipped through flat: the remainder opens a new position
			// at the fill price.
			pos.AvgEntryPrice = price
		}
		if pos.NetQty == 0 {
			pos.AvgEntryPrice = 0
		}
	}

	s.closeFlatPositionIfEmpty(acct, instrument, h, pos)
}

func sameSign(a, b int64) bool { return (a >= 0) == (b >= 0) }

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// clampMark bounds the candidate mark price to within mark_bound_bps
// of the index price (§4.3 step 4). A zero index price means the
// oracle hasn't seeded yet; the candidate passes through unclamped.
func clampMark(candidate, index, markBoundBps int64) int64 {
	if index == 0 || markBoundBps <= 0 {
		return candidate
	}
	bound := (index * markBoundBps) / 10_000
	if candidate > index+bound {
		return index + bound
	}
	if candidate < index-bound {
		return index - bound
	}
	return candidate
}

func (s *Slab) findOpenReservation(holdID uint64) (arena.Handle, *Reservation, error) {
	h, ok := s.holdIndex[holdID]
	if !ok {
		return arena.Handle{}, nil, wire.New(wire.InvalidArgument, "unknown hold_id")
	}
	res, err := s.Reservations.Get(h)
	if err != nil {
		delete(s.holdIndex, holdID)
		return arena.Handle{}, nil, wire.New(wire.InvalidArgument, "unknown hold_id")
	}
	return h, res, nil
}

func (s *Slab) freeSliceChain(first arena.Handle) {
	for cur := first; !cur.IsNil(); {
		sl, err := s.Slices.Get(cur)
		if err != nil {
			return
		}
		if maker, merr := s.Orders.Get(sl.MakerOrderIdx); merr == nil {
			maker.QtyReserved -= sl.Qty
		}
		next := sl.Next
		_ = s.Slices.Free(cur)
		cur = next
	}
}

// accountID derives the 32-byte identifier a capability's scope_user
// is checked against from an in-arena AccountIdx. Real deployments
// address accounts by a host-chain-assigned 32-byte id directly; this
// in-memory engine keeps a dense AccountIdx for arena locality and
// widens it on the capability boundary the same way a real
// implementation would carry both forms.
// AccountID is the exported form used by the router when minting a
// capability whose scope_user must match what Commit derives.
func AccountID(idx AccountIdx) [32]byte {
	var out [32]byte
	accountID(idx, &out)
	return out
}

// PrecheckCommit runs every Commit precondition — hold open and
// unexpired, capability authorized for the hold's full charge ceiling —
// without mutating anything. The router's multi-slab commit uses this
// as its pre-check barrier (§4.3's all-or-nothing note): every leg is
// prechecked before any leg is committed, so a doomed route never
// publishes a partial fill.
func (s *Slab) PrecheckCommit(holdID uint64, cap *capability.Cap, slabID, mint [32]byte, nowMs int64) error {
	if s.Halted() {
		return wire.New(wire.Halted, "slab is frozen")
	}
	_, hold, err := s.findOpenReservation(holdID)
	if err != nil {
		return err
	}
	if hold.State != Open {
		return wire.New(wire.AlreadyCommitted, "reservation not open")
	}
	if nowMs >= hold.ExpiryMs {
		return wire.New(wire.Expired, "reservation expired")
	}
	var userID [32]byte
	accountID(hold.AccountIdx, &userID)
	if err := cap.Authorize(userID, slabID, mint, hold.MaxCharge, nowMs); err != nil {
		return wire.New(wire.BadCapability, err.Error())
	}
	return nil
}

func accountID(idx AccountIdx, out *[32]byte) {
	*out = [32]byte{}
	out[28] = byte(idx >> 24)
	out[29] = byte(idx >> 16)
	out[30] = byte(idx >> 8)
	out[31] = byte(idx)
}
