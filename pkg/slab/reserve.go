package slab

import (
	"github.com/holiman/uint256"

	"github.com/slabdex/slabdex/pkg/arena"
	"github.com/slabdex/slabdex/pkg/market"
	"github.com/slabdex/slabdex/pkg/wire"
)

// TTLMaxDefaultMs is the default ceiling on ttl_ms a Reserve accepts (§4.3.2);
// an instrument's own Market.TTLMaxMs takes precedence when set.
const TTLMaxDefaultMs = 120_000

// ReserveResult is what Reserve returns to the caller (§4.3.7).
type ReserveResult struct {
	HoldID     uint64
	VWAPPrice  int64
	WorstPrice int64
	MaxCharge  int64
	FilledQty  int64
	ExpiryMs   int64
}

// Reserve implements §4.3's phase-one walk: lock specific maker
// liquidity at known prices into a Reservation, without touching any
// collateral or position state (that happens in Commit). Reserve
// mutates a maker order only through qty_reserved and the lazy
// Pending-to-Live promotion in its walk, and never removes it from the
// book — a reservation is a claim, not a fill.
func (s *Slab) Reserve(acct AccountIdx, instrumentIdx uint16, side Side, qty, limitPrice, ttlMs int64, tif TIF, commitmentHash [32]byte, routeID uint64, nowMs int64) (*ReserveResult, error) {
	if s.Halted() {
		return nil, wire.New(wire.Halted, "slab is frozen")
	}
	s.sweepExpired(nowMs, expirySweepBatch)
	inst, err := s.instrument(instrumentIdx)
	if err != nil {
		return nil, err
	}

	if err := inst.Market.ValidateOrderShape(limitPrice, qty); err != nil {
		return nil, wire.New(wire.InvalidArgument, err.Error())
	}
	ttlCeiling := inst.Market.TTLMaxMs
	if ttlCeiling <= 0 {
		ttlCeiling = TTLMaxDefaultMs
	}
	if ttlMs <= 0 || ttlMs > ttlCeiling {
		return nil, wire.New(wire.InvalidArgument, "ttl_ms out of range")
	}

	if err := checkKillBand(inst); err != nil {
		return nil, err
	}
	if err := s.checkReserveRate(acct, instrumentIdx, currentEpoch(nowMs, inst)); err != nil {
		return nil, err
	}

	var claims []reserveClaim
	remaining := qty
	var notional int64
	var worst int64
	haveWorst := false

	inst.Book.Walk(side.Opposite(), limitPrice, func(price int64, h arena.Handle) bool {
		if remaining <= 0 {
			return true
		}
		maker, err := s.Orders.Get(h)
		if err != nil {
			return false
		}
		// JIT Penalty: a Pending order becomes matchable once its epoch
		// begins; promotion happens lazily right here, on the first walk
		// that reaches it in an eligible epoch.
		if maker.State == OrderPending && currentEpoch(nowMs, inst) >= maker.EligibleEpoch {
			maker.State = OrderLive
		}
		if maker.State != OrderLive {
			return false
		}
		available := maker.QtyRemaining - maker.QtyReserved
		if available <= 0 {
			return false
		}
		take := available
		if take > remaining {
			take = remaining
		}
		claims = append(claims, reserveClaim{makerHandle: h, take: take, price: price})
		notional += take * price
		remaining -= take
		if !haveWorst || isWorse(side, price, worst) {
			worst = price
			haveWorst = true
		}
		return false
	})

	filled := qty - remaining
	if filled == 0 {
		if tif == FillOrKill && qty > 0 {
			return nil, wire.New(wire.InsufficientLiquidity, "no liquidity available")
		}
	}
	if tif == FillOrKill && remaining > 0 {
		return nil, wire.New(wire.InsufficientLiquidity, "insufficient liquidity for fill-or-kill")
	}

	var vwap int64
	if filled > 0 {
		vwap = notional / filled
	}
	// notional accumulated raw (qty × price) for the exact VWAP; the
	// charge ceiling is in cash scale.
	cashNotional := notional / market.Scale
	maxCharge := cashNotional + inst.Market.FeeCeiling(cashNotional)

	holdHandle, hold, err := s.Reservations.Alloc()
	if err != nil {
		return nil, wire.New(wire.ArenaFull, "reservation arena exhausted")
	}

	var firstSlice arena.Handle
	var prevSlice *Slice
	for _, c := range claims {
		maker, merr := s.Orders.Get(c.makerHandle)
		if merr != nil {
			s.Halt()
			return nil, wire.New(wire.InvariantViolation, "maker order vanished mid-reserve")
		}
		maker.QtyReserved += c.take

		sliceHandle, sl, serr := s.Slices.Alloc()
		if serr != nil {
			s.unwindClaims(claims, c)
			maker.QtyReserved -= c.take
			for cur := firstSlice; !cur.IsNil(); {
				next := s.Slices.MustGet(cur).Next
				_ = s.Slices.Free(cur)
				cur = next
			}
			_ = s.Reservations.Free(holdHandle)
			return nil, wire.New(wire.ArenaFull, "slice arena exhausted")
		}
		sl.ReservationIdx = holdHandle
		sl.MakerOrderIdx = c.makerHandle
		sl.Qty = c.take
		sl.Price = c.price
		sl.Next = arena.Nil

		if prevSlice == nil {
			firstSlice = sliceHandle
		} else {
			prevSlice.Next = sliceHandle
		}
		prevSlice = sl
	}

	holdID := s.NextOrderID()
	*hold = Reservation{
		HoldID:         holdID,
		AccountIdx:     acct,
		InstrumentIdx:  instrumentIdx,
		Side:           side,
		TIF:            tif,
		RequestedQty:   qty,
		FilledQty:      filled,
		VWAPPrice:      vwap,
		WorstPrice:     worst,
		MaxCharge:      maxCharge,
		ExpiryMs:       nowMs + ttlMs,
		RouteID:        routeID,
		CommitmentHash: commitmentHash,
		FirstSlice:     firstSlice,
		State:          Open,
	}
	s.holdIndex[holdID] = holdHandle

	return &ReserveResult{
		HoldID:     holdID,
		VWAPPrice:  vwap,
		WorstPrice: worst,
		MaxCharge:  maxCharge,
		FilledQty:  filled,
		ExpiryMs:   hold.ExpiryMs,
	}, nil
}

// Quote prices qty against current opposing liquidity without creating
// any claim: the same walk Reserve performs, minus the slices. Returns
// the VWAP over the quantity that could fill and whether the full qty
// was available. Pending orders are not promoted here — Quote is a
// pure read.
func (s *Slab) Quote(instrumentIdx uint16, side Side, qty int64) (int64, bool) {
	inst, err := s.instrument(instrumentIdx)
	if err != nil || qty <= 0 {
		return 0, false
	}
	limit := int64(1<<62 - 1)
	if side == Sell {
		limit = 1
	}
	remaining := qty
	var notional int64
	inst.Book.Walk(side.Opposite(), limit, func(price int64, h arena.Handle) bool {
		if remaining <= 0 {
			return true
		}
		maker, merr := s.Orders.Get(h)
		if merr != nil || maker.State != OrderLive {
			return false
		}
		available := maker.QtyRemaining - maker.QtyReserved
		if available <= 0 {
			return false
		}
		take := available
		if take > remaining {
			take = remaining
		}
		notional += take * price
		remaining -= take
		return false
	})
	filled := qty - remaining
	if filled == 0 {
		return 0, false
	}
	return notional / filled, remaining == 0
}

// reserveClaim is one maker order touched by a Reserve walk, before
// it's materialized into a Slice.
type reserveClaim struct {
	makerHandle arena.Handle
	take        int64
	price       int64
}

// unwindClaims reverses qty_reserved bumps for every claim up to (and
// not including) failedAt, used when slice allocation fails partway
// through materializing a reservation — Reserve must be all-or-nothing
// even though the book walk already ran.
func (s *Slab) unwindClaims(claims []reserveClaim, failedAt reserveClaim) {
	for _, c := range claims {
		if c == failedAt {
			break
		}
		if maker, err := s.Orders.Get(c.makerHandle); err == nil {
			maker.QtyReserved -= c.take
		}
	}
}

// isWorse reports whether candidate is further from the resting side's
// natural direction than current — for a Buy walking asks ascending,
// worse means higher; for a Sell walking bids descending, worse means
// lower.
func isWorse(side Side, candidate, current int64) bool {
	if side == Buy {
		return candidate > current
	}
	return candidate < current
}

// NotionalWide computes qty*price using 128-bit intermediate
// arithmetic via uint256, for call sites that want to avoid int64
// overflow on very large fills (spec §3: "intermediate products use
// 128-bit arithmetic"). Inputs are assumed non-negative; callers apply
// sign separately.
func NotionalWide(qty, price int64) *uint256.Int {
	q := uint256.NewInt(uint64(qty))
	p := uint256.NewInt(uint64(price))
	return new(uint256.Int).Mul(q, p)
}
