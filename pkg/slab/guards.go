package slab

import (
	"github.com/slabdex/slabdex/pkg/wire"
)

// currentEpoch buckets a wall-clock millisecond timestamp into the
// instrument's batch epoch, the discrete window JIT Penalty and ARG
// both key off.
func currentEpoch(nowMs int64, inst *Instrument) int64 {
	if inst.Market.BatchMs <= 0 {
		return 0
	}
	return nowMs / inst.Market.BatchMs
}

// checkKillBand enforces |mark_price - index_price| / index_price <=
// kill_band_bps. An index price of zero (oracle not yet seeded) is
// treated as "no band to check" rather than a division fault.
func checkKillBand(inst *Instrument) error {
	if inst.IndexPrice == 0 {
		return nil
	}
	diff := inst.MarkPrice - inst.IndexPrice
	if diff < 0 {
		diff = -diff
	}
	// bps = diff * 10_000 / index; compare against kill_band_bps without
	// an intermediate float.
	bps := (diff * 10_000) / inst.IndexPrice
	if bps > inst.Market.KillBandBps {
		return wire.New(wire.KillBandBreached, "mark/index divergence exceeds kill band")
	}
	return nil
}

// wouldCross reports whether a limit order at (side, price) is
// immediately eligible to trade against the current opposing best —
// the condition that triggers JIT Penalty for Regular-class makers.
func wouldCross(inst *Instrument, side Side, price int64) bool {
	best, ok := inst.Book.Best(side.Opposite())
	if !ok {
		return false
	}
	if side == Buy {
		return price >= best
	}
	return price <= best
}

// jitEligibility decides an incoming order's initial state and
// eligible_epoch. DLP-class orders are always immediately Live. A
// Regular-class order that would cross the book on arrival is deferred
// one epoch (Pending) so it cannot earn instant maker priority against
// liquidity it could have taken as a taker.
func jitEligibility(inst *Instrument, class MakerClass, side Side, price int64, nowMs int64) (OrderState, int64) {
	epoch := currentEpoch(nowMs, inst)
	if class == DLP {
		return OrderLive, epoch
	}
	if wouldCross(inst, side, price) {
		return OrderPending, epoch + 1
	}
	return OrderLive, epoch
}

// argRoundtrip reports whether a fill by account on instrument at
// (epoch, side) completes an Aggressor-Roundtrip-Guard round trip: a
// prior fill in the same epoch on the opposite side. Pure read —
// Commit records the fill separately once it is certain to publish.
func (s *Slab) argRoundtrip(acct AccountIdx, instrument uint16, epoch int64, side Side) bool {
	prev, had := s.argLast[argKey{acct, instrument}]
	return had && prev.epoch == epoch && prev.side != side
}

// recordArgFill stores the fill ARG will check future commits against.
func (s *Slab) recordArgFill(acct AccountIdx, instrument uint16, epoch int64, side Side) {
	s.argLast[argKey{acct, instrument}] = argEntry{epoch: epoch, side: side}
}

// checkReserveRate counts a Reserve attempt against the per-account
// per-epoch budget, failing once it is spent. The counter resets
// itself on epoch rollover, so there is nothing to sweep.
func (s *Slab) checkReserveRate(acct AccountIdx, instrument uint16, epoch int64) error {
	key := argKey{acct, instrument}
	e := s.reserveRate[key]
	if e.epoch != epoch {
		e = rateEntry{epoch: epoch}
	}
	if e.count >= ReserveRateLimit {
		return wire.New(wire.RateLimited, "reserve rate limit for this epoch spent")
	}
	e.count++
	s.reserveRate[key] = e
	return nil
}
