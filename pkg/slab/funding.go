package slab

import (
	"go.uber.org/zap"

	"github.com/slabdex/slabdex/pkg/market"
	"github.com/slabdex/slabdex/pkg/wire"
)

// accrueFunding settles the funding accumulated since the position's
// last snapshot into realized PnL (§4.5): a long position pays (or
// receives, depending on sign) cum_funding per unit held. Called on
// every position touch so funding never needs a global sweep over all
// positions.
func (s *Slab) accrueFunding(pos *Position, inst *Instrument) {
	delta := inst.CumFunding - pos.LastFundingSnapshot
	if delta != 0 && pos.NetQty != 0 {
		// Longs pay positive funding, shorts receive it.
		pos.RealizedPnL -= (delta * pos.NetQty) / market.Scale
	}
	pos.LastFundingSnapshot = inst.CumFunding
}

// UpdateFunding is the oracle/keeper entry point (discriminator 5): it
// publishes a fresh index price, advances the cumulative funding
// accumulator by fundingDelta (per unit of position, 1e6 scale), and
// re-clamps the mark price against the new index. Mark itself still
// moves with last-trade inside Commit; this entry point only drags it
// back inside the mark band when the index has moved away from it.
func (s *Slab) UpdateFunding(instrumentIdx uint16, indexPrice, fundingDelta, nowMs int64) error {
	if s.Halted() {
		return wire.New(wire.Halted, "slab is frozen")
	}
	inst, err := s.instrument(instrumentIdx)
	if err != nil {
		return err
	}
	if indexPrice <= 0 {
		return wire.New(wire.InvalidArgument, "index price must be positive")
	}

	inst.IndexPrice = indexPrice
	inst.CumFunding += fundingDelta
	inst.LastFundingMs = nowMs
	if inst.MarkPrice == 0 {
		inst.MarkPrice = indexPrice
	} else {
		inst.MarkPrice = clampMark(inst.MarkPrice, indexPrice, inst.Market.MarkBoundBps)
	}

	s.log.Debug("funding updated",
		zap.Uint16("instrument", instrumentIdx),
		zap.Int64("index", indexPrice),
		zap.Int64("cum_funding", inst.CumFunding),
		zap.Int64("mark", inst.MarkPrice))
	return nil
}
