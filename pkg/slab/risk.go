package slab

import (
	"go.uber.org/zap"

	"github.com/slabdex/slabdex/pkg/arena"
	"github.com/slabdex/slabdex/pkg/market"
	"github.com/slabdex/slabdex/pkg/wire"
)

// Equity returns cash + unrealized PnL + realized PnL across the
// account's open positions (§4.5). Funding accrued since each
// position's last snapshot is included without mutating the snapshot —
// Equity is a pure read.
func (s *Slab) Equity(acct AccountIdx) int64 {
	eq := s.cash[acct]
	s.Positions.Each(func(_ arena.Handle, p *Position) {
		if p.AccountIdx != acct {
			return
		}
		inst := s.Instruments[p.InstrumentIdx]
		if inst == nil {
			return
		}
		eq += p.RealizedPnL
		eq += (inst.MarkPrice - p.AvgEntryPrice) * p.NetQty / market.Scale
		delta := inst.CumFunding - p.LastFundingSnapshot
		eq -= (delta * p.NetQty) / market.Scale
	})
	return eq
}

// InitialMarginTotal sums IMR_bps × |net_qty| × mark over the account's
// positions.
func (s *Slab) InitialMarginTotal(acct AccountIdx) int64 {
	return s.marginTotal(acct, func(m *market.Market, qty, mark int64) int64 {
		return m.RequiredInitialMargin(qty, mark)
	})
}

// MaintenanceMarginTotal is the MM analogue of InitialMarginTotal; the
// liquidation trigger compares equity against this.
func (s *Slab) MaintenanceMarginTotal(acct AccountIdx) int64 {
	return s.marginTotal(acct, func(m *market.Market, qty, mark int64) int64 {
		return m.RequiredMaintenanceMargin(qty, mark)
	})
}

func (s *Slab) marginTotal(acct AccountIdx, f func(m *market.Market, qty, mark int64) int64) int64 {
	var total int64
	s.Positions.Each(func(_ arena.Handle, p *Position) {
		if p.AccountIdx != acct {
			return
		}
		inst := s.Instruments[p.InstrumentIdx]
		if inst == nil {
			return
		}
		total += f(&inst.Market, p.NetQty, inst.MarkPrice)
	})
	return total
}

// FreeCollateral is equity minus total initial margin, floored at the
// margin side (free_collateral = equity - max(im_total, 0)), further
// reduced by margin locked behind resting orders.
func (s *Slab) FreeCollateral(acct AccountIdx) int64 {
	im := s.InitialMarginTotal(acct)
	if im < 0 {
		im = 0
	}
	return s.Equity(acct) - im - s.orderIM[acct]
}

// Liquidatable reports whether the account's equity has fallen below
// its maintenance margin.
func (s *Slab) Liquidatable(acct AccountIdx) bool {
	return s.Equity(acct) < s.MaintenanceMarginTotal(acct)
}

// LiquidationResult reports what a Liquidate call closed.
type LiquidationResult struct {
	InstrumentIdx uint16
	ClosedQty     int64
	LiqPrice      int64
	Penalty       int64
}

// Liquidate is the permissionless liquidation entry point (§4.5):
// callable by anyone once equity < MM. It closes up to qty of the
// target's largest adverse exposure at mark × (1 ± liq_penalty_bps) —
// the penalty-shifted side always favors the liquidator — transfers
// the closed quantity onto the liquidator's book at that price, and
// routes the penalty notional to the insurance fund out of the
// target's cash.
func (s *Slab) Liquidate(liquidator, target AccountIdx, qty, nowMs int64) (*LiquidationResult, error) {
	if s.Halted() {
		return nil, wire.New(wire.Halted, "slab is frozen")
	}
	s.sweepExpired(nowMs, expirySweepBatch)
	if qty <= 0 {
		return nil, wire.New(wire.InvalidArgument, "qty must be positive")
	}
	if !s.Liquidatable(target) {
		return nil, wire.New(wire.InvalidArgument, "account is not below maintenance margin")
	}

	// Priority: largest adverse exposure first — the position whose
	// mark notional is biggest.
	var worst *Position
	s.Positions.Each(func(_ arena.Handle, p *Position) {
		if p.AccountIdx != target || p.NetQty == 0 {
			return
		}
		inst := s.Instruments[p.InstrumentIdx]
		if inst == nil {
			return
		}
		if worst == nil || notionalAbs(worst, s.Instruments[worst.InstrumentIdx]) < notionalAbs(p, inst) {
			worst = p
		}
	})
	if worst == nil {
		return nil, wire.New(wire.InvalidArgument, "account has no open position")
	}

	inst := s.Instruments[worst.InstrumentIdx]
	instrumentIdx := worst.InstrumentIdx

	closeQty := qty
	if closeQty > abs64(worst.NetQty) {
		closeQty = abs64(worst.NetQty)
	}

	// Liquidation price: mark shifted liq_penalty_bps against the
	// position being closed. Closing a long sells below mark; closing a
	// short buys above it.
	shift := (inst.MarkPrice * inst.Market.LiqPenaltyBps) / 10_000
	liqPrice := inst.MarkPrice - shift
	closeSide := Sell // direction applied to the target
	if worst.NetQty < 0 {
		liqPrice = inst.MarkPrice + shift
		closeSide = Buy
	}

	penalty := (closeQty * inst.MarkPrice / market.Scale) * inst.Market.LiqPenaltyBps / 10_000

	// The target is force-closed at liqPrice; the liquidator takes the
	// other side of the same trade.
	s.touchPosition(target, instrumentIdx, inst, closeSide, liqPrice, closeQty)
	s.touchPosition(liquidator, instrumentIdx, inst, closeSide.Opposite(), liqPrice, closeQty)
	s.cash[target] -= penalty
	s.InsuranceFund += penalty

	s.recordTrade(TradeRecord{
		TS:            nowMs,
		InstrumentIdx: instrumentIdx,
		Side:          closeSide,
		Price:         liqPrice,
		Qty:           closeQty,
		TakerAccount:  liquidator,
	})

	s.log.Info("position liquidated",
		zap.Uint32("target", uint32(target)),
		zap.Uint16("instrument", instrumentIdx),
		zap.Int64("qty", closeQty),
		zap.Int64("liq_price", liqPrice),
		zap.Int64("penalty", penalty))

	return &LiquidationResult{
		InstrumentIdx: instrumentIdx,
		ClosedQty:     closeQty,
		LiqPrice:      liqPrice,
		Penalty:       penalty,
	}, nil
}

func notionalAbs(p *Position, inst *Instrument) int64 {
	if inst == nil {
		return 0
	}
	return abs64(p.NetQty) * inst.MarkPrice / market.Scale
}
