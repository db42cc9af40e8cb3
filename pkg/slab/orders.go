package slab

import (
	"go.uber.org/zap"

	"github.com/slabdex/slabdex/pkg/arena"
	"github.com/slabdex/slabdex/pkg/wire"
)

// PlaceResult is what PlaceOrder returns: the assigned order id plus
// the JIT-Penalty outcome (a Regular-class order that would cross comes
// back Pending with eligibility one epoch out).
type PlaceResult struct {
	OrderID       uint64
	State         OrderState
	EligibleEpoch int64
}

// PlaceOrder validates shape and margin, applies the JIT-Penalty gate,
// and rests the order on the book (§4.4). Orders never match here —
// matching happens exclusively through Reserve/Commit; a crossing order
// in this design rests (or waits out its penalty epoch) until a taker
// reserves against it.
func (s *Slab) PlaceOrder(acct AccountIdx, instrumentIdx uint16, side Side, price, qty int64, class MakerClass, nowMs int64) (*PlaceResult, error) {
	if s.Halted() {
		return nil, wire.New(wire.Halted, "slab is frozen")
	}
	s.sweepExpired(nowMs, expirySweepBatch)
	inst, err := s.instrument(instrumentIdx)
	if err != nil {
		return nil, err
	}
	if err := inst.Market.ValidateOrderShape(price, qty); err != nil {
		return nil, wire.New(wire.InvalidArgument, err.Error())
	}

	// Margin gate: the incremental IM for this order's full quantity at
	// the higher of its limit price and the mark must fit inside the
	// account's free collateral.
	markRef := inst.MarkPrice
	if markRef == 0 {
		markRef = price
	}
	imPrice := price
	if markRef > imPrice {
		imPrice = markRef
	}
	required := inst.Market.RequiredInitialMargin(qty, imPrice)
	if required > s.FreeCollateral(acct) {
		return nil, wire.New(wire.InsufficientCollateral, "initial margin exceeds free collateral")
	}

	state, eligible := jitEligibility(inst, class, side, price, nowMs)

	h, ord, err := s.Orders.Alloc()
	if err != nil {
		return nil, wire.New(wire.ArenaFull, "order arena exhausted")
	}
	s.orderIM[acct] += required
	id := s.NextOrderID()
	*ord = Order{
		ID:            id,
		AccountIdx:    acct,
		InstrumentIdx: instrumentIdx,
		Side:          side,
		Price:         price,
		QtyOriginal:   qty,
		QtyRemaining:  qty,
		MakerClass:    class,
		State:         state,
		EligibleEpoch: eligible,
		CreatedMs:     nowMs,
		IMLocked:      required,
	}
	inst.Book.Insert(side, price, h)
	s.orderIndex[id] = h

	s.log.Debug("order placed",
		zap.Uint64("order_id", id),
		zap.Uint16("instrument", instrumentIdx),
		zap.Int64("price", price),
		zap.Int64("qty", qty),
		zap.Bool("pending", state == OrderPending))

	return &PlaceResult{OrderID: id, State: state, EligibleEpoch: eligible}, nil
}

// CancelOrder removes a resting order (§4.4). It fails while any
// reservation holds part of the order — the hold must be committed or
// canceled first, since a slice is a live claim on this exact slot.
func (s *Slab) CancelOrder(orderID uint64, acct AccountIdx, nowMs int64) error {
	if s.Halted() {
		return wire.New(wire.Halted, "slab is frozen")
	}
	s.sweepExpired(nowMs, expirySweepBatch)
	h, ord, err := s.findOrder(orderID)
	if err != nil {
		return err
	}
	if ord.AccountIdx != acct {
		return wire.New(wire.Unauthorized, "order is owned by another account")
	}
	if ord.QtyReserved > 0 {
		return wire.New(wire.InvalidArgument, "order has active reservations")
	}

	inst, err := s.instrument(ord.InstrumentIdx)
	if err != nil {
		return err
	}
	s.releaseOrderMargin(ord, ord.IMLocked)
	ord.State = OrderCanceled
	inst.Book.Remove(h)
	delete(s.orderIndex, orderID)
	_ = s.Orders.Free(h)
	return nil
}

// releaseOrderMargin unlocks part (or all) of the margin held behind a
// resting order.
func (s *Slab) releaseOrderMargin(ord *Order, amount int64) {
	if amount > ord.IMLocked {
		amount = ord.IMLocked
	}
	ord.IMLocked -= amount
	s.orderIM[ord.AccountIdx] -= amount
	if s.orderIM[ord.AccountIdx] <= 0 {
		delete(s.orderIM, ord.AccountIdx)
	}
}

// ModifyOrder is atomic {cancel, place} under a fresh order id (§4.4).
// A pure size reduction at the same price resizes in place and keeps
// the order's arrival position in its level; any price change, or a
// size increase, forfeits queue position like a brand-new order would.
// Either way the returned order id is new.
func (s *Slab) ModifyOrder(orderID uint64, acct AccountIdx, newPrice, newQty int64, nowMs int64) (*PlaceResult, error) {
	if s.Halted() {
		return nil, wire.New(wire.Halted, "slab is frozen")
	}
	s.sweepExpired(nowMs, expirySweepBatch)
	h, ord, err := s.findOrder(orderID)
	if err != nil {
		return nil, err
	}
	if ord.AccountIdx != acct {
		return nil, wire.New(wire.Unauthorized, "order is owned by another account")
	}
	if ord.QtyReserved > 0 {
		return nil, wire.New(wire.InvalidArgument, "order has active reservations")
	}
	inst, err := s.instrument(ord.InstrumentIdx)
	if err != nil {
		return nil, err
	}
	if err := inst.Market.ValidateOrderShape(newPrice, newQty); err != nil {
		return nil, wire.New(wire.InvalidArgument, err.Error())
	}

	if newPrice == ord.Price && newQty <= ord.QtyRemaining {
		// Shrinking in place: release the margin the shed size held.
		markRef := inst.MarkPrice
		if markRef < ord.Price {
			markRef = ord.Price
		}
		shed := inst.Market.RequiredInitialMargin(ord.QtyRemaining-newQty, markRef)
		s.releaseOrderMargin(ord, shed)
		delete(s.orderIndex, ord.ID)
		id := s.NextOrderID()
		ord.ID = id
		ord.QtyOriginal = newQty
		ord.QtyRemaining = newQty
		s.orderIndex[id] = h
		return &PlaceResult{OrderID: id, State: ord.State, EligibleEpoch: ord.EligibleEpoch}, nil
	}

	// Check the replacement's margin before touching the original, with
	// the original's locked margin counted as free, so a refused place
	// leaves the original resting.
	imPrice := newPrice
	if inst.MarkPrice > imPrice {
		imPrice = inst.MarkPrice
	}
	if inst.Market.RequiredInitialMargin(newQty, imPrice) > s.FreeCollateral(acct)+ord.IMLocked {
		return nil, wire.New(wire.InsufficientCollateral, "initial margin exceeds free collateral")
	}

	// Capture before Free zeroes the slot.
	side, class, instrumentIdx := ord.Side, ord.MakerClass, ord.InstrumentIdx
	s.releaseOrderMargin(ord, ord.IMLocked)
	ord.State = OrderCanceled
	inst.Book.Remove(h)
	delete(s.orderIndex, orderID)
	_ = s.Orders.Free(h)

	return s.PlaceOrder(acct, instrumentIdx, side, newPrice, newQty, class, nowMs)
}

func (s *Slab) findOrder(orderID uint64) (arena.Handle, *Order, error) {
	hh, ok := s.orderIndex[orderID]
	if !ok {
		return arena.Handle{}, nil, wire.New(wire.InvalidArgument, "unknown order_id")
	}
	o, err := s.Orders.Get(hh)
	if err != nil {
		delete(s.orderIndex, orderID)
		return arena.Handle{}, nil, wire.New(wire.StaleHandle, "order handle is stale")
	}
	return hh, o, nil
}
