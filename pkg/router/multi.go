package router

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/slabdex/slabdex/pkg/capability"
	"github.com/slabdex/slabdex/pkg/host"
	"github.com/slabdex/slabdex/pkg/slab"
	"github.com/slabdex/slabdex/pkg/wire"
)

// CapTTLMaxDefaultMs bounds every minted capability's lifetime: a cap
// expires at the earlier of its reservation's expiry and now plus this
// value. The instrument's Market.CapTTLMaxMs is not consulted.
const CapTTLMaxDefaultMs = 150_000

// Allocation is one leg of a multi-slab route: which matcher, what to
// reserve on it.
type Allocation struct {
	SlabID        [32]byte
	InstrumentIdx uint16
	Side          slab.Side
	Qty           int64
	LimitPrice    int64
	TTLMs         int64
	TIF           slab.TIF
}

// routeLeg is the router's record of one successful per-slab reserve.
type routeLeg struct {
	matcher    Matcher
	acct       slab.AccountIdx
	hold       *slab.ReserveResult
	cap        *capability.Cap
	side       slab.Side
	instrument uint16
}

type routeState uint8

const (
	routeOpen routeState = iota
	routeCommitted
	routeReleased
)

type route struct {
	id    uint64
	user  [32]byte
	mint  [32]byte
	legs  []routeLeg
	total int64 // Σ max_charge, the amount pledged behind the route's caps
	state routeState
}

// LegResult is the per-slab slice of a RouteResult.
type LegResult struct {
	SlabID    [32]byte
	HoldID    uint64
	FilledQty int64
	VWAPPrice int64
	MaxCharge int64
	ExpiryMs  int64
}

// RouteResult is MultiReserve's aggregate return (§4.7 step 4).
type RouteResult struct {
	RouteID      uint64
	Reservations []LegResult
	BlendedVWAP  int64
	TotalCost    int64
}

// CommitRouteResult is MultiCommit's aggregate return.
type CommitRouteResult struct {
	RouteID    uint64
	TotalQty   int64
	VWAP       int64
	TotalDebit int64
	Refunded   int64
}

// MultiReserve fans a reserve out across slabs (§4.7): each allocation
// is reserved in caller order; any failure (or an aggregate fill below
// minFill) unwinds every already-successful hold best-effort and
// rejects the whole route. On success the user's collateral is pledged
// and one capability per slab is minted, each scoped to exactly that
// slab and summing to the route's total charge ceiling.
func (r *Router) MultiReserve(user, mint [32]byte, allocs []Allocation, minFill int64) (*RouteResult, error) {
	if len(allocs) == 0 {
		return nil, wire.New(wire.InvalidArgument, "empty allocation list")
	}
	p, v, err := r.portfolioVault(user, mint)
	if err != nil {
		return nil, err
	}
	now := r.Host.Now()

	routeID := r.nextRouteID
	r.nextRouteID++
	commitment := routeCommitment(routeID, user)

	legs := make([]routeLeg, 0, len(allocs))
	unwind := func() {
		for _, leg := range legs {
			if cerr := leg.matcher.CancelHold(leg.hold.HoldID, leg.acct, now); cerr != nil {
				r.log.Warn("route unwind cancel failed",
					zap.Uint64("route_id", routeID),
					zap.Uint64("hold_id", leg.hold.HoldID),
					zap.Error(cerr))
			}
		}
	}

	var totalFilled, totalNotional, totalMax int64
	for _, a := range allocs {
		m, ok := r.matchers[a.SlabID]
		if !ok {
			unwind()
			return nil, wire.New(wire.InvalidArgument, "unknown slab in allocation")
		}
		acct, ok := r.seats[seatKey{user: user, slab: a.SlabID}]
		if !ok {
			unwind()
			return nil, wire.New(wire.Unauthorized, "no seat on target slab")
		}
		res, rerr := m.Reserve(acct, a.InstrumentIdx, a.Side, a.Qty, a.LimitPrice, a.TTLMs, a.TIF, commitment, routeID, now)
		if rerr != nil {
			unwind()
			return nil, rerr
		}
		legs = append(legs, routeLeg{matcher: m, acct: acct, hold: res, side: a.Side, instrument: a.InstrumentIdx})
		totalFilled += res.FilledQty
		totalNotional += res.VWAPPrice * res.FilledQty
		totalMax += res.MaxCharge
	}

	if totalFilled < minFill {
		unwind()
		return nil, wire.New(wire.InsufficientLiquidity, "aggregate fill below min_fill")
	}
	if totalMax > p.FreeNow() {
		unwind()
		return nil, wire.New(wire.InsufficientCollateral, "route charge ceiling exceeds free collateral")
	}
	if perr := v.pledge(totalMax); perr != nil {
		unwind()
		return nil, perr
	}
	p.Pledged += totalMax

	// Mint one cap per leg, move each leg's ceiling into its escrow.
	results := make([]LegResult, 0, len(legs))
	for i := range legs {
		leg := &legs[i]
		slabID := leg.matcher.ID()
		esc := r.escrowFor(slabID, user, mint)
		expiry := leg.hold.ExpiryMs
		if capMax := now + CapTTLMaxDefaultMs; capMax < expiry {
			expiry = capMax
		}
		leg.cap = capability.Mint(routeID, slab.AccountID(leg.acct), slabID, mint, leg.hold.MaxCharge, expiry, esc.Nonce)
		esc.Balance += leg.hold.MaxCharge
		results = append(results, LegResult{
			SlabID:    slabID,
			HoldID:    leg.hold.HoldID,
			FilledQty: leg.hold.FilledQty,
			VWAPPrice: leg.hold.VWAPPrice,
			MaxCharge: leg.hold.MaxCharge,
			ExpiryMs:  leg.hold.ExpiryMs,
		})
	}

	r.routes[routeID] = &route{id: routeID, user: user, mint: mint, legs: legs, total: totalMax, state: routeOpen}

	var blended int64
	if totalFilled > 0 {
		blended = totalNotional / totalFilled
	}
	r.log.Info("route reserved",
		zap.Uint64("route_id", routeID),
		zap.Int("legs", len(legs)),
		zap.Int64("filled", totalFilled),
		zap.Int64("total_cost", totalMax))

	return &RouteResult{
		RouteID:      routeID,
		Reservations: results,
		BlendedVWAP:  blended,
		TotalCost:    totalMax,
	}, nil
}

// MultiCommit commits every leg of a route inside one atomic scope
// (§4.7): a pre-check barrier validates every leg first, so a doomed
// route rejects before any slab publishes a fill; the host chain's
// transaction guarantee covers the residual window. Unused capability
// remaining is refunded to the portfolio, exposures are folded in, and
// the route is closed.
func (r *Router) MultiCommit(routeID uint64) (*CommitRouteResult, error) {
	rt, ok := r.routes[routeID]
	if !ok {
		return nil, wire.New(wire.InvalidArgument, "unknown route_id")
	}
	if rt.state != routeOpen {
		return nil, wire.New(wire.AlreadyCommitted, "route is closed")
	}
	p, v, err := r.portfolioVault(rt.user, rt.mint)
	if err != nil {
		return nil, err
	}
	now := r.Host.Now()

	// Pre-check barrier: every leg must be committable before any leg
	// commits.
	for i := range rt.legs {
		leg := &rt.legs[i]
		if perr := leg.matcher.PrecheckCommit(leg.hold.HoldID, leg.cap, now); perr != nil {
			return nil, perr
		}
		esc := r.escrowFor(leg.matcher.ID(), rt.user, rt.mint)
		if leg.cap.Nonce != esc.Nonce {
			return nil, wire.New(wire.BadCapability, "capability nonce superseded")
		}
	}

	var totalQty, totalNotional, totalDebit int64
	err = r.Host.Atomic(func(tx host.Tx) error {
		for i := range rt.legs {
			leg := &rt.legs[i]
			esc := r.escrowFor(leg.matcher.ID(), rt.user, rt.mint)
			res, cerr := leg.matcher.Commit(leg.hold.HoldID, leg.cap, esc, now)
			if cerr != nil {
				return cerr
			}
			signed := res.TotalQty
			if leg.side == slab.Sell {
				signed = -signed
			}
			p.applyFill(leg.matcher.ID(), leg.instrument, signed)
			totalQty += res.TotalQty
			totalNotional += res.VWAP * res.TotalQty
			totalDebit += res.TotalDebit
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Settle custody: the debit left the vault toward settlement, the
	// rest of the pledge unlocks. Refund whatever each cap didn't use.
	var refunded int64
	for i := range rt.legs {
		leg := &rt.legs[i]
		esc := r.escrowFor(leg.matcher.ID(), rt.user, rt.mint)
		unused := leg.cap.Release()
		esc.release(unused)
		refunded += unused
	}
	v.settle(rt.total, totalDebit)
	p.Pledged -= rt.total
	p.Cash -= totalDebit
	rt.state = routeCommitted
	if rerr := r.Remark(rt.user); rerr != nil {
		return nil, rerr
	}

	var vwap int64
	if totalQty > 0 {
		vwap = totalNotional / totalQty
	}
	r.log.Info("route committed",
		zap.Uint64("route_id", routeID),
		zap.Int64("qty", totalQty),
		zap.Int64("debit", totalDebit),
		zap.Int64("refunded", refunded))

	return &CommitRouteResult{
		RouteID:    routeID,
		TotalQty:   totalQty,
		VWAP:       vwap,
		TotalDebit: totalDebit,
		Refunded:   refunded,
	}, nil
}

// Release unwinds an open route (RouterRelease, §4.6): cancels every
// hold, burns every cap, and returns the pledged collateral to the
// portfolio. Idempotent once the route is closed.
func (r *Router) Release(routeID uint64) error {
	rt, ok := r.routes[routeID]
	if !ok {
		return nil
	}
	if rt.state != routeOpen {
		return nil
	}
	_, v, err := r.portfolioVault(rt.user, rt.mint)
	if err != nil {
		return err
	}
	now := r.Host.Now()
	p := r.portfolios[rt.user]

	for i := range rt.legs {
		leg := &rt.legs[i]
		if cerr := leg.matcher.CancelHold(leg.hold.HoldID, leg.acct, now); cerr != nil {
			r.log.Warn("release cancel failed",
				zap.Uint64("route_id", routeID),
				zap.Uint64("hold_id", leg.hold.HoldID),
				zap.Error(cerr))
		}
		esc := r.escrowFor(leg.matcher.ID(), rt.user, rt.mint)
		esc.release(leg.cap.Release())
	}
	v.unpledge(rt.total)
	p.Pledged -= rt.total
	rt.state = routeReleased
	return nil
}

// SweepExpiredRoutes releases every open route whose caps have all
// expired — the router-side analogue of the slab's lazy reservation
// sweep, driven by the same host clock.
func (r *Router) SweepExpiredRoutes() {
	now := r.Host.Now()
	for id, rt := range r.routes {
		if rt.state != routeOpen {
			continue
		}
		expired := true
		for i := range rt.legs {
			if rt.legs[i].cap.ExpiryTS > now {
				expired = false
				break
			}
		}
		if expired {
			_ = r.Release(id)
		}
	}
}

// LiquidateUser routes a liquidation at a target slab
// (RouterLiquidateUser, §6): permissionless at the slab layer, the
// router resolves seats for liquidator and target and forwards.
func (r *Router) LiquidateUser(liquidator, target, slabID [32]byte, qty int64) (*slab.LiquidationResult, error) {
	m, ok := r.matchers[slabID]
	if !ok {
		return nil, wire.New(wire.InvalidArgument, "unknown slab")
	}
	sm, ok := m.(*SlabMatcher)
	if !ok {
		return nil, wire.New(wire.InvalidArgument, "matcher variant does not support liquidation")
	}
	liqAcct, ok := r.seats[seatKey{user: liquidator, slab: slabID}]
	if !ok {
		return nil, wire.New(wire.Unauthorized, "liquidator has no seat on target slab")
	}
	tgtAcct, ok := r.seats[seatKey{user: target, slab: slabID}]
	if !ok {
		return nil, wire.New(wire.InvalidArgument, "target has no seat on target slab")
	}
	return sm.Slab().Liquidate(liqAcct, tgtAcct, qty, r.Host.Now())
}

// routeCommitment derives the commitment hash legs carry: a uuid salt
// bound to the route id and user so two routes can never share one.
func routeCommitment(routeID uint64, user [32]byte) [32]byte {
	salt := uuid.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], routeID)
	h := sha256.New()
	h.Write(salt[:])
	h.Write(buf[:])
	h.Write(user[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
